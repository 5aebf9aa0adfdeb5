// Copyright 2025 The BATHRON developers
//
// Package gossip is the out-of-band finality-signature channel: background
// goroutines receive signatures from peers and drop them into an
// mpsc-style channel the validator drains under the chain-state lock. It
// is deliberately separate from block/transaction P2P relay.
package gossip

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/finality"
	"github.com/bathron/bathrond/pkg/opkey"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireMessage is the JSON envelope one finality signature travels in over
// the gossip mesh.
type wireMessage struct {
	CorrelationID string `json:"correlation_id"`
	BlockHash     string `json:"block_hash"`
	SignerPub     string `json:"signer_pub"`
	Sig           string `json:"sig"`
}

// Hub maintains the set of connected gossip peers, broadcasts outbound
// finality signatures to all of them, and feeds every inbound signature
// into Incoming for the validator to drain.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	incoming chan finality.Signature
	logger   *log.Logger
}

// NewHub returns a Hub with its inbound queue sized to bufSize; the
// validator is expected to drain Incoming regularly under the chain-state
// lock, so a bounded buffer is enough to absorb bursts without unbounded
// memory growth.
func NewHub(bufSize int) *Hub {
	return &Hub{
		clients:  make(map[*websocket.Conn]bool),
		incoming: make(chan finality.Signature, bufSize),
		logger:   log.New(log.Writer(), "[Gossip] ", log.LstdFlags),
	}
}

// Incoming is the mpsc channel of inbound finality signatures the
// validator drains under the chain-state lock.
func (h *Hub) Incoming() <-chan finality.Signature {
	return h.incoming
}

// ServeHTTP upgrades an inbound connection to a websocket gossip peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("failed to upgrade peer connection: %v", err)
		return
	}
	h.addClient(conn)
}

// Connect dials an outbound gossip peer and adds it to the broadcast set.
func (h *Hub) Connect(peerURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(peerURL, nil)
	if err != nil {
		return fmt.Errorf("gossip: dial %s: %w", peerURL, err)
	}
	h.addClient(conn)
	return nil
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("peer connected, total peers: %d", count)

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		count := len(h.clients)
		h.mu.Unlock()
		conn.Close()
		h.logger.Printf("peer disconnected, total peers: %d", count)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("peer read error: %v", err)
			}
			return
		}
		sig, err := decodeMessage(data)
		if err != nil {
			// Malformed gossip from a peer is benign, not a validation
			// failure: drop and log.
			h.logger.Printf("dropping malformed gossip message: %v", err)
			continue
		}
		select {
		case h.incoming <- sig:
		default:
			h.logger.Printf("incoming gossip queue full, dropping signature for block %s", sig.BlockHash)
		}
	}
}

// Broadcast sends a finality signature to every connected peer.
func (h *Hub) Broadcast(sig finality.Signature) {
	data, err := encodeMessage(sig)
	if err != nil {
		h.logger.Printf("failed to encode outbound signature: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("write to peer failed: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Close disconnects every gossip peer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func encodeMessage(sig finality.Signature) ([]byte, error) {
	msg := wireMessage{
		CorrelationID: uuid.NewString(),
		BlockHash:     sig.BlockHash.String(),
		SignerPub:     sig.SignerPub.String(),
		Sig:           fmt.Sprintf("%x", sig.Sig),
	}
	return json.Marshal(msg)
}

func decodeMessage(data []byte) (finality.Signature, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return finality.Signature{}, err
	}

	blockHash, err := bathash.Hash256FromHex(msg.BlockHash)
	if err != nil {
		return finality.Signature{}, fmt.Errorf("block_hash: %w", err)
	}
	pubBytes, err := hex.DecodeString(msg.SignerPub)
	if err != nil {
		return finality.Signature{}, fmt.Errorf("signer_pub: %w", err)
	}
	pub, err := opkey.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return finality.Signature{}, fmt.Errorf("signer_pub: %w", err)
	}
	sigBytes, err := hex.DecodeString(msg.Sig)
	if err != nil {
		return finality.Signature{}, fmt.Errorf("sig: %w", err)
	}

	return finality.Signature{BlockHash: blockHash, SignerPub: pub, Sig: sigBytes}, nil
}

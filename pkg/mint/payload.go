// Copyright 2025 The BATHRON developers
//
// Package mint implements the Mint Builder/Validator: producing and
// checking TX_MINT_M0BTC, the block-producer-only transaction that turns
// eligible burn claims into circulating M0.
package mint

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bathron/bathrond/pkg/bathash"
)

// MaxMintClaimsPerBlock mirrors btcburn.MaxMintClaimsPerBlock as a separate
// constant with the same value.
const MaxMintClaimsPerBlock = 100

// Payload is the decoded MintPayload carried in TX_MINT_M0BTC's
// extra_payload: a version tag plus the strictly sorted list of claimed
// btc_txids.
type Payload struct {
	Version   uint8
	BtcTxids  []bathash.Hash256
}

func (p *Payload) Marshal() []byte {
	buf := make([]byte, 0, 1+4+len(p.BtcTxids)*32)
	buf = append(buf, p.Version)
	buf = appendU32(buf, uint32(len(p.BtcTxids)))
	for _, txid := range p.BtcTxids {
		buf = append(buf, txid.Bytes()...)
	}
	return buf
}

func DecodePayload(b []byte) (*Payload, error) {
	if len(b) < 1+4 {
		return nil, fmt.Errorf("mint: payload too short")
	}
	p := &Payload{Version: b[0]}
	if p.Version != 1 {
		return nil, fmt.Errorf("mint: unsupported payload version %d", p.Version)
	}
	count := binary.BigEndian.Uint32(b[1:5])
	want := 1 + 4 + int(count)*32
	if len(b) != want {
		return nil, fmt.Errorf("mint: payload is %d bytes, want %d for %d txids", len(b), want, count)
	}
	p.BtcTxids = make([]bathash.Hash256, count)
	off := 5
	for i := range p.BtcTxids {
		var h [32]byte
		copy(h[:], b[off:off+32])
		p.BtcTxids[i] = bathash.Hash256(h)
		off += 32
	}
	return p, nil
}

// IsStrictlySortedNoDuplicates reports whether txids is in strictly
// ascending lexicographic byte order with no repeats, the canonical order
// every node must agree on byte-exactly.
func IsStrictlySortedNoDuplicates(txids []bathash.Hash256) bool {
	for i := 1; i < len(txids); i++ {
		if bytes.Compare(txids[i-1].Bytes(), txids[i].Bytes()) >= 0 {
			return false
		}
	}
	return true
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

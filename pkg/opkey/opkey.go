// Copyright 2025 The BATHRON developers
//
// Package opkey provides the masternode operator ECDSA keypair used for
// two distinct signing roles: signing a produced block's final hash and
// signing finality votes over a block hash. Both roles share one
// secp256k1 key; finality is per-signer ECDSA, never aggregated.
package opkey

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/bathron/bathrond/pkg/bathash"
)

// PrivateKey is a masternode operator's ECDSA signing key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is the corresponding operator public key, the same bytes the
// DmnRegistry publishes per masternode (chainiface.Masternode.OperatorPubKey).
type PublicKey struct {
	key *btcec.PublicKey
}

// GenerateKeyPair creates a new random secp256k1 keypair.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("opkey: generate key: %w", err)
	}
	return &PrivateKey{key: key}, &PublicKey{key: key.PubKey()}, nil
}

// PrivateKeyFromBytes parses a 32-byte raw private key.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("opkey: private key must be 32 bytes, got %d", len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Bytes returns the raw 32-byte private key scalar.
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// PublicKey derives this private key's public key.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// Sign signs hash (a Hash256 digest, the block hash or finality vote
// message) with ECDSA, returning a DER-encoded signature.
func (k *PrivateKey) Sign(hash bathash.Hash256) []byte {
	sig := ecdsa.Sign(k.key, hash[:])
	return sig.Serialize()
}

// PublicKeyFromBytes parses a 33-byte compressed secp256k1 public key, the
// wire format chainiface.Masternode.OperatorPubKey carries.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("opkey: parse public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// Bytes returns the 33-byte compressed public key.
func (k *PublicKey) Bytes() []byte {
	return k.key.SerializeCompressed()
}

func (k *PublicKey) String() string {
	return hex.EncodeToString(k.Bytes())
}

// Equal reports whether two public keys are the same point.
func (k *PublicKey) Equal(other *PublicKey) bool {
	return k.key.IsEqual(other.key)
}

// Verify reports whether sig is a valid DER-encoded ECDSA signature by
// this public key over hash. Used both for block-producer signature
// acceptance (4.4.3) and finality vote validation (4.5.2).
func (k *PublicKey) Verify(hash bathash.Hash256, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash[:], k.key)
}

// Manager loads an operator key from disk or generates and persists a new
// one (hex-encoded key file, generate-if-absent).
type Manager struct {
	keyPath string
	priv    *PrivateKey
}

// NewManager returns a Manager backed by the given key file path. An empty
// path means keys are never persisted (test/ephemeral nodes).
func NewManager(keyPath string) *Manager {
	return &Manager{keyPath: keyPath}
}

// LoadOrGenerate loads the key at keyPath if it exists, otherwise generates
// and (if keyPath is non-empty) persists a new one.
func (m *Manager) LoadOrGenerate() (*PrivateKey, error) {
	if m.keyPath != "" {
		if _, err := os.Stat(m.keyPath); err == nil {
			return m.load()
		}
	}
	priv, _, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	m.priv = priv
	if m.keyPath != "" {
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	return priv, nil
}

func (m *Manager) load() (*PrivateKey, error) {
	data, err := os.ReadFile(m.keyPath)
	if err != nil {
		return nil, fmt.Errorf("opkey: read key file: %w", err)
	}
	raw, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("opkey: decode key hex: %w", err)
	}
	priv, err := PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, err
	}
	m.priv = priv
	return priv, nil
}

func (m *Manager) save() error {
	return os.WriteFile(m.keyPath, []byte(hex.EncodeToString(m.priv.Bytes())), 0600)
}

// Copyright 2025 The BATHRON developers
//
// Package bathash defines the content-addressed identifiers used throughout
// the settlement, burn-claim, and finality subsystems: the 32-byte Hash256
// (double-SHA256, Bitcoin-style) and the 20-byte Hash160 destination hash.
package bathash

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash256Size is the length in bytes of a Hash256.
const Hash256Size = chainhash.HashSize

// Hash160Size is the length in bytes of a Hash160.
const Hash160Size = 20

// Hash256 is a 32-byte content-addressed identifier. For Bitcoin-derived
// data it is double-SHA256 of the Bitcoin wire bytes; for BATHRON-native
// data (vault/receipt outpoints, block hashes) it is DoubleSHA256 of the
// BATHRON wire bytes. BATHRON displays and stores Hash256 big-endian with
// no byte-reversal convention, unlike Bitcoin's RPC display order, so this
// is a plain fixed-size array rather than an alias of chainhash.Hash.
type Hash256 [Hash256Size]byte

// ZeroHash256 is the all-zero Hash256, used as the "no parent" / "genesis
// publisher" sentinel (e.g. BtcHeadersPayload.PublisherProTxHash at genesis).
var ZeroHash256 Hash256

// DoubleSHA256 computes the Bitcoin-style double-SHA256 digest of data.
func DoubleSHA256(data []byte) Hash256 {
	return Hash256(chainhash.DoubleHashH(data))
}

// Hash256FromBytes builds a Hash256 from a 32-byte slice, copying it.
func Hash256FromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != Hash256Size {
		return h, fmt.Errorf("bathash: expected %d bytes, got %d", Hash256Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hash256FromHex parses a hex-encoded Hash256 with no byte reversal.
func Hash256FromHex(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, fmt.Errorf("bathash: invalid hex: %w", err)
	}
	return Hash256FromBytes(b)
}

func (h Hash256) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero value.
func (h Hash256) IsZero() bool { return h == Hash256{} }

// Bytes returns a fresh copy of the hash's bytes.
func (h Hash256) Bytes() []byte {
	b := make([]byte, Hash256Size)
	copy(b, h[:])
	return b
}

// Equal reports whether two Hash256 values are identical.
func (h Hash256) Equal(other Hash256) bool { return h == other }

// MarshalJSON renders the hash as a hex string.
func (h Hash256) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a hex string into the hash.
func (h *Hash256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Hash256FromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Hash160 is a 20-byte hash of a public key, used as a payment destination.
type Hash160 [Hash160Size]byte

// Hash160Of computes RIPEMD160(SHA256(data)), the standard pay-to-pubkey-hash
// destination hash.
func Hash160Of(data []byte) Hash160 {
	var h Hash160
	copy(h[:], btcutil.Hash160(data))
	return h
}

// Hash160FromBytes builds a Hash160 from a 20-byte slice, copying it.
func Hash160FromBytes(b []byte) (Hash160, error) {
	var h Hash160
	if len(b) != Hash160Size {
		return h, fmt.Errorf("bathash: expected %d bytes, got %d", Hash160Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hash160FromHex parses a hex-encoded Hash160.
func Hash160FromHex(s string) (Hash160, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash160{}, fmt.Errorf("bathash: invalid hex: %w", err)
	}
	return Hash160FromBytes(b)
}

func (h Hash160) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero value.
func (h Hash160) IsZero() bool { return h == Hash160{} }

// Bytes returns a fresh copy of the hash's bytes.
func (h Hash160) Bytes() []byte {
	b := make([]byte, Hash160Size)
	copy(b, h[:])
	return b
}

// Equal reports whether two Hash160 values are identical.
func (h Hash160) Equal(other Hash160) bool { return h == other }

// MarshalJSON renders the hash as a hex string.
func (h Hash160) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses a hex string into the hash.
func (h *Hash160) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Hash160FromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// OutPoint identifies a single transaction output: the hash of the
// transaction that created it plus the output index within that
// transaction.
type OutPoint struct {
	TxHash Hash256 `json:"tx_hash"`
	Index  uint32  `json:"index"`
}

// String renders the outpoint as "<txhash>:<index>".
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}

// Bytes returns the raw-byte-concatenation key form used for KV storage:
// 32-byte tx hash followed by a 4-byte big-endian index, with no length
// prefix or framing of any kind. Index keys must concatenate raw.
func (o OutPoint) Bytes() []byte {
	b := make([]byte, Hash256Size+4)
	copy(b, o.TxHash[:])
	b[Hash256Size] = byte(o.Index >> 24)
	b[Hash256Size+1] = byte(o.Index >> 16)
	b[Hash256Size+2] = byte(o.Index >> 8)
	b[Hash256Size+3] = byte(o.Index)
	return b
}

// OutPointFromBytes parses the raw-byte-concatenation form produced by Bytes.
func OutPointFromBytes(b []byte) (OutPoint, error) {
	var o OutPoint
	if len(b) != Hash256Size+4 {
		return o, errors.New("bathash: malformed outpoint key")
	}
	copy(o.TxHash[:], b[:Hash256Size])
	o.Index = uint32(b[Hash256Size])<<24 | uint32(b[Hash256Size+1])<<16 | uint32(b[Hash256Size+2])<<8 | uint32(b[Hash256Size+3])
	return o, nil
}

// Equal reports whether two outpoints refer to the same output.
func (o OutPoint) Equal(other OutPoint) bool {
	return bytes.Equal(o.TxHash[:], other.TxHash[:]) && o.Index == other.Index
}

// Copyright 2025 The BATHRON developers
//
// Package txmodel defines the BATHRON transaction shape: the 16-bit type
// tag, inputs/outputs, and the optional extra_payload blob carried by
// settlement- and burn-bearing transaction types. It is intentionally
// independent of the Bitcoin wire format in pkg/btcwire; BATHRON
// transactions are a native format, not Bitcoin's.
package txmodel

import (
	"encoding/binary"
	"fmt"

	"github.com/bathron/bathrond/pkg/bathash"
)

// Type is the 16-bit transaction type tag carried by every BATHRON
// transaction.
type Type uint16

const (
	// Normal is a standard transfer of M0; carries no extra_payload.
	Normal Type = iota
	// Lock creates a vault + receipt from M0.
	Lock
	// Unlock redeems an M1 receipt + vault back to M0.
	Unlock
	// TransferM1 transfers an M1 receipt.
	TransferM1
	// BurnClaim registers a Bitcoin burn; enters PENDING. Carries a payload.
	BurnClaim
	// MintM0BTC finalizes PENDING burns into spendable M0. Carries a
	// payload; has no inputs.
	MintM0BTC
	// BtcHeaders publishes BTC block headers on-chain. Carries a payload.
	BtcHeaders
)

func (t Type) String() string {
	switch t {
	case Normal:
		return "NORMAL"
	case Lock:
		return "TX_LOCK"
	case Unlock:
		return "TX_UNLOCK"
	case TransferM1:
		return "TX_TRANSFER_M1"
	case BurnClaim:
		return "TX_BURN_CLAIM"
	case MintM0BTC:
		return "TX_MINT_M0BTC"
	case BtcHeaders:
		return "TX_BTC_HEADERS"
	default:
		return fmt.Sprintf("TX_UNKNOWN(%d)", uint16(t))
	}
}

// IsSettlement reports whether t is one of the three settlement-bearing
// types the containment rule (pkg/settlement) applies to.
func (t Type) IsSettlement() bool {
	return t == Lock || t == Unlock || t == TransferM1
}

// TxIn is a transaction input: a reference to a previous output plus an
// opaque unlocking script. Script evaluation is a black box to this
// package; settlement classification only inspects the prevout it points
// at, never script_sig contents.
type TxIn struct {
	PrevOut   bathash.OutPoint
	ScriptSig []byte
}

// TxOut is a transaction output: an amount in satoshi plus a locking
// script.
type TxOut struct {
	Amount int64
	Script []byte
}

// Tx is a BATHRON transaction.
type Tx struct {
	Type         Type
	Inputs       []TxIn
	Outputs      []TxOut
	ExtraPayload []byte
}

// Serialize renders the transaction in the canonical byte form hashed to
// produce its Hash256 identifier. Field order and widths are fixed: any
// change here changes every transaction hash, so this is not a general
// wire codec, only the hashing preimage.
func (tx *Tx) Serialize() []byte {
	buf := make([]byte, 0, 64+32*len(tx.Inputs)+16*len(tx.Outputs)+len(tx.ExtraPayload))

	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(tx.Type))
	buf = append(buf, u16[:]...)

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(tx.Inputs)))
	buf = append(buf, u32[:]...)
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.Bytes()...)
		binary.BigEndian.PutUint32(u32[:], uint32(len(in.ScriptSig)))
		buf = append(buf, u32[:]...)
		buf = append(buf, in.ScriptSig...)
	}

	binary.BigEndian.PutUint32(u32[:], uint32(len(tx.Outputs)))
	buf = append(buf, u32[:]...)
	var u64 [8]byte
	for _, out := range tx.Outputs {
		binary.BigEndian.PutUint64(u64[:], uint64(out.Amount))
		buf = append(buf, u64[:]...)
		binary.BigEndian.PutUint32(u32[:], uint32(len(out.Script)))
		buf = append(buf, u32[:]...)
		buf = append(buf, out.Script...)
	}

	binary.BigEndian.PutUint32(u32[:], uint32(len(tx.ExtraPayload)))
	buf = append(buf, u32[:]...)
	buf = append(buf, tx.ExtraPayload...)

	return buf
}

// Hash computes the transaction's content-addressed Hash256 identifier.
func (tx *Tx) Hash() bathash.Hash256 {
	return bathash.DoubleSHA256(tx.Serialize())
}

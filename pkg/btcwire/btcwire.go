// Copyright 2025 The BATHRON developers
//
// Package btcwire parses raw Bitcoin transactions for the burn-claim
// engine. It is a thin wrapper over btcsuite/btcd/wire rather than a
// from-scratch parser: btcd's wire.MsgTx already distinguishes the
// non-witness serialization (its TxHash, i.e. btxid) from the full
// serialization (its WitnessHash, i.e. wtxid). Bitcoin headers commit to
// btxid, so hashing the raw wire bytes of a witness transaction would
// silently mis-identify it; reusing wire.MsgTx keeps that distinction in
// one place.
package btcwire

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/bathron/bathrond/pkg/bathash"
)

// DoS ceilings on attacker-supplied transaction blobs.
const (
	// SanityMaxBytes is the outer size limit applied before any parsing.
	SanityMaxBytes = 200_000
	// ConsensusMaxBytes is the limit on btc_tx_bytes actually accepted
	// into a TX_BURN_CLAIM payload.
	ConsensusMaxBytes = 10_000
	// MaxOutputs bounds the number of outputs a burn-claimed transaction
	// may declare.
	MaxOutputs = 100
)

// Tx is a parsed Bitcoin transaction plus its two distinct identifiers.
type Tx struct {
	Msg   *wire.MsgTx
	BTxID bathash.Hash256 // DoubleSHA256(non-witness bytes); what Bitcoin headers commit to.
	WTxID bathash.Hash256 // DoubleSHA256(full bytes); differs whenever witness data is present.
}

// Parse decodes raw as a Bitcoin wire transaction, enforcing the
// consensus (not sanity) size ceiling and the output-count ceiling. Use
// ParseSanity for the looser pre-consensus check applied to attacker-
// supplied blobs before they reach the consensus path.
func Parse(raw []byte) (*Tx, error) {
	if len(raw) > ConsensusMaxBytes {
		return nil, fmt.Errorf("btcwire: tx exceeds consensus size ceiling: %d > %d", len(raw), ConsensusMaxBytes)
	}
	return parse(raw)
}

// ParseSanity decodes raw under only the looser sanity ceiling, for use
// before a value is known to be destined for the consensus path (e.g. a
// relay-time pre-filter).
func ParseSanity(raw []byte) (*Tx, error) {
	if len(raw) > SanityMaxBytes {
		return nil, fmt.Errorf("btcwire: tx exceeds sanity size ceiling: %d > %d", len(raw), SanityMaxBytes)
	}
	return parse(raw)
}

func parse(raw []byte) (*Tx, error) {
	var msg wire.MsgTx
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("btcwire: deserialize: %w", err)
	}
	if len(msg.TxOut) > MaxOutputs {
		return nil, fmt.Errorf("btcwire: tx has %d outputs, exceeds ceiling of %d", len(msg.TxOut), MaxOutputs)
	}
	return &Tx{
		Msg:   &msg,
		BTxID: bathash.Hash256(msg.TxHash()),
		WTxID: bathash.Hash256(msg.WitnessHash()),
	}, nil
}

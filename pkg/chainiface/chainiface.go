// Copyright 2025 The BATHRON developers
//
// Package chainiface defines the interfaces the core consumes from
// components explicitly out of scope: the Bitcoin SPV header chain and
// the masternode registry. Implementations live outside this module; the
// core only depends on these shapes.
package chainiface

import (
	"sync/atomic"

	"github.com/bathron/bathrond/pkg/bathash"
)

// BtcHeader is the subset of a Bitcoin block header the core needs: its
// own hash, height, and the Merkle root transactions are proven against.
type BtcHeader struct {
	Hash       bathash.Hash256
	Height     uint32
	MerkleRoot bathash.Hash256
	Raw        [80]byte
}

// BtcHeaderSource is the consensus-replicated Bitcoin SPV header chain.
// Every method must be answerable synchronously from local state only:
// the burn-claim engine calls these under the chain-state lock and must
// never suspend on network I/O.
type BtcHeaderSource interface {
	// GetHeaderByHash returns the header for hash, if known.
	GetHeaderByHash(hash bathash.Hash256) (BtcHeader, bool)
	// GetHashAtHeight returns the best-chain block hash at height, if any.
	GetHashAtHeight(height uint32) (bathash.Hash256, bool)
	// TipHeight returns the current best-chain tip height.
	TipHeight() uint32
	// VerifyMerkleProof reports whether txid is included under root via
	// the given sibling path and position.
	VerifyMerkleProof(txid bathash.Hash256, root bathash.Hash256, siblings []bathash.Hash256, txIndex uint32) bool
	// MinSupportedHeight is the lowest BTC height this source can answer
	// for; burn claims below it are out of SPV range.
	MinSupportedHeight() uint32
	// IsInBestChain reports whether blockHash is part of the current best
	// chain (as opposed to orphaned/reorged out).
	IsInBestChain(blockHash bathash.Hash256) bool
}

// Masternode is one entry of the active registry: its identity and the
// operator public key it signs blocks and finality votes with.
type Masternode struct {
	ProTxHash      bathash.Hash256
	OperatorPubKey []byte
}

// DmnRegistry supplies the ordered active-masternode list by height.
type DmnRegistry interface {
	// ActiveMasternodes returns the active set at height, in a stable,
	// deterministic order every node agrees on.
	ActiveMasternodes(height uint32) []Masternode
}

// KillSwitch is the single process-wide emergency flag read by burn-claim
// validation. State changes are idempotent and must be logged by the
// caller; KillSwitch itself only stores the bit.
type KillSwitch struct {
	enabled atomic.Bool
}

// Enabled reports whether the emergency kill switch is currently tripped.
func (k *KillSwitch) Enabled() bool {
	return k.enabled.Load()
}

// Set idempotently sets the kill switch state.
func (k *KillSwitch) Set(enabled bool) {
	k.enabled.Store(enabled)
}

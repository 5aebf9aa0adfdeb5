// Copyright 2025 The BATHRON developers
//
// Package dmm implements the Deterministic Masternode Miner scheduler:
// given (prev_block_hash, height, wall_clock) it computes which masternode
// is the expected producer in the current time slot, and validates that a
// candidate block's timestamp respects the time-slot protocol. The
// scheduler is stateless and reentrant; every function here is a pure
// computation over its arguments, never a package-level mutable.
package dmm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/chainiface"
)

// Time-slot parameters. Mainnet and testnet share the same leader timeout
// and fallback recovery; only regtest's fallback recovery differs, for
// fast local iteration.
const (
	LeaderTimeout            = 45 * time.Second
	FallbackRecoveryMainTest = 15 * time.Second
	FallbackRecoveryRegtest  = 2 * time.Second
	TimeSlotGranularity      = 15 * time.Second
	MaxFutureDrift           = 2 * time.Minute
)

// Params bundles the per-network slot parameters plus the bootstrap height
// below which slot calculation is skipped entirely.
type Params struct {
	FallbackRecovery time.Duration
	BootstrapHeight  uint32
}

// ParamsMainnet returns the mainnet DMM parameters. bootstrapHeight is
// supplied by the caller's network config; it is a per-deployment choice,
// not a single fixed constant.
func ParamsMainnet(bootstrapHeight uint32) Params {
	return Params{FallbackRecovery: FallbackRecoveryMainTest, BootstrapHeight: bootstrapHeight}
}

func ParamsTestnet(bootstrapHeight uint32) Params {
	return Params{FallbackRecovery: FallbackRecoveryMainTest, BootstrapHeight: bootstrapHeight}
}

func ParamsRegtest(bootstrapHeight uint32) Params {
	return Params{FallbackRecovery: FallbackRecoveryRegtest, BootstrapHeight: bootstrapHeight}
}

// ComputeSlot implements the slot formula:
//
//	slot = 0                                                     if delta < leader_timeout
//	slot = 1 + floor((delta - leader_timeout) / fallback_recovery) otherwise
func ComputeSlot(prevBlockTime, blockTime time.Time, p Params) uint32 {
	delta := blockTime.Sub(prevBlockTime)
	if delta < LeaderTimeout {
		return 0
	}
	over := delta - LeaderTimeout
	return 1 + uint32(over/p.FallbackRecovery)
}

// IsTimeProtocolV2 reports whether t rounds to the nearest 15-second time
// slot, required of every block time.
func IsTimeProtocolV2(t time.Time) bool {
	return t.Unix()%int64(TimeSlotGranularity/time.Second) == 0
}

// ValidateBlockTime enforces the two remaining block-time rules:
// strictly greater than median-time-past, and no more than
// MaxFutureDrift ahead of wall clock. IsTimeProtocolV2 is checked
// separately since callers may want a distinct reject reason for it.
func ValidateBlockTime(blockTime, medianTimePast, now time.Time) error {
	if !blockTime.After(medianTimePast) {
		return fmt.Errorf("dmm: block time %s does not exceed median-time-past %s", blockTime, medianTimePast)
	}
	if blockTime.After(now.Add(MaxFutureDrift)) {
		return fmt.Errorf("dmm: block time %s is more than %s ahead of wall clock", blockTime, MaxFutureDrift)
	}
	return nil
}

// Score computes the per-masternode election score:
// DoubleSHA256(prev_block_hash || height_le_u32 || pro_tx_hash), read as a
// 256-bit unsigned integer. Hash256 already carries no byte-reversal
// convention (pkg/bathash), so the raw digest bytes are that integer's
// big-endian representation and bytes.Compare orders them correctly.
func Score(prevBlockHash bathash.Hash256, height uint32, proTxHash bathash.Hash256) bathash.Hash256 {
	buf := make([]byte, 0, bathash.Hash256Size+4+bathash.Hash256Size)
	buf = append(buf, prevBlockHash.Bytes()...)
	var h [4]byte
	binary.LittleEndian.PutUint32(h[:], height)
	buf = append(buf, h[:]...)
	buf = append(buf, proTxHash.Bytes()...)
	return bathash.DoubleSHA256(buf)
}

// Ranked is one masternode's election score, used for sorting the active
// set into producer order.
type Ranked struct {
	Masternode chainiface.Masternode
	Score      bathash.Hash256
}

// RankProducers scores every active masternode for (prevBlockHash, height)
// and returns them sorted ascending by score; rank 0 is the slot-0
// expected producer.
func RankProducers(prevBlockHash bathash.Hash256, height uint32, active []chainiface.Masternode) []Ranked {
	ranked := make([]Ranked, len(active))
	for i, mn := range active {
		ranked[i] = Ranked{Masternode: mn, Score: Score(prevBlockHash, height, mn.ProTxHash)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return bytes.Compare(ranked[i].Score[:], ranked[j].Score[:]) < 0
	})
	return ranked
}

// ExpectedProducer returns the masternode ranked at slot (wrapping modulo
// the active set size) for (prevBlockHash, height). Returns an error if
// the active set is empty, since the caller has no registry to elect from.
func ExpectedProducer(prevBlockHash bathash.Hash256, height uint32, active []chainiface.Masternode, slot uint32) (chainiface.Masternode, error) {
	if len(active) == 0 {
		return chainiface.Masternode{}, fmt.Errorf("dmm: no active masternodes at height %d", height)
	}
	ranked := RankProducers(prevBlockHash, height, active)
	return ranked[int(slot)%len(ranked)].Masternode, nil
}

// CanProduce reports whether local is permitted to produce the block at
// (prevBlockHash, height, slot): the local node
// must be the slot's expected producer, or, once slot >= 1, may be any
// active masternode. During bootstrap (height <= BootstrapHeight) the slot
// calculation is skipped entirely and any active masternode may produce.
func CanProduce(local chainiface.Masternode, prevBlockHash bathash.Hash256, height uint32, active []chainiface.Masternode, slot uint32, p Params) (bool, error) {
	if height <= p.BootstrapHeight {
		return isActive(local, active), nil
	}
	if slot >= 1 {
		return isActive(local, active), nil
	}
	expected, err := ExpectedProducer(prevBlockHash, height, active, slot)
	if err != nil {
		return false, err
	}
	return expected.ProTxHash.Equal(local.ProTxHash), nil
}

func isActive(local chainiface.Masternode, active []chainiface.Masternode) bool {
	for _, mn := range active {
		if mn.ProTxHash.Equal(local.ProTxHash) {
			return true
		}
	}
	return false
}

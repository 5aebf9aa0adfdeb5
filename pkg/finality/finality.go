// Copyright 2025 The BATHRON developers
//
// Package finality implements the Finality Aggregator:
// deterministic quorum membership by rotation cycle, ECDSA finality-
// signature collection with a threshold trigger, and the two-dimensional
// (finalized, chainwork) fork-choice comparison that lets a finalized tip
// override raw proof-of-work.
package finality

import (
	"bytes"
	"math/big"
	"sort"
	"sync"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/chainiface"
	"github.com/bathron/bathrond/pkg/opkey"
)

// Per-network quorum parameters.
type NetworkParams struct {
	QuorumSize int
	Threshold  int
}

func MainnetParams() NetworkParams { return NetworkParams{QuorumSize: 12, Threshold: 8} }
func TestnetParams() NetworkParams { return NetworkParams{QuorumSize: 3, Threshold: 2} }
func RegtestParams() NetworkParams { return NetworkParams{QuorumSize: 1, Threshold: 1} }

// Threshold computes ceil(2*quorumSize/3), the formula NetworkParams above
// are precomputed from; exposed so callers can verify a custom quorum size.
func Threshold(quorumSize int) int {
	return (2*quorumSize + 2) / 3
}

// CycleIndex computes cycle_index(height) = floor(height / rotation_blocks).
func CycleIndex(height, rotationBlocks uint32) uint32 {
	return height / rotationBlocks
}

// Quorum is the deterministic projection of the active masternode set onto
// one rotation cycle.
type Quorum struct {
	Cycle   uint32
	Members []chainiface.Masternode
}

// IsMember reports whether pub is one of the quorum's members.
func (q Quorum) IsMember(pub *opkey.PublicKey) bool {
	for _, m := range q.Members {
		if bytes.Equal(m.OperatorPubKey, pub.Bytes()) {
			return true
		}
	}
	return false
}

// ComputeQuorum derives the quorum for height: it snapshots the active set
// at the cycle's first height, then, if the active set is larger than
// quorumSize, deterministically ranks members by
// DoubleSHA256(cycle_be_u32 || pro_tx_hash) and keeps the lowest-scoring
// quorumSize, the same score-and-sort shape pkg/dmm uses for producer
// election. The projection must be pure and agreed across nodes; nothing
// else about it is consensus-relevant.
func ComputeQuorum(height, rotationBlocks uint32, quorumSize int, registry chainiface.DmnRegistry) Quorum {
	cycle := CycleIndex(height, rotationBlocks)
	snapshotHeight := cycle * rotationBlocks
	active := registry.ActiveMasternodes(snapshotHeight)
	if len(active) <= quorumSize {
		return Quorum{Cycle: cycle, Members: active}
	}

	type scored struct {
		mn    chainiface.Masternode
		score bathash.Hash256
	}
	ranked := make([]scored, len(active))
	var cycleBytes [4]byte
	cycleBytes[0] = byte(cycle >> 24)
	cycleBytes[1] = byte(cycle >> 16)
	cycleBytes[2] = byte(cycle >> 8)
	cycleBytes[3] = byte(cycle)
	for i, mn := range active {
		buf := append(append([]byte{}, cycleBytes[:]...), mn.ProTxHash.Bytes()...)
		ranked[i] = scored{mn: mn, score: bathash.DoubleSHA256(buf)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return bytes.Compare(ranked[i].score[:], ranked[j].score[:]) < 0
	})

	members := make([]chainiface.Masternode, quorumSize)
	for i := 0; i < quorumSize; i++ {
		members[i] = ranked[i].mn
	}
	return Quorum{Cycle: cycle, Members: members}
}

// Signature is one masternode's finality vote over a block hash.
type Signature struct {
	BlockHash bathash.Hash256
	SignerPub *opkey.PublicKey
	Sig       []byte
}

// Valid reports whether s is a well-formed finality vote: the signer is a
// member of quorum, and the ECDSA signature verifies.
func (s Signature) Valid(quorum Quorum) bool {
	if !quorum.IsMember(s.SignerPub) {
		return false
	}
	return s.SignerPub.Verify(s.BlockHash, s.Sig)
}

// Aggregator collects finality signatures per block hash and reports
// finalization once distinct valid signers reach the threshold. Writes are
// guarded by a short-lived lock independent of the chain-state lock, so
// signature arrival never couples to block validation throughput.
type Aggregator struct {
	mu      sync.Mutex
	signers map[bathash.Hash256]map[string][]byte // blockHash -> pubkeyHex -> sig
}

// NewAggregator returns an empty signature aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{signers: make(map[bathash.Hash256]map[string][]byte)}
}

// Add records a validated finality signature. Duplicates from the same
// signer for the same block are idempotent. Callers must have already
// checked Signature.Valid against the block's quorum; Add does not
// re-verify.
func (a *Aggregator) Add(sig Signature) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.signers[sig.BlockHash]
	if !ok {
		m = make(map[string][]byte)
		a.signers[sig.BlockHash] = m
	}
	m[sig.SignerPub.String()] = sig.Sig
}

// SignerCount returns the number of distinct valid signers collected so
// far for blockHash.
func (a *Aggregator) SignerCount(blockHash bathash.Hash256) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.signers[blockHash])
}

// Finalized reports whether blockHash has reached threshold: a block is
// finalized the instant distinct valid signers meet it.
func (a *Aggregator) Finalized(blockHash bathash.Hash256, threshold int) bool {
	return a.SignerCount(blockHash) >= threshold
}

// Forget drops all collected signatures for blockHash, for callers that
// want to bound memory once a block is finalized or permanently orphaned.
func (a *Aggregator) Forget(blockHash bathash.Hash256) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.signers, blockHash)
}

// Tip is the fork-choice-relevant metadata of a chain tip, compared as a
// lexicographic tuple rather than a scalar score: less work with a
// finalized tip must still win.
type Tip struct {
	FinalizedHeight uint32
	Finalized       bool
	Chainwork       *big.Int
}

// Better reports whether tip a should be preferred over tip b under the
// three-rule fork choice: finalized beats unfinalized, higher finalized
// height beats lower, then chainwork. bootstrap reports whether both
// tips are still within the DMM bootstrap window (height <=
// dmm_bootstrap_height): within bootstrap, finality is not required and
// only chainwork (rule 3) decides.
func Better(a, b Tip, bootstrap bool) bool {
	if !bootstrap {
		if a.Finalized != b.Finalized {
			return a.Finalized
		}
		if a.Finalized && b.Finalized && a.FinalizedHeight != b.FinalizedHeight {
			return a.FinalizedHeight > b.FinalizedHeight
		}
	}
	return a.Chainwork.Cmp(b.Chainwork) > 0
}

// RejectsFinalizedReorg reports whether switching to a candidate tip whose
// fork point is below the chain's current finalized height would unwind a
// finalized block, which is forbidden unconditionally.
func RejectsFinalizedReorg(currentFinalizedHeight uint32, forkPointHeight uint32) bool {
	return forkPointHeight < currentFinalizedHeight
}

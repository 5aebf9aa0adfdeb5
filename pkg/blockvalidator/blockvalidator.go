// Copyright 2025 The BATHRON developers
//
// Package blockvalidator is the glue layer that connects a BATHRON block
// across the settlement, burn-claim, mint, DMM, and finality components in
// one atomic step. It owns the single chain-state lock every other
// component assumes it is called under.
package blockvalidator

import (
	"fmt"
	"sync"
	"time"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/btcburn"
	"github.com/bathron/bathrond/pkg/chainiface"
	"github.com/bathron/bathrond/pkg/dmm"
	"github.com/bathron/bathrond/pkg/finality"
	"github.com/bathron/bathrond/pkg/mint"
	"github.com/bathron/bathrond/pkg/opkey"
	"github.com/bathron/bathrond/pkg/settlement"
	"github.com/bathron/bathrond/pkg/txmodel"
)

// UTXOSource resolves a BATHRON transaction input's prevout to the view
// settlement classification needs. Walking BATHRON's own UTXO set is
// outside every component's scope (pkg/settlement's InputView doc comment);
// this is the one seam the glue layer must supply.
type UTXOSource interface {
	Resolve(op bathash.OutPoint) (settlement.InputView, error)
}

// Block is the minimal shape the validator needs out of a produced or
// received block: header fields relevant to DMM/finality plus its
// transaction list in order. Hash is the final block hash (after any
// coinbase nonce mutation), the message ProducerSig signs.
type Block struct {
	Height            uint32
	Hash              bathash.Hash256
	PrevHash          bathash.Hash256
	Time              time.Time
	PrevTime          time.Time
	MedianTimePast    time.Time
	Txs               []txmodel.Tx
	ProducerProTxHash bathash.Hash256
	ProducerSig       []byte
}

// UndoLog records everything ConnectBlock did so DisconnectBlock can
// invert it in reverse order, mirroring pkg/settlement's per-tx UndoRecord
// shape at block granularity.
type UndoLog struct {
	settlementUndo []settlementUndoEntry
	claims         []*btcburn.Record
	minted         [][]*btcburn.Record
}

type settlementUndoEntry struct {
	tx   *txmodel.Tx
	undo *settlement.UndoRecord
}

// Context bundles every collaborator ConnectBlock/DisconnectBlock need.
// A single mutex is the chain-state lock: no method here may be called
// concurrently with another.
type Context struct {
	mu sync.Mutex

	Settlement *settlement.Index
	Burns      *btcburn.Store
	BurnEngine *btcburn.Engine
	Registry   chainiface.DmnRegistry
	UTXOs      UTXOSource

	DMMParams      dmm.Params
	RotationBlocks uint32
	FinalityParams finality.NetworkParams
	Aggregator     *finality.Aggregator
}

// ConnectBlock validates and applies block, in order: DMM producer-slot
// legality, then every transaction's settlement/burn-claim/mint effects,
// then the A6 global invariant. On any failure no partial state is left
// behind: ConnectBlock undoes whatever it already applied before
// returning the error, so callers never need their own rollback path.
func (c *Context) ConnectBlock(block *Block) (*UndoLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkProducer(block); err != nil {
		return nil, err
	}
	if !dmm.IsTimeProtocolV2(block.Time) {
		return nil, fmt.Errorf("blockvalidator: block time %s is not aligned to a time slot", block.Time)
	}
	if err := dmm.ValidateBlockTime(block.Time, block.MedianTimePast, time.Now()); err != nil {
		return nil, err
	}

	undo := &UndoLog{}
	bc := settlement.NewBlockContext()
	claimCount := 0

	for i := range block.Txs {
		tx := &block.Txs[i]
		if tx.Type == txmodel.BurnClaim {
			claimCount++
			if claimCount > btcburn.MaxClaimsPerBlock {
				c.rollback(undo)
				return nil, fmt.Errorf("blockvalidator: block carries more than %d burn claims", btcburn.MaxClaimsPerBlock)
			}
		}
		if err := c.connectTx(bc, tx, block.Height, undo); err != nil {
			c.rollback(undo)
			return nil, err
		}
	}

	if err := settlement.CheckA6(c.Settlement); err != nil {
		c.rollback(undo)
		return nil, err
	}

	return undo, nil
}

func (c *Context) connectTx(bc *settlement.BlockContext, tx *txmodel.Tx, height uint32, undo *UndoLog) error {
	// The containment rule applies to every non-settlement transaction in
	// the block, both halves: no OP_TRUE output produced, and no OP_TRUE
	// or vault-indexed prevout consumed.
	if !tx.Type.IsSettlement() {
		if err := settlement.CheckOpTrueContainment(tx); err != nil {
			return err
		}
		inputs, err := c.resolveInputs(tx)
		if err != nil {
			return err
		}
		if err := settlement.CheckOpTrueInputContainment(c.Settlement, tx, inputs); err != nil {
			return err
		}
	}

	switch tx.Type {
	case txmodel.Lock, txmodel.Unlock, txmodel.TransferM1:
		inputs, err := c.resolveInputs(tx)
		if err != nil {
			return err
		}
		view, err := settlement.ParseSettlementTx(c.Settlement, tx, inputs)
		if err != nil {
			return err
		}
		if err := settlement.Validate(bc, tx, view); err != nil {
			return err
		}
		undoRec, err := settlement.Apply(c.Settlement, bc, tx, view, height)
		if err != nil {
			return err
		}
		undo.settlementUndo = append(undo.settlementUndo, settlementUndoEntry{tx: tx, undo: undoRec})
		return nil

	case txmodel.BurnClaim:
		payload, burn, err := c.BurnEngine.CheckBurnClaim(tx.ExtraPayload)
		if err != nil {
			return err
		}
		rec := btcburn.BuildRecord(burn.BtcTxid, payload, burn, height)
		if err := c.Burns.ConnectClaim(rec); err != nil {
			return err
		}
		undo.claims = append(undo.claims, rec)
		return nil

	case txmodel.MintM0BTC:
		records, err := mint.CheckMintM0BTC(c.BurnEngine, c.Burns, tx, height)
		if err != nil {
			return err
		}
		if err := mint.Connect(c.Burns, records, height); err != nil {
			return err
		}
		undo.minted = append(undo.minted, records)
		return nil

	case txmodel.BtcHeaders:
		// Header publication is handled by the external BtcHeaderSource
		// collaborator (chainiface.BtcHeaderSource); block 1's payload is
		// additionally checked by btcburn.VerifyGenesisHeaders at the
		// caller that owns the syncing node's SPV checkpoint, not here.
		return nil

	default:
		return nil
	}
}

// resolveInputs looks up each input's prevout through the UTXO source.
func (c *Context) resolveInputs(tx *txmodel.Tx) ([]settlement.InputView, error) {
	inputs := make([]settlement.InputView, len(tx.Inputs))
	for i, in := range tx.Inputs {
		iv, err := c.UTXOs.Resolve(in.PrevOut)
		if err != nil {
			return nil, err
		}
		inputs[i] = iv
	}
	return inputs, nil
}

func (c *Context) rollback(undo *UndoLog) {
	for i := len(undo.minted) - 1; i >= 0; i-- {
		_ = mint.Disconnect(c.Burns, undo.minted[i])
	}
	for i := len(undo.settlementUndo) - 1; i >= 0; i-- {
		e := undo.settlementUndo[i]
		_ = settlement.Undo(c.Settlement, e.tx, e.undo)
	}
	for i := len(undo.claims) - 1; i >= 0; i-- {
		_ = c.Burns.DisconnectClaim(undo.claims[i].BtcTxid)
	}
}

// DisconnectBlock inverts everything ConnectBlock applied, in reverse
// transaction order, for reorg handling.
func (c *Context) DisconnectBlock(undo *UndoLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(undo.minted) - 1; i >= 0; i-- {
		if err := mint.Disconnect(c.Burns, undo.minted[i]); err != nil {
			return err
		}
	}
	for i := len(undo.claims) - 1; i >= 0; i-- {
		if err := c.Burns.DisconnectClaim(undo.claims[i].BtcTxid); err != nil {
			return err
		}
	}
	for i := len(undo.settlementUndo) - 1; i >= 0; i-- {
		e := undo.settlementUndo[i]
		if err := settlement.Undo(c.Settlement, e.tx, e.undo); err != nil {
			return err
		}
	}
	return nil
}

// checkProducer enforces the DMM election rule: the
// block's claimed producer must be the slot's expected producer, or any
// active masternode once the slot has fallen back, or (within the
// bootstrap window) any active masternode at all. The producer's
// operator signature over the final block hash is verified here too.
func (c *Context) checkProducer(block *Block) error {
	active := c.Registry.ActiveMasternodes(block.Height)
	slot := dmm.ComputeSlot(block.PrevTime, block.Time, c.DMMParams)
	local := chainiface.Masternode{ProTxHash: block.ProducerProTxHash}
	ok, err := dmm.CanProduce(local, block.PrevHash, block.Height, active, slot, c.DMMParams)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("blockvalidator: producer %s not permitted at height %d slot %d", block.ProducerProTxHash, block.Height, slot)
	}
	var producer *chainiface.Masternode
	for i := range active {
		if active[i].ProTxHash.Equal(block.ProducerProTxHash) {
			producer = &active[i]
			break
		}
	}
	if producer == nil {
		return fmt.Errorf("blockvalidator: producer %s not in active set at height %d", block.ProducerProTxHash, block.Height)
	}
	pub, err := opkey.PublicKeyFromBytes(producer.OperatorPubKey)
	if err != nil {
		return fmt.Errorf("blockvalidator: producer operator key: %w", err)
	}
	if !pub.Verify(block.Hash, block.ProducerSig) {
		return fmt.Errorf("blockvalidator: producer signature does not verify for block %s", block.Hash)
	}
	return nil
}

// FinalityQuorum derives the quorum in effect at height.
func (c *Context) FinalityQuorum(height uint32) finality.Quorum {
	return finality.ComputeQuorum(height, c.RotationBlocks, c.FinalityParams.QuorumSize, c.Registry)
}

// AcceptFinalitySignature validates and records a finality vote, returning
// whether blockHash has just become finalized by this addition.
func (c *Context) AcceptFinalitySignature(height uint32, sig finality.Signature) (bool, error) {
	quorum := c.FinalityQuorum(height)
	if !sig.Valid(quorum) {
		return false, fmt.Errorf("blockvalidator: invalid finality signature for block %s", sig.BlockHash)
	}
	wasFinalized := c.Aggregator.Finalized(sig.BlockHash, c.FinalityParams.Threshold)
	c.Aggregator.Add(sig)
	nowFinalized := c.Aggregator.Finalized(sig.BlockHash, c.FinalityParams.Threshold)
	return !wasFinalized && nowFinalized, nil
}

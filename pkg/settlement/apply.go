// Copyright 2025 The BATHRON developers

package settlement

import (
	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/rejects"
	"github.com/bathron/bathrond/pkg/txmodel"
)

// BlockContext tracks same-block state that is not yet durable: the set of
// receipt outpoints created by earlier transactions in the block currently
// being connected. The Vault/Receipt indices themselves are only written
// transaction-by-transaction within Apply, so without this in-memory set a
// TX_LOCK later in the same block could consume a receipt the classifier
// cannot yet see as a receipt, inflating the A6 invariant. Reset at the
// start of every block.
type BlockContext struct {
	pendingReceipts map[bathash.OutPoint]bool
}

// NewBlockContext returns an empty BlockContext for a new block.
func NewBlockContext() *BlockContext {
	return &BlockContext{pendingReceipts: make(map[bathash.OutPoint]bool)}
}

func (bc *BlockContext) markPending(op bathash.OutPoint) {
	bc.pendingReceipts[op] = true
}

func (bc *BlockContext) isPending(op bathash.OutPoint) bool {
	return bc.pendingReceipts[op]
}

// checkSameBlockReplay rejects a TX_LOCK whose input spends a receipt
// created earlier in this same block, closing the A6 inflation self-loop
// a within-block lock of a fresh receipt would open.
func checkSameBlockReplay(bc *BlockContext, tx *txmodel.Tx) error {
	if tx.Type != txmodel.Lock {
		return nil
	}
	for _, in := range tx.Inputs {
		if bc.isPending(in.PrevOut) {
			return rejects.NewBare(rejects.BadTxLockReplayedReceipt)
		}
	}
	return nil
}

// Validate dispatches tx to its type-specific validator plus the universal
// OP_TRUE containment and same-block replay checks, given the classifier
// View already computed for it.
func Validate(bc *BlockContext, tx *txmodel.Tx, v *View) error {
	if err := CheckOpTrueContainment(tx); err != nil {
		return err
	}
	if err := checkSameBlockReplay(bc, tx); err != nil {
		return err
	}
	switch tx.Type {
	case txmodel.Lock:
		return CheckLock(tx, v)
	case txmodel.Unlock:
		return CheckUnlock(tx, v)
	case txmodel.TransferM1:
		return CheckTransfer(tx, v)
	}
	return nil
}

// Apply mutates the Vault/Receipt indices and SettlementState for a single
// validated settlement transaction, and returns the UndoRecord needed to
// reverse it exactly. Callers must have already run Validate successfully;
// Apply does not re-validate.
func Apply(idx *Index, bc *BlockContext, tx *txmodel.Tx, v *View, height uint32) (*UndoRecord, error) {
	switch tx.Type {
	case txmodel.Lock:
		return applyLock(idx, bc, tx, height)
	case txmodel.Unlock:
		return applyUnlock(idx, bc, tx, v, height)
	case txmodel.TransferM1:
		return applyTransfer(idx, bc, tx, v, height)
	default:
		return &UndoRecord{TxType: tx.Type.String()}, nil
	}
}

func applyLock(idx *Index, bc *BlockContext, tx *txmodel.Tx, height uint32) (*UndoRecord, error) {
	amount := tx.Outputs[0].Amount
	vaultOp := bathash.OutPoint{TxHash: tx.Hash(), Index: 0}
	receiptOp := bathash.OutPoint{TxHash: tx.Hash(), Index: 1}

	state, err := idx.GetState()
	if err != nil {
		return nil, err
	}
	newVaulted, err := AddNoOverflow(state.M0Vaulted, amount)
	if err != nil {
		return nil, err
	}
	newSupply, err := AddNoOverflow(state.M1Supply, amount)
	if err != nil {
		return nil, err
	}

	if err := idx.PutVault(VaultEntry{Outpoint: vaultOp, Amount: amount, LockHeight: height}); err != nil {
		return nil, err
	}
	if err := idx.PutReceipt(M1Receipt{Outpoint: receiptOp, Amount: amount, CreateHeight: height}); err != nil {
		return nil, err
	}
	state.M0Vaulted = newVaulted
	state.M1Supply = newSupply
	if err := idx.PutState(state); err != nil {
		return nil, err
	}

	bc.markPending(receiptOp)

	return &UndoRecord{
		TxType:         tx.Type.String(),
		CreatedVault:   &vaultOp,
		CreatedReceipt: &receiptOp,
		DeltaM0Vaulted: amount,
		DeltaM1Supply:  amount,
	}, nil
}

func applyUnlock(idx *Index, bc *BlockContext, tx *txmodel.Tx, v *View, height uint32) (*UndoRecord, error) {
	m0Out := tx.Outputs[0].Amount

	var erasedVaults []VaultEntry
	for _, i := range v.VaultInputIndices {
		op := tx.Inputs[i].PrevOut
		entry, err := idx.GetVault(op)
		if err != nil {
			return nil, err
		}
		erasedVaults = append(erasedVaults, *entry)
		if err := idx.DeleteVault(op); err != nil {
			return nil, err
		}
	}
	var erasedReceipts []M1Receipt
	for _, i := range v.M1InputIndices {
		op := tx.Inputs[i].PrevOut
		entry, err := idx.GetReceipt(op)
		if err != nil {
			return nil, err
		}
		erasedReceipts = append(erasedReceipts, *entry)
		if err := idx.DeleteReceipt(op); err != nil {
			return nil, err
		}
	}

	undo := &UndoRecord{
		TxType:         tx.Type.String(),
		ErasedVaults:   erasedVaults,
		ErasedReceipts: erasedReceipts,
		DeltaM0Vaulted: -m0Out,
		DeltaM1Supply:  -m0Out,
	}

	if len(tx.Outputs) > 1 {
		m1ChangeOp := bathash.OutPoint{TxHash: tx.Hash(), Index: 1}
		if err := idx.PutReceipt(M1Receipt{Outpoint: m1ChangeOp, Amount: tx.Outputs[1].Amount, CreateHeight: height}); err != nil {
			return nil, err
		}
		bc.markPending(m1ChangeOp)
		undo.CreatedM1Change = true
	}
	if len(tx.Outputs) > 2 {
		vaultChangeOp := bathash.OutPoint{TxHash: tx.Hash(), Index: 2}
		if err := idx.PutVault(VaultEntry{Outpoint: vaultChangeOp, Amount: tx.Outputs[2].Amount, LockHeight: height}); err != nil {
			return nil, err
		}
		undo.CreatedVaultChange = true
	}

	state, err := idx.GetState()
	if err != nil {
		return nil, err
	}
	newVaulted, err := SubNoOverflow(state.M0Vaulted, m0Out)
	if err != nil {
		return nil, err
	}
	newSupply, err := SubNoOverflow(state.M1Supply, m0Out)
	if err != nil {
		return nil, err
	}
	state.M0Vaulted = newVaulted
	state.M1Supply = newSupply
	if err := idx.PutState(state); err != nil {
		return nil, err
	}

	return undo, nil
}

func applyTransfer(idx *Index, bc *BlockContext, tx *txmodel.Tx, v *View, height uint32) (*UndoRecord, error) {
	inputOp := tx.Inputs[0].PrevOut
	erased, err := idx.GetReceipt(inputOp)
	if err != nil {
		return nil, err
	}
	if err := idx.DeleteReceipt(inputOp); err != nil {
		return nil, err
	}

	// Only the outputs the cumulative-sum walk classified as M1 become
	// receipts; any M0 fee tail stays in ordinary UTXO processing.
	created := make([]bathash.OutPoint, 0, len(v.M1OutputIndices))
	for _, i := range v.M1OutputIndices {
		op := bathash.OutPoint{TxHash: tx.Hash(), Index: uint32(i)}
		if err := idx.PutReceipt(M1Receipt{Outpoint: op, Amount: tx.Outputs[i].Amount, CreateHeight: height}); err != nil {
			return nil, err
		}
		bc.markPending(op)
		created = append(created, op)
	}

	return &UndoRecord{
		TxType:          tx.Type.String(),
		ErasedReceipt:   erased,
		CreatedReceipts: created,
	}, nil
}

// Undo reverses a single settlement transaction's mutation exactly, given
// the UndoRecord Apply produced. Every outpoint Undo touches is recorded
// in the UndoRecord itself (or deterministic from tx), so no classifier
// re-run is needed at disconnect time.
func Undo(idx *Index, tx *txmodel.Tx, undo *UndoRecord) error {
	switch undo.TxType {
	case txmodel.Lock.String():
		return undoLock(idx, undo)
	case txmodel.Unlock.String():
		return undoUnlock(idx, tx, undo)
	case txmodel.TransferM1.String():
		return undoTransfer(idx, undo)
	default:
		return nil
	}
}

func undoLock(idx *Index, undo *UndoRecord) error {
	if undo.CreatedVault != nil {
		if err := idx.DeleteVault(*undo.CreatedVault); err != nil {
			return err
		}
	}
	if undo.CreatedReceipt != nil {
		if err := idx.DeleteReceipt(*undo.CreatedReceipt); err != nil {
			return err
		}
	}
	return adjustState(idx, -undo.DeltaM0Vaulted, -undo.DeltaM1Supply)
}

func undoUnlock(idx *Index, tx *txmodel.Tx, undo *UndoRecord) error {
	for _, ve := range undo.ErasedVaults {
		if err := idx.PutVault(ve); err != nil {
			return err
		}
	}
	for _, re := range undo.ErasedReceipts {
		if err := idx.PutReceipt(re); err != nil {
			return err
		}
	}
	if undo.CreatedM1Change {
		if err := idx.DeleteReceipt(bathash.OutPoint{TxHash: tx.Hash(), Index: 1}); err != nil {
			return err
		}
	}
	if undo.CreatedVaultChange {
		if err := idx.DeleteVault(bathash.OutPoint{TxHash: tx.Hash(), Index: 2}); err != nil {
			return err
		}
	}
	return adjustState(idx, -undo.DeltaM0Vaulted, -undo.DeltaM1Supply)
}

func undoTransfer(idx *Index, undo *UndoRecord) error {
	for _, op := range undo.CreatedReceipts {
		if err := idx.DeleteReceipt(op); err != nil {
			return err
		}
	}
	if undo.ErasedReceipt != nil {
		if err := idx.PutReceipt(*undo.ErasedReceipt); err != nil {
			return err
		}
	}
	return nil
}

func adjustState(idx *Index, deltaVaulted, deltaSupply int64) error {
	state, err := idx.GetState()
	if err != nil {
		return err
	}
	newVaulted, err := AddNoOverflow(state.M0Vaulted, deltaVaulted)
	if err != nil {
		return err
	}
	newSupply, err := AddNoOverflow(state.M1Supply, deltaSupply)
	if err != nil {
		return err
	}
	state.M0Vaulted = newVaulted
	state.M1Supply = newSupply
	return idx.PutState(state)
}

// CheckA6 re-verifies the A6 consensus invariant after a block connect or
// disconnect. Failure here indicates a validation defect rather than
// attacker-controlled input (the transaction already passed Validate), so
// callers must treat it as a fatal, halt-the-node condition rather than a
// per-transaction reject.
func CheckA6(idx *Index) error {
	state, err := idx.GetState()
	if err != nil {
		return err
	}
	if !state.CheckA6() {
		return rejects.NewBare(rejects.SettlementA6Broken)
	}
	return nil
}

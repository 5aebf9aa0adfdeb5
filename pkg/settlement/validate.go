// Copyright 2025 The BATHRON developers

package settlement

import (
	"github.com/bathron/bathrond/pkg/rejects"
	"github.com/bathron/bathrond/pkg/script"
	"github.com/bathron/bathrond/pkg/txmodel"
)

// CheckOpTrueContainment enforces the output half of the vault safety
// mechanism: only TX_LOCK/TX_UNLOCK/TX_TRANSFER_M1 may ever produce an
// OP_TRUE output. Any other transaction type that does is a consensus
// failure. The containment rule is what keeps an anyone-can-spend script
// safe.
func CheckOpTrueContainment(tx *txmodel.Tx) error {
	if tx.Type.IsSettlement() {
		return nil
	}
	for _, out := range tx.Outputs {
		if script.IsOpTrue(out.Script) {
			return rejects.NewBare(rejects.BadTxnsOpTrueForbidden)
		}
	}
	return nil
}

// CheckOpTrueInputContainment enforces the input half of the containment
// rule: a non-settlement transaction may never consume an OP_TRUE-scripted
// prevout or a live vault outpoint. Without this, a plain NORMAL
// transaction could spend the anyone-can-spend vault script and steal
// vault-backed funds. inputs[i] must correspond to tx.Inputs[i]'s prevout;
// an unresolved view still rejects if the outpoint is in the Vault index.
func CheckOpTrueInputContainment(idx *Index, tx *txmodel.Tx, inputs []InputView) error {
	if tx.Type.IsSettlement() {
		return nil
	}
	for i, in := range tx.Inputs {
		if i < len(inputs) && inputs[i].Resolved && script.IsOpTrue(inputs[i].ScriptPubKey) {
			return rejects.NewBare(rejects.BadTxnsOpTrueForbidden)
		}
		ok, err := idx.HasVault(in.PrevOut)
		if err != nil {
			return err
		}
		if ok {
			return rejects.NewBare(rejects.BadTxnsOpTrueForbidden)
		}
	}
	return nil
}

// CheckLock validates a TX_LOCK transaction against its classifier View.
func CheckLock(tx *txmodel.Tx, v *View) error {
	if tx.Type != txmodel.Lock {
		return rejects.NewBare(rejects.BadTxLockType)
	}
	if len(tx.Outputs) < 2 {
		return rejects.NewBare(rejects.BadTxLockOutputCount)
	}
	vout0, vout1 := tx.Outputs[0], tx.Outputs[1]

	if !script.IsOpTrue(vout0.Script) {
		return rejects.NewBare(rejects.BadTxLockVaultNotOpTrue)
	}
	if vout0.Amount == 0 {
		return rejects.NewBare(rejects.BadTxLockAmountZero)
	}
	if vout0.Amount != vout1.Amount {
		return rejects.NewBare(rejects.BadTxLockAmountMismatch)
	}
	if !InMoneyRange(vout0.Amount) || !InMoneyRange(vout1.Amount) {
		return rejects.NewBare(rejects.BadTxLockAmountMismatch)
	}
	return nil
}

// CheckUnlock validates a TX_UNLOCK transaction against its classifier
// View.
func CheckUnlock(tx *txmodel.Tx, v *View) error {
	if len(v.M1InputIndices) == 0 {
		return rejects.NewBare(rejects.BadTxUnlockNoReceipts)
	}

	// Canonical input order: M1 inputs before vault inputs. No M1 input
	// index may exceed any vault input index; contiguity of each run and
	// the position of M0 fee inputs are not checked here.
	if len(v.VaultInputIndices) > 0 {
		maxM1 := maxInt(v.M1InputIndices)
		minVault := minInt(v.VaultInputIndices)
		if maxM1 > minVault {
			return rejects.NewBare(rejects.BadTxUnlockFeeBeforeVault)
		}
	}

	if len(tx.Outputs) == 0 {
		return rejects.NewBare(rejects.BadTxUnlockNoReceipts)
	}
	m0Out := tx.Outputs[0].Amount

	if v.VaultIn < m0Out {
		return rejects.NewBare(rejects.BadTxUnlockM0ExceedsVault)
	}

	var m1Change int64
	hasM1Change := len(tx.Outputs) > 1
	if hasM1Change {
		m1Change = tx.Outputs[1].Amount
	}
	want, err := AddNoOverflow(m0Out, m1Change)
	if err != nil {
		return rejects.NewBare(rejects.SettlementAmountOverflow)
	}
	if v.M1In != want {
		return rejects.NewBare(rejects.BadTxUnlockConservationViolated)
	}

	hasVaultChange := len(tx.Outputs) > 2
	if hasVaultChange {
		vout2 := tx.Outputs[2]
		if !script.IsOpTrue(vout2.Script) {
			return rejects.NewBare(rejects.BadTxLockVaultNotOpTrue)
		}
		vaultChange := vout2.Amount
		wantVault, err := AddNoOverflow(m0Out, vaultChange)
		if err != nil {
			return rejects.NewBare(rejects.SettlementAmountOverflow)
		}
		if v.VaultIn != wantVault {
			return rejects.NewBare(rejects.BadTxUnlockM0ExceedsVault)
		}
	}

	return nil
}

// CheckTransfer validates a TX_TRANSFER_M1 transaction against its
// classifier View.
func CheckTransfer(tx *txmodel.Tx, v *View) error {
	if len(v.M1InputIndices) == 0 {
		return rejects.NewBare(rejects.BadTxTransferNoReceiptInput)
	}
	// Exactly one receipt input, and it must sit at vin[0]. A second
	// receipt input would be counted as spent by the conservation sum but
	// never erased by Apply, duplicating M1 supply.
	if len(v.M1InputIndices) != 1 || v.M1InputIndices[0] != 0 {
		return rejects.NewBare(rejects.BadTxTransferReceiptNotVin0)
	}

	for _, i := range v.M1OutputIndices {
		out := tx.Outputs[i]
		if out.Amount <= 0 || script.IsOpReturn(out.Script) {
			return rejects.NewBare(rejects.BadTxTransferInvalidOutputs)
		}
	}

	if v.M1Out != v.M1In {
		return rejects.NewBare(rejects.BadTxTransferM1NotConserved)
	}

	return nil
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

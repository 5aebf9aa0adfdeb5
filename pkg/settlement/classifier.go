// Copyright 2025 The BATHRON developers

package settlement

import (
	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/script"
	"github.com/bathron/bathrond/pkg/txmodel"
)

// InputView is the resolved view of one transaction input's prevout: the
// script and amount it carries. Resolving prevouts (walking the UTXO set)
// is outside this package's scope; the block validator glue supplies this
// view already looked up.
type InputView struct {
	ScriptPubKey []byte
	Amount       int64
	Resolved     bool
}

// View is the result of classifying a transaction against the Vault/Receipt
// indices: which inputs and outputs are M0, M1, or vault, and the derived
// amounts and fee.
type View struct {
	TxType        txmodel.Type
	Complete      bool
	MissingInputs bool

	M0InputIndices    []int
	M1InputIndices    []int
	VaultInputIndices []int

	M0OutputIndices    []int
	M1OutputIndices    []int
	VaultOutputIndices []int

	M0In, M1In, VaultIn    int64
	M0Out, M1Out, VaultOut int64

	M0Fee int64
}

// inputKind classifies a single input: DB-driven lookup in the Vault and
// Receipt indices, with an OP_TRUE script override (an input whose script
// is the vault script is always a vault input, even if the index lookup
// somehow disagrees).
type inputKind int

const (
	kindM0 inputKind = iota
	kindM1
	kindVault
)

func classifyInput(idx *Index, op bathash.OutPoint, view InputView) (inputKind, error) {
	if script.IsOpTrue(view.ScriptPubKey) {
		return kindVault, nil
	}
	if ok, err := idx.HasVault(op); err != nil {
		return 0, err
	} else if ok {
		return kindVault, nil
	}
	if ok, err := idx.HasReceipt(op); err != nil {
		return 0, err
	} else if ok {
		return kindM1, nil
	}
	return kindM0, nil
}

// ParseSettlementTx classifies tx against the Vault/Receipt indices,
// producing a View. inputs[i] must correspond to tx.Inputs[i]'s prevout.
func ParseSettlementTx(idx *Index, tx *txmodel.Tx, inputs []InputView) (*View, error) {
	v := &View{TxType: tx.Type, Complete: true}

	for i, in := range tx.Inputs {
		iv := inputs[i]
		if !iv.Resolved {
			v.MissingInputs = true
			v.Complete = false
			continue
		}
		kind, err := classifyInput(idx, in.PrevOut, iv)
		if err != nil {
			return nil, err
		}
		switch kind {
		case kindVault:
			v.VaultInputIndices = append(v.VaultInputIndices, i)
		case kindM1:
			v.M1InputIndices = append(v.M1InputIndices, i)
		default:
			v.M0InputIndices = append(v.M0InputIndices, i)
		}
	}

	if !v.Complete {
		// Amounts and fee cannot be computed, but type and output indices
		// are still reported. TransferM1 is the exception: its cumulative-
		// sum walk needs m1_in, which an unresolved input makes unknowable.
		switch tx.Type {
		case txmodel.Lock:
			classifyLockOutputs(tx, v)
		case txmodel.Unlock:
			classifyUnlockOutputs(tx, v)
		case txmodel.TransferM1:
		default:
			for i := range tx.Outputs {
				v.M0OutputIndices = append(v.M0OutputIndices, i)
			}
		}
		return v, nil
	}

	if err := sumInputsInto(&v.M0In, inputs, v.M0InputIndices); err != nil {
		return nil, err
	}
	if err := sumInputsInto(&v.M1In, inputs, v.M1InputIndices); err != nil {
		return nil, err
	}
	if err := sumInputsInto(&v.VaultIn, inputs, v.VaultInputIndices); err != nil {
		return nil, err
	}

	switch tx.Type {
	case txmodel.Lock:
		classifyLockOutputs(tx, v)
	case txmodel.Unlock:
		classifyUnlockOutputs(tx, v)
	case txmodel.TransferM1:
		classifyTransferOutputs(tx, v)
	default:
		// Non-settlement types: no output is ever tagged M1/vault here;
		// the containment rule (CheckOpTrueContainment) is what rejects
		// an OP_TRUE output on these types, not the classifier.
		for i := range tx.Outputs {
			v.M0OutputIndices = append(v.M0OutputIndices, i)
		}
	}

	if err := sumOutputsInto(&v.M0Out, tx, v.M0OutputIndices); err != nil {
		return nil, err
	}
	if err := sumOutputsInto(&v.M1Out, tx, v.M1OutputIndices); err != nil {
		return nil, err
	}
	if err := sumOutputsInto(&v.VaultOut, tx, v.VaultOutputIndices); err != nil {
		return nil, err
	}

	inTotal, err := AddNoOverflow(v.M0In, v.VaultIn)
	if err != nil {
		return nil, err
	}
	outTotal, err := AddNoOverflow(v.M0Out, v.VaultOut)
	if err != nil {
		return nil, err
	}
	fee, err := SubNoOverflow(inTotal, outTotal)
	if err != nil {
		return nil, err
	}
	v.M0Fee = fee

	return v, nil
}

func sumInputsInto(dst *int64, inputs []InputView, indices []int) error {
	amounts := make([]int64, len(indices))
	for n, i := range indices {
		amounts[n] = inputs[i].Amount
	}
	sum, err := sumAmounts(amounts)
	if err != nil {
		return err
	}
	*dst = sum
	return nil
}

func sumOutputsInto(dst *int64, tx *txmodel.Tx, indices []int) error {
	amounts := make([]int64, len(indices))
	for n, i := range indices {
		amounts[n] = tx.Outputs[i].Amount
	}
	sum, err := sumAmounts(amounts)
	if err != nil {
		return err
	}
	*dst = sum
	return nil
}

func classifyLockOutputs(tx *txmodel.Tx, v *View) {
	for i := range tx.Outputs {
		switch i {
		case 0:
			v.VaultOutputIndices = append(v.VaultOutputIndices, i)
		case 1:
			v.M1OutputIndices = append(v.M1OutputIndices, i)
		default:
			v.M0OutputIndices = append(v.M0OutputIndices, i)
		}
	}
}

func classifyUnlockOutputs(tx *txmodel.Tx, v *View) {
	for i := range tx.Outputs {
		switch i {
		case 0:
			v.M0OutputIndices = append(v.M0OutputIndices, i)
		case 1:
			v.M1OutputIndices = append(v.M1OutputIndices, i)
		case 2:
			v.VaultOutputIndices = append(v.VaultOutputIndices, i)
		default:
			v.M0OutputIndices = append(v.M0OutputIndices, i)
		}
	}
}

// classifyTransferOutputs implements the cumulative-sum walk: outputs are
// M1 for as long as their running total does not exceed the M1 input
// amount; the first output whose inclusion would exceed it, and every
// output after it, is M0 tail (fee change).
func classifyTransferOutputs(tx *txmodel.Tx, v *View) {
	var cum int64
	tailStarted := false
	for i, out := range tx.Outputs {
		if !tailStarted {
			newCum, err := AddNoOverflow(cum, out.Amount)
			if err == nil && newCum <= v.M1In {
				v.M1OutputIndices = append(v.M1OutputIndices, i)
				cum = newCum
				continue
			}
			tailStarted = true
		}
		v.M0OutputIndices = append(v.M0OutputIndices, i)
	}
}

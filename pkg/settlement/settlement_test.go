package settlement

import (
	"testing"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/kvstore"
	"github.com/bathron/bathrond/pkg/rejects"
	"github.com/bathron/bathrond/pkg/script"
	"github.com/bathron/bathrond/pkg/txmodel"
)

const coin = 100_000_000

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(kvstore.NewMemDB())
}

func resolvedM0(amount int64) InputView {
	return InputView{ScriptPubKey: []byte{0x76, 0xa9}, Amount: amount, Resolved: true}
}

func resolvedVault(amount int64) InputView {
	return InputView{ScriptPubKey: []byte{script.OpTrue}, Amount: amount, Resolved: true}
}

// processTx runs the full classify -> validate -> apply pipeline for one
// transaction, mirroring what the block validator glue does per input tx.
func processTx(t *testing.T, idx *Index, bc *BlockContext, tx *txmodel.Tx, inputs []InputView, height uint32) *View {
	t.Helper()
	v, err := ParseSettlementTx(idx, tx, inputs)
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	if err := Validate(bc, tx, v); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := Apply(idx, bc, tx, v, height); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return v
}

// TestSimpleLockTransferUnlock walks the basic lock-transfer-unlock
// lifecycle end to end.
func TestSimpleLockTransferUnlock(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()

	tx1 := &txmodel.Tx{
		Type: txmodel.Lock,
		Inputs: []txmodel.TxIn{
			{PrevOut: bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("alice-utxo")), Index: 0}},
		},
		Outputs: []txmodel.TxOut{
			{Amount: 10 * coin, Script: []byte{script.OpTrue}},
			{Amount: 10 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	processTx(t, idx, bc, tx1, []InputView{resolvedM0(10*coin + 1000)}, 1)

	vaultOp := bathash.OutPoint{TxHash: tx1.Hash(), Index: 0}
	receiptOp := bathash.OutPoint{TxHash: tx1.Hash(), Index: 1}

	vault, err := idx.GetVault(vaultOp)
	if err != nil || vault.Amount != 10*coin {
		t.Fatalf("vault after lock: %+v, %v", vault, err)
	}
	receipt, err := idx.GetReceipt(receiptOp)
	if err != nil || receipt.Amount != 10*coin {
		t.Fatalf("receipt after lock: %+v, %v", receipt, err)
	}
	state, _ := idx.GetState()
	if state.M0Vaulted != 10*coin || state.M1Supply != 10*coin {
		t.Fatalf("state after lock: %+v", state)
	}
	if err := CheckA6(idx); err != nil {
		t.Fatalf("A6 after lock: %v", err)
	}

	// Alice transfers the receipt to Bob.
	tx2 := &txmodel.Tx{
		Type:    txmodel.TransferM1,
		Inputs:  []txmodel.TxIn{{PrevOut: receiptOp}},
		Outputs: []txmodel.TxOut{{Amount: 10 * coin, Script: []byte{0x76, 0xa9}}},
	}
	processTx(t, idx, bc, tx2, []InputView{{Resolved: true, Amount: 10 * coin}}, 1)

	bobReceiptOp := bathash.OutPoint{TxHash: tx2.Hash(), Index: 0}
	if _, err := idx.GetReceipt(receiptOp); err != ErrReceiptNotFound {
		t.Errorf("old receipt should be erased, got err=%v", err)
	}
	if r, err := idx.GetReceipt(bobReceiptOp); err != nil || r.Amount != 10*coin {
		t.Fatalf("bob receipt: %+v, %v", r, err)
	}
	state, _ = idx.GetState()
	if state.M0Vaulted != 10*coin || state.M1Supply != 10*coin {
		t.Fatalf("state unchanged by transfer expected, got %+v", state)
	}

	// Bob unlocks using the receipt and the original vault.
	tx3 := &txmodel.Tx{
		Type: txmodel.Unlock,
		Inputs: []txmodel.TxIn{
			{PrevOut: bobReceiptOp},
			{PrevOut: vaultOp},
		},
		Outputs: []txmodel.TxOut{
			{Amount: 10 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	processTx(t, idx, bc, tx3, []InputView{
		{Resolved: true, Amount: 10 * coin},
		resolvedVault(10 * coin),
	}, 1)

	if _, err := idx.GetVault(vaultOp); err != ErrVaultNotFound {
		t.Errorf("vault should be erased after unlock, got err=%v", err)
	}
	if _, err := idx.GetReceipt(bobReceiptOp); err != ErrReceiptNotFound {
		t.Errorf("receipt should be erased after unlock, got err=%v", err)
	}
	state, _ = idx.GetState()
	if state.M0Vaulted != 0 || state.M1Supply != 0 {
		t.Fatalf("final state = %+v, want (0,0)", state)
	}
	if err := CheckA6(idx); err != nil {
		t.Fatalf("A6 after unlock: %v", err)
	}
}

// TestPartialUnlockWithVaultChange unlocks part of a vault and checks
// the M1 and vault change outputs it leaves behind.
func TestPartialUnlockWithVaultChange(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()

	lockTx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{
			{Amount: 100 * coin, Script: []byte{script.OpTrue}},
			{Amount: 100 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	processTx(t, idx, bc, lockTx, []InputView{resolvedM0(100*coin + 1000)}, 1)
	vaultOp := bathash.OutPoint{TxHash: lockTx.Hash(), Index: 0}
	receiptOp := bathash.OutPoint{TxHash: lockTx.Hash(), Index: 1}

	unlockTx := &txmodel.Tx{
		Type: txmodel.Unlock,
		Inputs: []txmodel.TxIn{
			{PrevOut: receiptOp},
			{PrevOut: vaultOp},
		},
		Outputs: []txmodel.TxOut{
			{Amount: 30 * coin, Script: []byte{0x76, 0xa9}},          // vout0: M0 release to Bob
			{Amount: 70 * coin, Script: []byte{0x76, 0xa9}},          // vout1: M1 change
			{Amount: 70 * coin, Script: []byte{script.OpTrue}}, // vout2: vault change
		},
	}
	processTx(t, idx, bc, unlockTx, []InputView{
		{Resolved: true, Amount: 100 * coin},
		resolvedVault(100 * coin),
	}, 2)

	state, _ := idx.GetState()
	if state.M0Vaulted != 70*coin || state.M1Supply != 70*coin {
		t.Fatalf("state after partial unlock = %+v, want (70coin,70coin)", state)
	}
	if _, err := idx.GetVault(vaultOp); err != ErrVaultNotFound {
		t.Errorf("old vault should be erased")
	}
	newVaultOp := bathash.OutPoint{TxHash: unlockTx.Hash(), Index: 2}
	if v, err := idx.GetVault(newVaultOp); err != nil || v.Amount != 70*coin {
		t.Fatalf("new vault change: %+v, %v", v, err)
	}
	newReceiptOp := bathash.OutPoint{TxHash: unlockTx.Hash(), Index: 1}
	if r, err := idx.GetReceipt(newReceiptOp); err != nil || r.Amount != 70*coin {
		t.Fatalf("new receipt change: %+v, %v", r, err)
	}
	if err := CheckA6(idx); err != nil {
		t.Fatalf("A6 after partial unlock: %v", err)
	}
}

// TestOpTrueTheftAttempt sends a vault outpoint's value to an attacker
// via a NORMAL transaction and expects the containment rule to reject it,
// on both halves: producing an OP_TRUE output, and consuming a live vault
// outpoint as an input. The vault must remain in the index afterward.
func TestOpTrueTheftAttempt(t *testing.T) {
	tx := &txmodel.Tx{
		Type:    txmodel.Normal,
		Inputs:  []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{{Amount: 1 * coin, Script: []byte{script.OpTrue}}},
	}
	err := CheckOpTrueContainment(tx)
	if err == nil {
		t.Fatalf("expected rejection of OP_TRUE output on a NORMAL transaction")
	}
	code, ok := rejects.CodeOf(err)
	if !ok || code != rejects.BadTxnsOpTrueForbidden {
		t.Errorf("got code %v, want %v", code, rejects.BadTxnsOpTrueForbidden)
	}

	// Input half: a NORMAL transaction whose input is a known vault
	// outpoint, paying the value to the attacker.
	idx := newTestIndex(t)
	vaultOp := bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("lock")), Index: 0}
	if err := idx.PutVault(VaultEntry{Outpoint: vaultOp, Amount: 5 * coin, LockHeight: 1}); err != nil {
		t.Fatalf("seed vault: %v", err)
	}
	theft := &txmodel.Tx{
		Type:    txmodel.Normal,
		Inputs:  []txmodel.TxIn{{PrevOut: vaultOp}},
		Outputs: []txmodel.TxOut{{Amount: 5 * coin, Script: []byte{0x76, 0xa9}}},
	}
	err = CheckOpTrueInputContainment(idx, theft, []InputView{resolvedVault(5 * coin)})
	if err == nil {
		t.Fatalf("expected rejection of a NORMAL transaction consuming a vault outpoint")
	}
	code, ok = rejects.CodeOf(err)
	if !ok || code != rejects.BadTxnsOpTrueForbidden {
		t.Errorf("got code %v, want %v", code, rejects.BadTxnsOpTrueForbidden)
	}
	// Even with an unresolved input view, the vault-index lookup alone
	// must reject.
	err = CheckOpTrueInputContainment(idx, theft, []InputView{{}})
	if err == nil {
		t.Fatalf("expected vault-index lookup to reject an unresolved theft input")
	}
	if _, err := idx.GetVault(vaultOp); err != nil {
		t.Errorf("vault must remain in the index after the rejected theft: %v", err)
	}
}

// TestTransferRejectsSecondReceiptInput checks that a transfer carrying
// receipt-backed inputs beyond vin[0] is rejected: Apply only erases the
// vin[0] receipt, so a second one would survive as duplicated M1 supply.
func TestTransferRejectsSecondReceiptInput(t *testing.T) {
	idx := newTestIndex(t)
	opA := bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("ra")), Index: 0}
	opB := bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("rb")), Index: 0}
	if err := idx.PutReceipt(M1Receipt{Outpoint: opA, Amount: 4 * coin}); err != nil {
		t.Fatalf("seed receipt a: %v", err)
	}
	if err := idx.PutReceipt(M1Receipt{Outpoint: opB, Amount: 6 * coin}); err != nil {
		t.Fatalf("seed receipt b: %v", err)
	}

	tx := &txmodel.Tx{
		Type: txmodel.TransferM1,
		Inputs: []txmodel.TxIn{
			{PrevOut: opA},
			{PrevOut: bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("fee")), Index: 0}},
			{PrevOut: opB},
		},
		Outputs: []txmodel.TxOut{{Amount: 10 * coin, Script: []byte{0x76, 0xa9}}},
	}
	inputs := []InputView{
		{Resolved: true, Amount: 4 * coin},
		resolvedM0(1000),
		{Resolved: true, Amount: 6 * coin},
	}
	v, err := ParseSettlementTx(idx, tx, inputs)
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	err = CheckTransfer(tx, v)
	if err == nil {
		t.Fatalf("expected rejection of a transfer with two receipt inputs")
	}
	code, ok := rejects.CodeOf(err)
	if !ok || code != rejects.BadTxTransferReceiptNotVin0 {
		t.Errorf("got code %v, want %v", code, rejects.BadTxTransferReceiptNotVin0)
	}
}

// TestUndoInvertsApply checks that Undo(Apply(state, tx)) == state
// byte-identically.
func TestUndoInvertsApply(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()

	before, _ := idx.GetState()
	beforeCopy := *before

	lockTx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{
			{Amount: 5 * coin, Script: []byte{script.OpTrue}},
			{Amount: 5 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	v, err := ParseSettlementTx(idx, lockTx, []InputView{resolvedM0(5*coin + 500)})
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	if err := Validate(bc, lockTx, v); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	undo, err := Apply(idx, bc, lockTx, v, 1)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := Undo(idx, lockTx, undo); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	after, _ := idx.GetState()
	if *after != beforeCopy {
		t.Errorf("state after undo = %+v, want %+v", after, beforeCopy)
	}
	if _, err := idx.GetVault(bathash.OutPoint{TxHash: lockTx.Hash(), Index: 0}); err != ErrVaultNotFound {
		t.Errorf("vault should not exist after undo")
	}
	if _, err := idx.GetReceipt(bathash.OutPoint{TxHash: lockTx.Hash(), Index: 1}); err != ErrReceiptNotFound {
		t.Errorf("receipt should not exist after undo")
	}
}

// TestSameBlockReplayPrevention checks that a TX_LOCK cannot consume a
// receipt created earlier in the same block.
func TestSameBlockReplayPrevention(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()

	lockTx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{
			{Amount: 1 * coin, Script: []byte{script.OpTrue}},
			{Amount: 1 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	processTx(t, idx, bc, lockTx, []InputView{resolvedM0(1*coin + 100)}, 1)
	receiptOp := bathash.OutPoint{TxHash: lockTx.Hash(), Index: 1}

	replayTx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: receiptOp}},
		Outputs: []txmodel.TxOut{
			{Amount: 1 * coin, Script: []byte{script.OpTrue}},
			{Amount: 1 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	v, err := ParseSettlementTx(idx, replayTx, []InputView{{Resolved: true, Amount: 1 * coin}})
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	err = Validate(bc, replayTx, v)
	if err == nil {
		t.Fatalf("expected same-block replay rejection")
	}
	code, ok := rejects.CodeOf(err)
	if !ok || code != rejects.BadTxLockReplayedReceipt {
		t.Errorf("got code %v, want %v", code, rejects.BadTxLockReplayedReceipt)
	}
}

// TestTransferStrictConservation checks that a transfer burning part of
// its M1 input is rejected.
func TestTransferStrictConservation(t *testing.T) {
	idx := newTestIndex(t)
	receiptOp := bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("r")), Index: 0}
	if err := idx.PutReceipt(M1Receipt{Outpoint: receiptOp, Amount: 10 * coin}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	tx := &txmodel.Tx{
		Type:   txmodel.TransferM1,
		Inputs: []txmodel.TxIn{{PrevOut: receiptOp}},
		Outputs: []txmodel.TxOut{
			{Amount: 6 * coin, Script: []byte{0x76, 0xa9}},
			{Amount: 3 * coin, Script: []byte{0x76, 0xa9}}, // sums to 9coin, not 10coin
		},
	}
	v, err := ParseSettlementTx(idx, tx, []InputView{{Resolved: true, Amount: 10 * coin}})
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	err = CheckTransfer(tx, v)
	if err == nil {
		t.Fatalf("expected conservation violation to be rejected")
	}
	code, ok := rejects.CodeOf(err)
	if !ok || code != rejects.BadTxTransferM1NotConserved {
		t.Errorf("got code %v, want %v", code, rejects.BadTxTransferM1NotConserved)
	}
}

func TestClassifierDeterminism(t *testing.T) {
	idx := newTestIndex(t)
	tx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{
			{Amount: 1 * coin, Script: []byte{script.OpTrue}},
			{Amount: 1 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	inputs := []InputView{resolvedM0(1*coin + 100)}

	v1, err := ParseSettlementTx(idx, tx, inputs)
	if err != nil {
		t.Fatalf("ParseSettlementTx (1): %v", err)
	}
	v2, err := ParseSettlementTx(idx, tx, inputs)
	if err != nil {
		t.Fatalf("ParseSettlementTx (2): %v", err)
	}
	if v1.M0Fee != v2.M0Fee || v1.TxType != v2.TxType || len(v1.VaultOutputIndices) != len(v2.VaultOutputIndices) {
		t.Errorf("classifier is not deterministic across identical calls")
	}
}

func TestCheckLockRejectsNonOpTrueVault(t *testing.T) {
	idx := newTestIndex(t)
	tx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{
			{Amount: 1 * coin, Script: []byte{0x76, 0xa9}}, // not OP_TRUE
			{Amount: 1 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	v, err := ParseSettlementTx(idx, tx, []InputView{resolvedM0(1*coin + 100)})
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	err = CheckLock(tx, v)
	if err == nil {
		t.Fatalf("expected rejection")
	}
	code, ok := rejects.CodeOf(err)
	if !ok || code != rejects.BadTxLockVaultNotOpTrue {
		t.Errorf("got code %v, want %v", code, rejects.BadTxLockVaultNotOpTrue)
	}
}

// TestCrossWalletPartialUnlock checks the bearer property: the final
// holder partially unlocks without any key from the locker, using only
// the receipt plus a sufficient vault.
func TestCrossWalletPartialUnlock(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()

	lockTx := &txmodel.Tx{
		Type:   txmodel.Lock,
		Inputs: []txmodel.TxIn{{PrevOut: bathash.OutPoint{Index: 0}}},
		Outputs: []txmodel.TxOut{
			{Amount: 10 * coin, Script: []byte{script.OpTrue}},
			{Amount: 10 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	processTx(t, idx, bc, lockTx, []InputView{resolvedM0(10*coin + 1000)}, 1)
	vaultOp := bathash.OutPoint{TxHash: lockTx.Hash(), Index: 0}
	receiptOp := bathash.OutPoint{TxHash: lockTx.Hash(), Index: 1}

	// L -> B -> C: two full transfers of the bearer receipt.
	transfer1 := &txmodel.Tx{
		Type:    txmodel.TransferM1,
		Inputs:  []txmodel.TxIn{{PrevOut: receiptOp}},
		Outputs: []txmodel.TxOut{{Amount: 10 * coin, Script: []byte{0x76, 0xa9}}},
	}
	processTx(t, idx, bc, transfer1, []InputView{{Resolved: true, Amount: 10 * coin}}, 2)
	bReceipt := bathash.OutPoint{TxHash: transfer1.Hash(), Index: 0}

	transfer2 := &txmodel.Tx{
		Type:    txmodel.TransferM1,
		Inputs:  []txmodel.TxIn{{PrevOut: bReceipt}},
		Outputs: []txmodel.TxOut{{Amount: 10 * coin, Script: []byte{0x76, 0xa8}}},
	}
	processTx(t, idx, bc, transfer2, []InputView{{Resolved: true, Amount: 10 * coin}}, 3)
	cReceipt := bathash.OutPoint{TxHash: transfer2.Hash(), Index: 0}

	// C partially unlocks: 4 out, 6 M1 change, 6 vault change.
	unlockTx := &txmodel.Tx{
		Type: txmodel.Unlock,
		Inputs: []txmodel.TxIn{
			{PrevOut: cReceipt},
			{PrevOut: vaultOp},
		},
		Outputs: []txmodel.TxOut{
			{Amount: 4 * coin, Script: []byte{0x76, 0xa8}},
			{Amount: 6 * coin, Script: []byte{0x76, 0xa8}},
			{Amount: 6 * coin, Script: []byte{script.OpTrue}},
		},
	}
	processTx(t, idx, bc, unlockTx, []InputView{
		{Resolved: true, Amount: 10 * coin},
		resolvedVault(10 * coin),
	}, 4)

	state, _ := idx.GetState()
	if state.M0Vaulted != 6*coin || state.M1Supply != 6*coin {
		t.Fatalf("final state = %+v, want (6coin,6coin)", state)
	}
	if err := CheckA6(idx); err != nil {
		t.Fatalf("A6 after cross-wallet unlock: %v", err)
	}
}

// TestTransferFeeTailCreatesNoReceipt verifies the cumulative-sum walk:
// outputs past the M1 total are fee change and must not become receipts,
// and undo removes exactly the receipts apply created.
func TestTransferFeeTailCreatesNoReceipt(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()
	receiptOp := bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("r")), Index: 0}
	if err := idx.PutReceipt(M1Receipt{Outpoint: receiptOp, Amount: 10 * coin}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	tx := &txmodel.Tx{
		Type: txmodel.TransferM1,
		Inputs: []txmodel.TxIn{
			{PrevOut: receiptOp},
			{PrevOut: bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("fee")), Index: 0}},
		},
		Outputs: []txmodel.TxOut{
			{Amount: 10 * coin, Script: []byte{0x76, 0xa9}}, // M1 to recipient
			{Amount: 5000, Script: []byte{0x76, 0xa9}},      // M0 fee change tail
		},
	}
	inputs := []InputView{
		{Resolved: true, Amount: 10 * coin},
		resolvedM0(10_000),
	}
	v := processTx(t, idx, bc, tx, inputs, 2)
	if len(v.M1OutputIndices) != 1 || v.M1OutputIndices[0] != 0 {
		t.Fatalf("M1 output indices = %v, want [0]", v.M1OutputIndices)
	}

	m1Op := bathash.OutPoint{TxHash: tx.Hash(), Index: 0}
	feeOp := bathash.OutPoint{TxHash: tx.Hash(), Index: 1}
	if _, err := idx.GetReceipt(m1Op); err != nil {
		t.Fatalf("M1 output should be a receipt: %v", err)
	}
	if _, err := idx.GetReceipt(feeOp); err != ErrReceiptNotFound {
		t.Errorf("fee tail output must not be a receipt, got err=%v", err)
	}
}

func TestUndoInvertsTransfer(t *testing.T) {
	idx := newTestIndex(t)
	bc := NewBlockContext()
	receiptOp := bathash.OutPoint{TxHash: bathash.DoubleSHA256([]byte("r")), Index: 0}
	seeded := M1Receipt{Outpoint: receiptOp, Amount: 10 * coin, CreateHeight: 7}
	if err := idx.PutReceipt(seeded); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	tx := &txmodel.Tx{
		Type:   txmodel.TransferM1,
		Inputs: []txmodel.TxIn{{PrevOut: receiptOp}},
		Outputs: []txmodel.TxOut{
			{Amount: 4 * coin, Script: []byte{0x76, 0xa9}},
			{Amount: 6 * coin, Script: []byte{0x76, 0xa9}},
		},
	}
	inputs := []InputView{{Resolved: true, Amount: 10 * coin}}
	v, err := ParseSettlementTx(idx, tx, inputs)
	if err != nil {
		t.Fatalf("ParseSettlementTx: %v", err)
	}
	if err := Validate(bc, tx, v); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	undo, err := Apply(idx, bc, tx, v, 8)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := Undo(idx, tx, undo); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	restored, err := idx.GetReceipt(receiptOp)
	if err != nil {
		t.Fatalf("input receipt should be restored: %v", err)
	}
	if *restored != seeded {
		t.Errorf("restored receipt = %+v, want %+v", restored, seeded)
	}
	for i := range tx.Outputs {
		op := bathash.OutPoint{TxHash: tx.Hash(), Index: uint32(i)}
		if _, err := idx.GetReceipt(op); err != ErrReceiptNotFound {
			t.Errorf("output %d receipt should not exist after undo, got err=%v", i, err)
		}
	}
}

func TestAddNoOverflow(t *testing.T) {
	if _, err := AddNoOverflow(1<<62, 1<<62); err != ErrAmountOverflow {
		t.Errorf("expected overflow error, got %v", err)
	}
	sum, err := AddNoOverflow(5, 7)
	if err != nil || sum != 12 {
		t.Errorf("AddNoOverflow(5,7) = (%d,%v), want (12,nil)", sum, err)
	}
}

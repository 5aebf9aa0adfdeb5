// Copyright 2025 The BATHRON developers
//
// Package settlement implements the M0/M1 bearer-asset state machine: the
// LOCK/UNLOCK/TRANSFER_M1 transaction classifier and validators, the
// Vault/M1Receipt indices, and the A6-invariant-preserving apply/undo path.
// It owns the Settlement DB exclusively; no other component writes it.
package settlement

import "github.com/bathron/bathrond/pkg/bathash"

// VaultEntry is a locked M0 deposit, addressed by the outpoint that created
// it. It is erased by the TX_UNLOCK input that spends it and may reappear
// at a new outpoint as vault change.
type VaultEntry struct {
	Outpoint   bathash.OutPoint `json:"outpoint"`
	Amount     int64            `json:"amount"`
	LockHeight uint32           `json:"lock_height"`
}

// M1Receipt is a bearer receipt representing locked M0. It deliberately
// holds no pointer back to its originating vault: any valid receipt plus
// any sufficient vault can unlock, and ownership transfers by holding the
// output.
type M1Receipt struct {
	Outpoint     bathash.OutPoint `json:"outpoint"`
	Amount       int64            `json:"amount"`
	CreateHeight uint32           `json:"create_height"`
}

// State is the global, height-versioned settlement state. The A6 invariant
// (M0Vaulted == M1Supply) must hold at the end of every block; A5
// (M0TotalSupply == sum of finalized burns) is informative only and is
// maintained by the burn-claim engine, not this package.
type State struct {
	M0Vaulted     int64  `json:"m0_vaulted"`
	M1Supply      int64  `json:"m1_supply"`
	M0TotalSupply int64  `json:"m0_total_supply"`
	Height        uint32 `json:"height"`
}

// CheckA6 reports whether the A6 consensus invariant holds.
func (s *State) CheckA6() bool {
	return s.M0Vaulted == s.M1Supply
}

// UndoRecord captures everything needed to reverse one settlement
// transaction's state mutation exactly. Exactly one of the three sections
// is populated, matching the transaction type that produced it.
type UndoRecord struct {
	TxType string `json:"tx_type"`

	// TX_LOCK: the two outpoints created.
	CreatedVault   *bathash.OutPoint `json:"created_vault,omitempty"`
	CreatedReceipt *bathash.OutPoint `json:"created_receipt,omitempty"`

	// TX_UNLOCK: the full structs of everything erased, plus whether
	// change outputs were created (their outpoints are deterministic from
	// the transaction, so only the count/presence needs recording).
	ErasedVaults      []VaultEntry `json:"erased_vaults,omitempty"`
	ErasedReceipts    []M1Receipt  `json:"erased_receipts,omitempty"`
	CreatedM1Change   bool         `json:"created_m1_change,omitempty"`
	CreatedVaultChange bool        `json:"created_vault_change,omitempty"`

	// TX_TRANSFER_M1: the single erased receipt, plus the outpoints of
	// the receipts created for the transaction's M1 outputs (the M0 fee
	// tail, if any, creates none).
	ErasedReceipt   *M1Receipt         `json:"erased_receipt,omitempty"`
	CreatedReceipts []bathash.OutPoint `json:"created_receipts,omitempty"`

	// DeltaM0Vaulted / DeltaM1Supply are the signed changes this
	// transaction applied to State, so Undo can subtract them back out
	// without recomputing from the erased/created structs.
	DeltaM0Vaulted int64 `json:"delta_m0_vaulted"`
	DeltaM1Supply  int64 `json:"delta_m1_supply"`
}

// Copyright 2025 The BATHRON developers

package settlement

import (
	"encoding/json"
	"fmt"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/kvstore"
)

// Index is the read/write interface over the Vault and Receipt indices and
// the global State, backed by kvstore.KV: a thin typed wrapper over
// Get/Set with JSON values, single-writer (package blockvalidator owns
// the chain-state lock serializing callers).
type Index struct {
	kv kvstore.KV
}

// NewIndex wraps a kvstore.KV as a settlement Index.
func NewIndex(kv kvstore.KV) *Index {
	return &Index{kv: kv}
}

// GetVault returns the vault at op, or ErrVaultNotFound.
func (idx *Index) GetVault(op bathash.OutPoint) (*VaultEntry, error) {
	b, err := idx.kv.Get(kvstore.VaultKey(op.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("settlement: get vault: %w", err)
	}
	if b == nil {
		return nil, ErrVaultNotFound
	}
	var v VaultEntry
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("settlement: unmarshal vault: %w", err)
	}
	return &v, nil
}

// HasVault reports whether a vault exists at op without erroring on absence.
func (idx *Index) HasVault(op bathash.OutPoint) (bool, error) {
	_, err := idx.GetVault(op)
	if err == ErrVaultNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PutVault writes a vault entry.
func (idx *Index) PutVault(v VaultEntry) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("settlement: marshal vault: %w", err)
	}
	if err := idx.kv.Set(kvstore.VaultKey(v.Outpoint.Bytes()), b); err != nil {
		return fmt.Errorf("settlement: put vault: %w", err)
	}
	return nil
}

// DeleteVault erases the vault at op.
func (idx *Index) DeleteVault(op bathash.OutPoint) error {
	if err := idx.kv.Delete(kvstore.VaultKey(op.Bytes())); err != nil {
		return fmt.Errorf("settlement: delete vault: %w", err)
	}
	return nil
}

// GetReceipt returns the receipt at op, or ErrReceiptNotFound.
func (idx *Index) GetReceipt(op bathash.OutPoint) (*M1Receipt, error) {
	b, err := idx.kv.Get(kvstore.ReceiptKey(op.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("settlement: get receipt: %w", err)
	}
	if b == nil {
		return nil, ErrReceiptNotFound
	}
	var r M1Receipt
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("settlement: unmarshal receipt: %w", err)
	}
	return &r, nil
}

// HasReceipt reports whether a receipt exists at op without erroring on
// absence.
func (idx *Index) HasReceipt(op bathash.OutPoint) (bool, error) {
	_, err := idx.GetReceipt(op)
	if err == ErrReceiptNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PutReceipt writes a receipt.
func (idx *Index) PutReceipt(r M1Receipt) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("settlement: marshal receipt: %w", err)
	}
	if err := idx.kv.Set(kvstore.ReceiptKey(r.Outpoint.Bytes()), b); err != nil {
		return fmt.Errorf("settlement: put receipt: %w", err)
	}
	return nil
}

// DeleteReceipt erases the receipt at op.
func (idx *Index) DeleteReceipt(op bathash.OutPoint) error {
	if err := idx.kv.Delete(kvstore.ReceiptKey(op.Bytes())); err != nil {
		return fmt.Errorf("settlement: delete receipt: %w", err)
	}
	return nil
}

// GetState returns the current SettlementState, or the zero state if none
// has been written yet (height 0, pre-genesis).
func (idx *Index) GetState() (*State, error) {
	b, err := idx.kv.Get(kvstore.SettlementStateKey())
	if err != nil {
		return nil, fmt.Errorf("settlement: get state: %w", err)
	}
	if b == nil {
		return &State{}, nil
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("settlement: unmarshal state: %w", err)
	}
	return &s, nil
}

// PutState writes the SettlementState.
func (idx *Index) PutState(s *State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("settlement: marshal state: %w", err)
	}
	if err := idx.kv.Set(kvstore.SettlementStateKey(), b); err != nil {
		return fmt.Errorf("settlement: put state: %w", err)
	}
	return nil
}

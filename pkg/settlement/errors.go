// Copyright 2025 The BATHRON developers

package settlement

import "errors"

// Sentinel errors for settlement store lookups and invariant checks.
var (
	ErrVaultNotFound   = errors.New("settlement: vault not found")
	ErrReceiptNotFound = errors.New("settlement: receipt not found")
	ErrAmountOverflow  = errors.New("settlement: amount addition overflowed")
	ErrA6Broken        = errors.New("settlement: A6 invariant violated")
)

// Copyright 2025 The BATHRON developers

package settlement

import "math/big"

// MaxMoney is the largest amount, in satoshi, any single output or running
// total may hold. Values are otherwise signed 64-bit; this cap keeps
// legitimate arithmetic far from the int64 boundary so AddNoOverflow's
// widening check is a defense against malformed input, never a real limit.
const MaxMoney int64 = 21_000_000 * 100_000_000

// InMoneyRange reports whether amount is a valid non-negative, in-range
// monetary value.
func InMoneyRange(amount int64) bool {
	return amount >= 0 && amount <= MaxMoney
}

// AddNoOverflow adds a and b in a 128-bit-wide intermediate and reports
// ErrAmountOverflow if the true sum does not fit back into int64, rather
// than silently wrapping. Every accumulation of amounts in this package
// goes through this helper.
func AddNoOverflow(a, b int64) (int64, error) {
	sum := new(big.Int).Add(big.NewInt(a), big.NewInt(b))
	if !sum.IsInt64() {
		return 0, ErrAmountOverflow
	}
	return sum.Int64(), nil
}

// SubNoOverflow subtracts b from a in a 128-bit-wide intermediate.
func SubNoOverflow(a, b int64) (int64, error) {
	diff := new(big.Int).Sub(big.NewInt(a), big.NewInt(b))
	if !diff.IsInt64() {
		return 0, ErrAmountOverflow
	}
	return diff.Int64(), nil
}

// sumAmounts adds a slice of amounts with overflow checking at each step.
func sumAmounts(amounts []int64) (int64, error) {
	var total int64
	var err error
	for _, a := range amounts {
		total, err = AddNoOverflow(total, a)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Copyright 2025 The BATHRON developers
//
// Package rejects centralizes the stable reject-reason strings that the
// settlement, burn-claim, and mint components return to the block-acceptance
// layer. Monitoring and external dashboards parse these strings verbatim;
// a new string requires a coordinated upgrade, so call sites must use the
// Code constants here rather than inlining literals.
package rejects

// Code is a stable, externally-observed reject reason string.
type Code string

const (
	BadTxLockType           Code = "bad-txlock-type"
	BadTxLockOutputCount    Code = "bad-txlock-output-count"
	BadTxLockAmountZero     Code = "bad-txlock-amount-zero"
	BadTxLockAmountMismatch Code = "bad-txlock-amount-mismatch"
	BadTxLockVaultNotOpTrue Code = "bad-txlock-vault-not-optrue"
	BadTxLockReplayedReceipt Code = "bad-txlock-replayed-receipt"

	BadTxUnlockNoReceipts           Code = "bad-txunlock-no-receipts"
	BadTxUnlockFeeBeforeVault       Code = "bad-txunlock-fee-before-vault"
	BadTxUnlockM0ExceedsVault       Code = "bad-txunlock-m0-exceeds-vault"
	BadTxUnlockConservationViolated Code = "bad-txunlock-conservation-violated"

	BadTxTransferNoReceiptInput Code = "bad-txtransfer-no-receipt-input"
	BadTxTransferReceiptNotVin0 Code = "bad-txtransfer-receipt-not-vin0"
	BadTxTransferInvalidOutputs Code = "bad-txtransfer-invalid-outputs"
	BadTxTransferM1NotConserved Code = "bad-txtransfer-m1-not-conserved"

	BadTxnsOpTrueForbidden Code = "bad-txns-optrue-forbidden"

	BurnClaimParseFailed      Code = "burn-claim-parse-failed"
	BurnClaimDuplicate        Code = "burn-claim-duplicate"
	BurnClaimUnknownBlock     Code = "burn-claim-unknown-block"
	BurnClaimBlockNotBest     Code = "burn-claim-block-not-best"
	BurnClaimHeightMismatch   Code = "burn-claim-height-mismatch"
	BurnClaimSPVRange         Code = "burn-claim-spv-range"
	BurnClaimMerkleInvalid    Code = "burn-claim-merkle-invalid"
	BurnClaimFormatInvalid    Code = "burn-claim-format-invalid"
	BurnClaimNetworkMismatch  Code = "burn-claim-network-mismatch"
	BtcBurnsDisabledEmergency Code = "btc-burns-disabled-emergency"

	MintNotSpecial     Code = "mint-not-special"
	MintNoPayload      Code = "mint-no-payload"
	MintPayloadDecode  Code = "mint-payload-decode"
	MintPayloadInvalid Code = "mint-payload-invalid"
	MintHasInputs      Code = "mint-has-inputs"
	MintOutputCount    Code = "mint-output-count"
	MintUnknownClaim   Code = "mint-unknown-claim"
	MintNotPending     Code = "mint-not-pending"
	MintClaimTooEarly  Code = "mint-claim-too-early"
	MintBtcInvalid     Code = "mint-btc-invalid"
	MintAmountRange    Code = "mint-amount-range"
	MintAmountDust     Code = "mint-amount-dust"
	MintDestMismatch   Code = "mint-dest-mismatch"
	MintAmountMismatch Code = "mint-amount-mismatch"
	MintNotSorted      Code = "mint-not-sorted"

	SettlementA6Broken    Code = "settlement-a6-broken"
	SettlementAmountOverflow Code = "settlement-amount-overflow"
)

// Err is the error type carried through the validation path for a rejected
// transaction or block. It is never panicked; it is returned up to the
// block-acceptance layer and surfaced to RPC/CLI callers with the code
// verbatim plus a human-readable message.
type Err struct {
	Code Code
	Msg  string
}

func (e *Err) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Msg
}

// New builds a rejects.Err for the given code with an additional human
// message. Use NewBare when the code alone is self-explanatory.
func New(code Code, msg string) error {
	return &Err{Code: code, Msg: msg}
}

// NewBare builds a rejects.Err with no additional message.
func NewBare(code Code) error {
	return &Err{Code: code}
}

// CodeOf extracts the stable Code from err if it (or something it wraps) is
// a *Err, and reports whether one was found. RPC/monitoring layers use this
// to recover the bare string regardless of wrapping depth.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		if e, ok := err.(*Err); ok {
			return e.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return "", false
}

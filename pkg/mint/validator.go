package mint

import (
	"github.com/bathron/bathrond/pkg/btcburn"
	"github.com/bathron/bathrond/pkg/rejects"
	"github.com/bathron/bathrond/pkg/script"
	"github.com/bathron/bathrond/pkg/settlement"
	"github.com/bathron/bathrond/pkg/txmodel"
)

// CheckMintM0BTC is the byte-exact mint validator: every node must accept
// or reject an identical TX_MINT_M0BTC identically.
// Returns the records confirmed eligible, in the order they match tx's
// outputs, for Connect to use without re-deriving them.
func CheckMintM0BTC(engine *btcburn.Engine, store *btcburn.Store, tx *txmodel.Tx, blockHeight uint32) ([]*btcburn.Record, error) {
	if tx.Type != txmodel.MintM0BTC {
		return nil, rejects.NewBare(rejects.MintNotSpecial)
	}
	if len(tx.ExtraPayload) == 0 {
		return nil, rejects.NewBare(rejects.MintNoPayload)
	}

	payload, err := DecodePayload(tx.ExtraPayload)
	if err != nil {
		return nil, rejects.New(rejects.MintPayloadDecode, err.Error())
	}
	if len(payload.BtcTxids) == 0 || len(payload.BtcTxids) > MaxMintClaimsPerBlock {
		return nil, rejects.NewBare(rejects.MintPayloadInvalid)
	}
	if !IsStrictlySortedNoDuplicates(payload.BtcTxids) {
		return nil, rejects.NewBare(rejects.MintNotSorted)
	}

	if len(tx.Inputs) != 0 {
		return nil, rejects.NewBare(rejects.MintHasInputs)
	}
	if len(tx.Outputs) != len(payload.BtcTxids) {
		return nil, rejects.NewBare(rejects.MintOutputCount)
	}

	if engine.Kill.Enabled() {
		return nil, rejects.NewBare(rejects.BtcBurnsDisabledEmergency)
	}

	records := make([]*btcburn.Record, len(payload.BtcTxids))
	for i, txid := range payload.BtcTxids {
		rec, err := store.GetRecord(txid)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, rejects.NewBare(rejects.MintUnknownClaim)
		}
		if rec.Status != btcburn.StatusPending {
			return nil, rejects.NewBare(rejects.MintNotPending)
		}
		if !engine.Mature(rec, blockHeight) {
			return nil, rejects.NewBare(rejects.MintClaimTooEarly)
		}
		if !engine.SPVValid(rec) {
			return nil, rejects.NewBare(rejects.MintBtcInvalid)
		}

		out := tx.Outputs[i]
		if out.Amount != rec.BurnedSats {
			return nil, rejects.NewBare(rejects.MintAmountMismatch)
		}
		if !settlement.InMoneyRange(out.Amount) {
			return nil, rejects.NewBare(rejects.MintAmountRange)
		}
		if out.Amount < btcburn.MinBurnSats {
			return nil, rejects.NewBare(rejects.MintAmountDust)
		}
		if !script.IsP2PKHTo(out.Script, rec.BathronDest) {
			return nil, rejects.NewBare(rejects.MintDestMismatch)
		}

		records[i] = rec
	}

	return records, nil
}

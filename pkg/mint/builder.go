package mint

import (
	"bytes"
	"sort"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/btcburn"
	"github.com/bathron/bathrond/pkg/script"
	"github.com/bathron/bathrond/pkg/txmodel"
)

// CreateMintM0BTC is the block-producer builder: it enumerates PENDING
// claims, keeps those eligible at blockHeight, sorts their txids
// lexicographically, truncates to MaxMintClaimsPerBlock, and emits a
// TX_MINT_M0BTC. Returns (nil, nil) if no claim is eligible.
//
// Determinism follows from iterating the full eligible
// set before sorting and truncating: two nodes with identical burn DB
// contents and identical BtcHeaderSource answers always retain the same
// txids in the same order.
func CreateMintM0BTC(engine *btcburn.Engine, store *btcburn.Store, blockHeight uint32) (*txmodel.Tx, error) {
	var eligible []*btcburn.Record

	err := store.IteratePending(func(rec *btcburn.Record) bool {
		if engine.Eligible(rec, blockHeight) {
			eligible = append(eligible, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		return bytes.Compare(eligible[i].BtcTxid.Bytes(), eligible[j].BtcTxid.Bytes()) < 0
	})
	if len(eligible) > MaxMintClaimsPerBlock {
		eligible = eligible[:MaxMintClaimsPerBlock]
	}

	txids := make([]bathash.Hash256, len(eligible))
	outputs := make([]txmodel.TxOut, len(eligible))
	for i, rec := range eligible {
		txids[i] = rec.BtcTxid
		outputs[i] = txmodel.TxOut{
			Amount: rec.BurnedSats,
			Script: script.P2PKH(rec.BathronDest),
		}
	}

	payload := &Payload{Version: 1, BtcTxids: txids}
	return &txmodel.Tx{
		Type:         txmodel.MintM0BTC,
		Inputs:       nil,
		Outputs:      outputs,
		ExtraPayload: payload.Marshal(),
	}, nil
}

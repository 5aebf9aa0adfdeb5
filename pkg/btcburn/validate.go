package btcburn

import (
	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/btcwire"
	"github.com/bathron/bathrond/pkg/chainiface"
	"github.com/bathron/bathrond/pkg/rejects"
)

// Engine bundles the burn-claim store, the external header source, the
// kill switch, and which network's burn payloads it accepts.
type Engine struct {
	Store   *Store
	Headers chainiface.BtcHeaderSource
	Kill    *chainiface.KillSwitch
	Net     Network
}

func NewEngine(store *Store, headers chainiface.BtcHeaderSource, kill *chainiface.KillSwitch, net Network) *Engine {
	return &Engine{Store: store, Headers: headers, Kill: kill, Net: net}
}

// IsBlocked implements the anti-replay check: a FINAL record blocks its
// txid forever, a PENDING record blocks only while its BTC block remains
// in the SPV best chain, so a burn whose block is reorged out becomes
// re-claimable.
func (e *Engine) IsBlocked(txid bathash.Hash256) (bool, error) {
	rec, err := e.Store.GetRecord(txid)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if rec.Status == StatusFinal {
		return true, nil
	}
	// PENDING: blocked only while its BTC block is still in the best chain.
	return e.Headers.IsInBestChain(rec.BtcBlockHash), nil
}

// CheckBurnClaim runs the ordered burn-claim validation: kill switch,
// payload decode, BTC tx parse, anti-replay, header lookup and SPV range,
// height match, Merkle proof, burn format, network byte. On success it
// returns the decoded payload and the detected burn outputs so the caller
// can build the Record without re-parsing.
func (e *Engine) CheckBurnClaim(extraPayload []byte) (*Payload, *BurnOutputs, error) {
	if e.Kill.Enabled() {
		return nil, nil, rejects.NewBare(rejects.BtcBurnsDisabledEmergency)
	}

	payload, err := DecodePayload(extraPayload)
	if err != nil {
		return nil, nil, rejects.New(rejects.BurnClaimParseFailed, err.Error())
	}

	tx, err := btcwire.Parse(payload.BtcTxBytes)
	if err != nil {
		return nil, nil, rejects.New(rejects.BurnClaimParseFailed, err.Error())
	}

	blocked, err := e.IsBlocked(tx.BTxID)
	if err != nil {
		return nil, nil, err
	}
	if blocked {
		return nil, nil, rejects.NewBare(rejects.BurnClaimDuplicate)
	}

	header, ok := e.Headers.GetHeaderByHash(payload.BtcBlockHash)
	if !ok {
		return nil, nil, rejects.NewBare(rejects.BurnClaimUnknownBlock)
	}
	if header.Height < e.Headers.MinSupportedHeight() {
		return nil, nil, rejects.NewBare(rejects.BurnClaimSPVRange)
	}
	if !e.Headers.IsInBestChain(payload.BtcBlockHash) {
		return nil, nil, rejects.NewBare(rejects.BurnClaimBlockNotBest)
	}

	if header.Height != payload.BtcBlockHeight {
		return nil, nil, rejects.NewBare(rejects.BurnClaimHeightMismatch)
	}

	if !e.Headers.VerifyMerkleProof(tx.BTxID, header.MerkleRoot, payload.MerkleProof, payload.TxIndex) {
		return nil, nil, rejects.NewBare(rejects.BurnClaimMerkleInvalid)
	}

	burn, err := DetectBurn(tx)
	if err != nil {
		return nil, nil, rejects.New(rejects.BurnClaimFormatInvalid, err.Error())
	}

	if burn.Net != e.Net {
		return nil, nil, rejects.NewBare(rejects.BurnClaimNetworkMismatch)
	}

	return payload, burn, nil
}

// BuildRecord constructs the PENDING record for a just-validated claim,
// for the caller to persist via Store.ConnectClaim at claimHeight.
func BuildRecord(txid bathash.Hash256, payload *Payload, burn *BurnOutputs, claimHeight uint32) *Record {
	return &Record{
		BtcTxid:      txid,
		BtcBlockHash: payload.BtcBlockHash,
		BtcHeight:    payload.BtcBlockHeight,
		BurnedSats:   burn.BurnedSats,
		BathronDest:  burn.Dest,
		ClaimHeight:  claimHeight,
		FinalHeight:  0,
		Status:       StatusPending,
	}
}

// Mature reports whether the K_finality waiting period has elapsed for rec
// at block height h: h > claim_height + K_finality.
func (e *Engine) Mature(rec *Record, h uint32) bool {
	return h > rec.ClaimHeight+ParamsFor(e.Net).KFinality
}

// SPVValid reports whether rec's BTC block still resolves to the same BTC
// height in the header source and has reached K_confirmations on the BTC
// best chain. Both queries go through the consensus-replicated header
// store, never wall clock or local-only SPV state.
func (e *Engine) SPVValid(rec *Record) bool {
	header, ok := e.Headers.GetHeaderByHash(rec.BtcBlockHash)
	if !ok || header.Height != rec.BtcHeight {
		return false
	}
	tip := e.Headers.TipHeight()
	if tip < rec.BtcHeight {
		return false
	}
	confirmations := tip - rec.BtcHeight + 1
	return confirmations >= ParamsFor(e.Net).KConfirmations
}

// Eligible reports whether rec is eligible for finalization at block
// height h. Both CreateMintM0BTC (builder) and CheckMintM0BTC (validator)
// derive from the same Mature/SPVValid pair so they always agree.
func (e *Engine) Eligible(rec *Record, h uint32) bool {
	return rec.Status == StatusPending && e.Mature(rec, h) && e.SPVValid(rec)
}

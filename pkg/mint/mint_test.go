package mint

import (
	"testing"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/btcburn"
	"github.com/bathron/bathrond/pkg/chainiface"
	"github.com/bathron/bathrond/pkg/kvstore"
	"github.com/bathron/bathrond/pkg/script"
	"github.com/bathron/bathrond/pkg/txmodel"
)

type fakeHeaders struct {
	byHash map[bathash.Hash256]chainiface.BtcHeader
	tip    uint32
}

func newFakeHeaders() *fakeHeaders {
	return &fakeHeaders{byHash: map[bathash.Hash256]chainiface.BtcHeader{}}
}

func (f *fakeHeaders) addBlock(height uint32, hash bathash.Hash256) {
	f.byHash[hash] = chainiface.BtcHeader{Hash: hash, Height: height}
}

func (f *fakeHeaders) GetHeaderByHash(h bathash.Hash256) (chainiface.BtcHeader, bool) {
	hdr, ok := f.byHash[h]
	return hdr, ok
}
func (f *fakeHeaders) GetHashAtHeight(uint32) (bathash.Hash256, bool) { return bathash.Hash256{}, false }
func (f *fakeHeaders) TipHeight() uint32                              { return f.tip }
func (f *fakeHeaders) VerifyMerkleProof(bathash.Hash256, bathash.Hash256, []bathash.Hash256, uint32) bool {
	return true
}
func (f *fakeHeaders) MinSupportedHeight() uint32        { return 0 }
func (f *fakeHeaders) IsInBestChain(bathash.Hash256) bool { return true }

// setupEligiblePair records two PENDING claims, both eligible at
// blockHeight 121: claim_height=100, K_finality=20 testnet, 6+ BTC
// confirmations at btc_height 200050/200051.
func setupEligiblePair(t *testing.T) (*btcburn.Engine, *btcburn.Store, bathash.Hash256, bathash.Hash256) {
	t.Helper()
	kv := kvstore.NewMemDB()
	store := btcburn.NewStore(kv)
	headers := newFakeHeaders()
	kill := &chainiface.KillSwitch{}
	engine := btcburn.NewEngine(store, headers, kill, btcburn.NetworkTestnet)

	blockA := bathash.DoubleSHA256([]byte("btc-block-a"))
	blockB := bathash.DoubleSHA256([]byte("btc-block-b"))
	headers.addBlock(200050, blockA)
	headers.addBlock(200051, blockB)
	headers.tip = 200051 + btcburn.KConfirmationsTestnet

	txidA := bathash.DoubleSHA256([]byte("burn-a"))
	txidB := bathash.DoubleSHA256([]byte("burn-b"))

	recA := &btcburn.Record{
		BtcTxid: txidA, BtcBlockHash: blockA, BtcHeight: 200050,
		BurnedSats: 1_000_000, ClaimHeight: 100, Status: btcburn.StatusPending,
	}
	recA.BathronDest[0] = 0xaa
	recB := &btcburn.Record{
		BtcTxid: txidB, BtcBlockHash: blockB, BtcHeight: 200051,
		BurnedSats: 2_000_000, ClaimHeight: 100, Status: btcburn.StatusPending,
	}
	recB.BathronDest[0] = 0xbb

	if err := store.ConnectClaim(recA); err != nil {
		t.Fatalf("ConnectClaim a: %v", err)
	}
	if err := store.ConnectClaim(recB); err != nil {
		t.Fatalf("ConnectClaim b: %v", err)
	}
	return engine, store, txidA, txidB
}

func TestCreateMintM0BTCSortsAndBuilds(t *testing.T) {
	engine, store, txidA, txidB := setupEligiblePair(t)

	tx, err := CreateMintM0BTC(engine, store, 121)
	if err != nil {
		t.Fatalf("CreateMintM0BTC: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a mint transaction")
	}
	if len(tx.Inputs) != 0 {
		t.Errorf("mint transaction must have no inputs")
	}
	if len(tx.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(tx.Outputs))
	}

	payload, err := DecodePayload(tx.ExtraPayload)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if !IsStrictlySortedNoDuplicates(payload.BtcTxids) {
		t.Errorf("expected strictly sorted txids")
	}
	// both of the two claims must appear, in canonical sorted order.
	seen := map[bathash.Hash256]bool{txidA: false, txidB: false}
	for _, id := range payload.BtcTxids {
		if _, ok := seen[id]; !ok {
			t.Fatalf("unexpected txid %x in payload", id)
		}
		seen[id] = true
	}
	for id, ok := range seen {
		if !ok {
			t.Errorf("expected txid %x in payload", id)
		}
	}
}

func TestCreateMintM0BTCNoneEligibleReturnsNil(t *testing.T) {
	kv := kvstore.NewMemDB()
	store := btcburn.NewStore(kv)
	headers := newFakeHeaders()
	engine := btcburn.NewEngine(store, headers, &chainiface.KillSwitch{}, btcburn.NetworkTestnet)

	tx, err := CreateMintM0BTC(engine, store, 121)
	if err != nil {
		t.Fatalf("CreateMintM0BTC: %v", err)
	}
	if tx != nil {
		t.Errorf("expected no mint transaction when nothing is eligible")
	}
}

func TestCheckMintM0BTCAcceptsBuilderOutput(t *testing.T) {
	engine, store, _, _ := setupEligiblePair(t)

	tx, err := CreateMintM0BTC(engine, store, 121)
	if err != nil || tx == nil {
		t.Fatalf("CreateMintM0BTC: %v, tx=%v", err, tx)
	}

	records, err := CheckMintM0BTC(engine, store, tx, 121)
	if err != nil {
		t.Fatalf("CheckMintM0BTC rejected builder's own output: %v", err)
	}
	if len(records) != len(tx.Outputs) {
		t.Fatalf("expected %d records, got %d", len(tx.Outputs), len(records))
	}
	for i, rec := range records {
		out := tx.Outputs[i]
		if out.Amount != rec.BurnedSats {
			t.Errorf("output %d amount %d != record burned sats %d", i, out.Amount, rec.BurnedSats)
		}
		if !script.IsP2PKHTo(out.Script, rec.BathronDest) {
			t.Errorf("output %d script does not pay record's destination", i)
		}
	}
}

func TestCheckMintM0BTCRejectsUnsortedPayload(t *testing.T) {
	engine, store, txidA, txidB := setupEligiblePair(t)

	// Deliberately construct the payload with txids in reverse order to
	// whichever the lexicographic order actually is.
	ids := []bathash.Hash256{txidA, txidB}
	if IsStrictlySortedNoDuplicates(ids) {
		ids = []bathash.Hash256{txidB, txidA}
	}
	payload := &Payload{Version: 1, BtcTxids: ids}
	tx := &txmodel.Tx{
		Type: txmodel.MintM0BTC,
		Outputs: []txmodel.TxOut{
			{Amount: 1_000_000, Script: script.P2PKH(bathash.Hash160{0xaa})},
			{Amount: 2_000_000, Script: script.P2PKH(bathash.Hash160{0xbb})},
		},
		ExtraPayload: payload.Marshal(),
	}

	if _, err := CheckMintM0BTC(engine, store, tx, 121); err == nil {
		t.Fatal("expected rejection of an unsorted txid list")
	}
}

func TestCheckMintM0BTCRejectsNonEmptyInputs(t *testing.T) {
	engine, store, txidA, _ := setupEligiblePair(t)

	payload := &Payload{Version: 1, BtcTxids: []bathash.Hash256{txidA}}
	tx := &txmodel.Tx{
		Type:         txmodel.MintM0BTC,
		Inputs:       []txmodel.TxIn{{}},
		Outputs:      []txmodel.TxOut{{Amount: 1_000_000, Script: script.P2PKH(bathash.Hash160{0xaa})}},
		ExtraPayload: payload.Marshal(),
	}

	if _, err := CheckMintM0BTC(engine, store, tx, 121); err == nil {
		t.Fatal("expected rejection of a mint transaction carrying inputs")
	}
}

// TestMintDeterminism checks that two independent builder runs over
// identical burn-DB contents and identical header-source answers produce
// byte-identical transactions.
func TestMintDeterminism(t *testing.T) {
	engine1, store1, _, _ := setupEligiblePair(t)
	engine2, store2, _, _ := setupEligiblePair(t)

	tx1, err := CreateMintM0BTC(engine1, store1, 121)
	if err != nil {
		t.Fatalf("CreateMintM0BTC (first): %v", err)
	}
	tx2, err := CreateMintM0BTC(engine2, store2, 121)
	if err != nil {
		t.Fatalf("CreateMintM0BTC (second): %v", err)
	}

	p1 := DecodeMust(t, tx1.ExtraPayload)
	p2 := DecodeMust(t, tx2.ExtraPayload)
	if len(p1.BtcTxids) != len(p2.BtcTxids) {
		t.Fatalf("txid count differs: %d vs %d", len(p1.BtcTxids), len(p2.BtcTxids))
	}
	for i := range p1.BtcTxids {
		if p1.BtcTxids[i] != p2.BtcTxids[i] {
			t.Errorf("txid %d differs between runs", i)
		}
	}
	if len(tx1.Outputs) != len(tx2.Outputs) {
		t.Fatalf("output count differs")
	}
	for i := range tx1.Outputs {
		if tx1.Outputs[i].Amount != tx2.Outputs[i].Amount {
			t.Errorf("output %d amount differs", i)
		}
	}
	if tx1.Hash() != tx2.Hash() {
		t.Errorf("mint transactions are not byte-identical: %s vs %s", tx1.Hash(), tx2.Hash())
	}
}

func DecodeMust(t *testing.T, b []byte) *Payload {
	t.Helper()
	p, err := DecodePayload(b)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	return p
}

// TestConnectDisconnectRoundTrip checks that Connect finalizes claims and
// grows supply, and Disconnect reverses both exactly.
func TestConnectDisconnectRoundTrip(t *testing.T) {
	engine, store, txidA, txidB := setupEligiblePair(t)

	tx, err := CreateMintM0BTC(engine, store, 121)
	if err != nil || tx == nil {
		t.Fatalf("CreateMintM0BTC: %v, tx=%v", err, tx)
	}
	records, err := CheckMintM0BTC(engine, store, tx, 121)
	if err != nil {
		t.Fatalf("CheckMintM0BTC: %v", err)
	}

	if err := Connect(store, records, 121); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	supply, err := store.GetM0BTCSupply()
	if err != nil {
		t.Fatalf("GetM0BTCSupply: %v", err)
	}
	if supply != 3_000_000 {
		t.Errorf("supply = %d, want 3000000", supply)
	}

	recA, err := store.GetRecord(txidA)
	if err != nil {
		t.Fatalf("GetRecord a: %v", err)
	}
	if recA.Status != btcburn.StatusFinal || recA.FinalHeight != 121 {
		t.Errorf("record a not finalized: %+v", recA)
	}
	recB, err := store.GetRecord(txidB)
	if err != nil {
		t.Fatalf("GetRecord b: %v", err)
	}
	if recB.Status != btcburn.StatusFinal {
		t.Errorf("record b not finalized: %+v", recB)
	}

	if err := Disconnect(store, records); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	supply, err = store.GetM0BTCSupply()
	if err != nil {
		t.Fatalf("GetM0BTCSupply after disconnect: %v", err)
	}
	if supply != 0 {
		t.Errorf("supply after disconnect = %d, want 0", supply)
	}

	recA, err = store.GetRecord(txidA)
	if err != nil {
		t.Fatalf("GetRecord a after disconnect: %v", err)
	}
	if recA.Status != btcburn.StatusPending || recA.FinalHeight != 0 {
		t.Errorf("record a not back to pending: %+v", recA)
	}
}

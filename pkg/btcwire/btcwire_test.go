package btcwire

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func buildWitnessTx(t *testing.T) []byte {
	t.Helper()
	msg := wire.NewMsgTx(wire.TxVersion)

	var prevHash chainhash.Hash
	prevHash[0] = 0xaa
	in := wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil)
	in.Witness = wire.TxWitness{[]byte{0x01, 0x02}, []byte{0x03, 0x04}}
	msg.AddTxIn(in)
	msg.AddTxOut(wire.NewTxOut(50_000, []byte{0x76, 0xa9}))

	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		t.Fatalf("serialize fixture: %v", err)
	}
	return buf.Bytes()
}

func TestParseDistinguishesBTxidFromWTxid(t *testing.T) {
	raw := buildWitnessTx(t)

	tx, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tx.BTxID == tx.WTxID {
		t.Errorf("btxid and wtxid should differ for a witness transaction, both = %s", tx.BTxID)
	}
	if len(tx.Msg.TxIn) != 1 || len(tx.Msg.TxOut) != 1 {
		t.Errorf("unexpected parsed shape: %d inputs, %d outputs", len(tx.Msg.TxIn), len(tx.Msg.TxOut))
	}
}

func TestParseRejectsOversizedConsensusInput(t *testing.T) {
	raw := make([]byte, ConsensusMaxBytes+1)
	if _, err := Parse(raw); err == nil {
		t.Errorf("expected rejection of oversized input")
	}
}

func TestParseSanityAcceptsWellFormedTx(t *testing.T) {
	raw := buildWitnessTx(t)
	if _, err := ParseSanity(raw); err != nil {
		t.Errorf("ParseSanity on a well-formed small tx failed: %v", err)
	}
}

// Copyright 2025 The BATHRON developers
//
// Package btcburn implements the Burn Claim Engine: detecting a BATHRON
// burn in a Bitcoin transaction, validating a TX_BURN_CLAIM against an
// SPV header source, anti-replay with deterministic release on reorg,
// and the PENDING -> FINAL lifecycle driven by TX_MINT_M0BTC.
package btcburn

import (
	"encoding/binary"

	"github.com/bathron/bathrond/pkg/bathash"
)

// Status is the persisted lifecycle state of a burn claim record.
type Status byte

const (
	StatusPending Status = 0
	StatusFinal   Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusFinal:
		return "FINAL"
	default:
		return "UNKNOWN"
	}
}

// Network identifies which Bitcoin network a burn's OP_RETURN payload was
// tagged for. Either the reserved ASCII letter or the numeric tag is
// accepted on read.
type Network byte

const (
	NetworkMainnet Network = 0x00
	NetworkTestnet Network = 0x01
)

func classifyNetworkByte(b byte) (Network, bool) {
	switch b {
	case 0x00, 'M':
		return NetworkMainnet, true
	case 0x01, 'T':
		return NetworkTestnet, true
	default:
		return 0, false
	}
}

// Per-network finality parameters: K_finality BATHRON blocks between a
// PENDING claim and mint eligibility, K_confirmations Bitcoin
// confirmations before a burn may finalize.
const (
	KFinalityMainnet      = 100
	KFinalityTestnet      = 20
	KConfirmationsMainnet = 24
	KConfirmationsTestnet = 6
)

// MinBurnSats is the minimum accepted burn output value.
const MinBurnSats = 1000

// MaxMintClaimsPerBlock bounds how many claims CreateMintM0BTC retains.
const MaxMintClaimsPerBlock = 100

// MaxMerkleProofSteps bounds merkle_proof length.
const MaxMerkleProofSteps = 40

// MaxClaimsPerBlock bounds TX_BURN_CLAIM transactions accepted per block.
const MaxClaimsPerBlock = 50

// Params bundles the finality/confirmation thresholds for one network so
// callers don't thread two separate constants through every call.
type Params struct {
	KFinality      uint32
	KConfirmations uint32
}

func ParamsFor(net Network) Params {
	if net == NetworkMainnet {
		return Params{KFinality: KFinalityMainnet, KConfirmations: KConfirmationsMainnet}
	}
	return Params{KFinality: KFinalityTestnet, KConfirmations: KConfirmationsTestnet}
}

// Record is the persisted BurnClaimRecord, keyed by btc_txid (Cc prefix).
type Record struct {
	BtcTxid      bathash.Hash256
	BtcBlockHash bathash.Hash256
	BtcHeight    uint32
	BurnedSats   int64
	BathronDest  bathash.Hash160
	ClaimHeight  uint32
	FinalHeight  uint32
	Status       Status
}

// Marshal encodes r as a fixed-width byte-exact record: txid(32)
// blockhash(32) height(4) sats(8) dest(20) claimheight(4) finalheight(4)
// status(1).
func (r *Record) Marshal() []byte {
	buf := make([]byte, 0, 32+32+4+8+20+4+4+1)
	buf = append(buf, r.BtcTxid.Bytes()...)
	buf = append(buf, r.BtcBlockHash.Bytes()...)
	buf = appendU32(buf, r.BtcHeight)
	buf = appendU64(buf, uint64(r.BurnedSats))
	buf = append(buf, r.BathronDest[:]...)
	buf = appendU32(buf, r.ClaimHeight)
	buf = appendU32(buf, r.FinalHeight)
	buf = append(buf, byte(r.Status))
	return buf
}

func UnmarshalRecord(b []byte) (*Record, error) {
	const want = 32 + 32 + 4 + 8 + 20 + 4 + 4 + 1
	if len(b) != want {
		return nil, errRecordLength(len(b), want)
	}
	r := &Record{}
	off := 0
	copy(r.BtcTxid[:], b[off:off+32])
	off += 32
	copy(r.BtcBlockHash[:], b[off:off+32])
	off += 32
	r.BtcHeight = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	r.BurnedSats = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	copy(r.BathronDest[:], b[off:off+20])
	off += 20
	r.ClaimHeight = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	r.FinalHeight = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	r.Status = Status(b[off])
	return r, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

package btcburn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/btcwire"
)

// burnOpReturnMagic is the literal 7-byte tag every BATHRON burn
// OP_RETURN payload starts with.
var burnOpReturnMagic = []byte("BATHRON")

const burnOpReturnLen = 7 + 1 + 1 + 20 // magic + version + network + hash160

// burnScriptSha256Zero is sha256(0x00), the fixed 32-byte constant the
// P2WSH(OP_FALSE) burn output's witness-program commits to.
var burnScriptSha256Zero = mustHex32("6e340b9cffb37a989ca544e6bb780a2c78901d3fb33738768511a30617afa01d")

func mustHex32(h string) [32]byte {
	var out [32]byte
	if len(h) != 64 {
		panic("btcburn: bad fixed constant length")
	}
	for i := 0; i < 32; i++ {
		hi := hexNibble(h[i*2])
		lo := hexNibble(h[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexNibble(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	default:
		panic("btcburn: bad hex digit")
	}
}

// BurnOutputs is the pair of outputs every valid burn carries: the
// zero-value OP_RETURN metadata output and the positive-value P2WSH(OP_0)
// burn output whose amount is burned_sats.
type BurnOutputs struct {
	Version     uint8
	Net         Network
	Dest        bathash.Hash160
	BurnedSats  int64
	MetaIndex   int
	BurnIndex   int
	BtcTxid     bathash.Hash256 // btxid of the transaction the outputs were found in
}

// DetectBurn scans a parsed Bitcoin transaction's outputs for exactly one
// BATHRON OP_RETURN metadata output and exactly one P2WSH(OP_FALSE) burn
// output. Returns an error if the shape is absent or ambiguous (more than
// one of either).
func DetectBurn(tx *btcwire.Tx) (*BurnOutputs, error) {
	var meta *BurnOutputs
	burnIdx := -1
	var burnValue int64

	for i, out := range tx.Msg.TxOut {
		if m, ok := parseOpReturnMeta(out.PkScript); ok && out.Value == 0 {
			if meta != nil {
				return nil, fmt.Errorf("btcburn: more than one BATHRON OP_RETURN output")
			}
			meta = m
			meta.MetaIndex = i
			continue
		}
		if isBurnWitnessScript(out.PkScript) && out.Value > 0 {
			if burnIdx >= 0 {
				return nil, fmt.Errorf("btcburn: more than one burn output")
			}
			burnIdx = i
			burnValue = out.Value
		}
	}

	if meta == nil {
		return nil, fmt.Errorf("btcburn: no BATHRON OP_RETURN output found")
	}
	if burnIdx < 0 {
		return nil, fmt.Errorf("btcburn: no burn output found")
	}

	meta.BurnIndex = burnIdx
	meta.BurnedSats = burnValue
	meta.BtcTxid = tx.BTxID
	return meta, nil
}

func parseOpReturnMeta(script []byte) (*BurnOutputs, bool) {
	// OP_RETURN (0x6a) PUSH29 (0x1d) <29 bytes>.
	if len(script) != 2+burnOpReturnLen {
		return nil, false
	}
	if script[0] != 0x6a || script[1] != byte(burnOpReturnLen) {
		return nil, false
	}
	body := script[2:]
	if !bytes.Equal(body[:7], burnOpReturnMagic) {
		return nil, false
	}
	version := body[7]
	if version != 1 {
		return nil, false
	}
	net, ok := classifyNetworkByte(body[8])
	if !ok {
		return nil, false
	}
	var dest bathash.Hash160
	copy(dest[:], body[9:29])
	return &BurnOutputs{Version: version, Net: net, Dest: dest}, true
}

func isBurnWitnessScript(script []byte) bool {
	// OP_0 (0x00) PUSH32 (0x20) <32 bytes == sha256(0x00)>.
	if len(script) != 2+32 {
		return false
	}
	if script[0] != 0x00 || script[1] != 0x20 {
		return false
	}
	return bytes.Equal(script[2:], burnScriptSha256Zero[:])
}

// Payload is the decoded BurnClaimPayload carried in a TX_BURN_CLAIM's
// extra_payload.
type Payload struct {
	Version        uint8
	BtcTxBytes     []byte
	BtcBlockHash   bathash.Hash256
	BtcBlockHeight uint32
	MerkleProof    []bathash.Hash256
	TxIndex        uint32
}

// Marshal encodes p using u32 big-endian length prefixes for the two
// variable-length fields, matching the rest of BATHRON's native wire
// encoding (pkg/txmodel). This is distinct from the Bitcoin wire format
// nested inside BtcTxBytes, which is opaque bytes already in btcd's own
// compact-size encoding.
func (p *Payload) Marshal() []byte {
	buf := make([]byte, 0, 1+4+len(p.BtcTxBytes)+32+4+4+len(p.MerkleProof)*32+4)
	buf = append(buf, p.Version)
	buf = appendU32(buf, uint32(len(p.BtcTxBytes)))
	buf = append(buf, p.BtcTxBytes...)
	buf = append(buf, p.BtcBlockHash.Bytes()...)
	buf = appendU32(buf, p.BtcBlockHeight)
	buf = appendU32(buf, uint32(len(p.MerkleProof)))
	for _, sib := range p.MerkleProof {
		buf = append(buf, sib.Bytes()...)
	}
	buf = appendU32(buf, p.TxIndex)
	return buf
}

func DecodePayload(b []byte) (*Payload, error) {
	r := bytes.NewReader(b)
	p := &Payload{}

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode version: %w", err)
	}
	p.Version = version
	if p.Version != 1 {
		return nil, fmt.Errorf("btcburn: unsupported payload version %d", p.Version)
	}

	txLen, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode btc_tx_bytes length: %w", err)
	}
	if txLen > btcwire.ConsensusMaxBytes {
		return nil, fmt.Errorf("btcburn: btc_tx_bytes length %d exceeds consensus ceiling", txLen)
	}
	p.BtcTxBytes = make([]byte, txLen)
	if _, err := readFull(r, p.BtcTxBytes); err != nil {
		return nil, fmt.Errorf("btcburn: decode btc_tx_bytes: %w", err)
	}

	var blockHash [32]byte
	if _, err := readFull(r, blockHash[:]); err != nil {
		return nil, fmt.Errorf("btcburn: decode btc_block_hash: %w", err)
	}
	p.BtcBlockHash = bathash.Hash256(blockHash)

	height, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode btc_block_height: %w", err)
	}
	p.BtcBlockHeight = height

	proofLen, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode merkle_proof length: %w", err)
	}
	if proofLen > MaxMerkleProofSteps {
		return nil, fmt.Errorf("btcburn: merkle_proof has %d steps, exceeds ceiling of %d", proofLen, MaxMerkleProofSteps)
	}
	p.MerkleProof = make([]bathash.Hash256, proofLen)
	for i := range p.MerkleProof {
		var sib [32]byte
		if _, err := readFull(r, sib[:]); err != nil {
			return nil, fmt.Errorf("btcburn: decode merkle_proof[%d]: %w", i, err)
		}
		p.MerkleProof[i] = bathash.Hash256(sib)
	}

	txIndex, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode tx_index: %w", err)
	}
	p.TxIndex = txIndex
	if p.TxIndex >= (1 << uint(len(p.MerkleProof))) {
		return nil, fmt.Errorf("btcburn: tx_index %d out of range for %d-step proof", p.TxIndex, len(p.MerkleProof))
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("btcburn: %d trailing bytes after payload", r.Len())
	}
	return p, nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}

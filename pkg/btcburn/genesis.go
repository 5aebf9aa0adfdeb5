package btcburn

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/chainiface"
)

// BtcHeadersGenesisMaxCount bounds how many 80-byte headers a single
// TX_BTC_HEADERS chunk may carry. At 80 bytes/header, 2000 headers is
// 160 KB of payload.
const BtcHeadersGenesisMaxCount = 2000

// BtcHeader80 is a raw, unparsed 80-byte Bitcoin block header as carried in
// a BtcHeadersPayload.
type BtcHeader80 [80]byte

// BtcHeadersPayload is the decoded payload of a TX_BTC_HEADERS
// transaction, used to bootstrap every node's local BtcHeaderSource from
// BATHRON block 1 onward.
type BtcHeadersPayload struct {
	Version            uint16
	PublisherProTxHash bathash.Hash256
	StartHeight        uint32
	Headers            []BtcHeader80
	Sig                []byte // absent (nil) at genesis.
}

func (p *BtcHeadersPayload) Marshal() []byte {
	buf := make([]byte, 0, 2+32+4+2+len(p.Headers)*80+4+len(p.Sig))
	buf = appendU16(buf, p.Version)
	buf = append(buf, p.PublisherProTxHash.Bytes()...)
	buf = appendU32(buf, p.StartHeight)
	buf = appendU16(buf, uint16(len(p.Headers)))
	for _, h := range p.Headers {
		buf = append(buf, h[:]...)
	}
	buf = appendU32(buf, uint32(len(p.Sig)))
	buf = append(buf, p.Sig...)
	return buf
}

func DecodeBtcHeadersPayload(b []byte) (*BtcHeadersPayload, error) {
	r := bytes.NewReader(b)
	p := &BtcHeadersPayload{}

	version, err := readU16(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode btc_headers version: %w", err)
	}
	p.Version = version
	if p.Version != 1 {
		return nil, fmt.Errorf("btcburn: unsupported btc_headers payload version %d", p.Version)
	}

	var pub [32]byte
	if _, err := readFull(r, pub[:]); err != nil {
		return nil, fmt.Errorf("btcburn: decode publisher_pro_tx_hash: %w", err)
	}
	p.PublisherProTxHash = bathash.Hash256(pub)

	startHeight, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode start_height: %w", err)
	}
	p.StartHeight = startHeight

	count, err := readU16(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode count: %w", err)
	}
	if int(count) > BtcHeadersGenesisMaxCount {
		return nil, fmt.Errorf("btcburn: header count %d exceeds ceiling of %d", count, BtcHeadersGenesisMaxCount)
	}
	p.Headers = make([]BtcHeader80, count)
	for i := range p.Headers {
		if _, err := readFull(r, p.Headers[i][:]); err != nil {
			return nil, fmt.Errorf("btcburn: decode header[%d]: %w", i, err)
		}
	}

	sigLen, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("btcburn: decode sig length: %w", err)
	}
	p.Sig = make([]byte, sigLen)
	if sigLen > 0 {
		if _, err := readFull(r, p.Sig); err != nil {
			return nil, fmt.Errorf("btcburn: decode sig: %w", err)
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("btcburn: %d trailing bytes after btc_headers payload", r.Len())
	}
	return p, nil
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readU16(r *bytes.Reader) (uint16, error) {
	var tmp [2]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(tmp[:]), nil
}

// VerifyGenesisHeaders cross-checks block 1's unsigned TX_BTC_HEADERS
// chain against this node's own independently-obtained SPV view. Heights
// the local source has no opinion on yet are provisionally accepted; any
// height it does know must agree or block 1 is refused outright, not just
// the claims built on it.
func VerifyGenesisHeaders(payload *BtcHeadersPayload, local chainiface.BtcHeaderSource) error {
	for i, raw := range payload.Headers {
		height := payload.StartHeight + uint32(i)
		if height < local.MinSupportedHeight() {
			// Below the local source's supported range: no opinion here.
			continue
		}
		hash := bathash.DoubleSHA256(raw[:])
		known, ok := local.GetHashAtHeight(height)
		if !ok {
			// Node has no independent opinion at this height yet; nothing
			// to disagree with, so this header is provisionally accepted.
			continue
		}
		if !bytes.Equal(known.Bytes(), hash.Bytes()) {
			return fmt.Errorf("btcburn: genesis header at height %d disagrees with local SPV view", height)
		}
	}
	return nil
}

package btcburn

import (
	"encoding/binary"
	"fmt"

	"github.com/bathron/bathrond/pkg/kvstore"
)

// Store is the thin typed wrapper over kvstore.KV for the Burn Claim DB,
// grounded on pkg/settlement.Index's same get/put-by-key shape.
type Store struct {
	kv kvstore.KV
}

func NewStore(kv kvstore.KV) *Store {
	return &Store{kv: kv}
}

// GetRecord returns the claim record for txid, or (nil, nil) if absent.
func (s *Store) GetRecord(txid [32]byte) (*Record, error) {
	v, err := s.kv.Get(kvstore.ClaimKey(txid))
	if err != nil {
		return nil, fmt.Errorf("btcburn: get record: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	return UnmarshalRecord(v)
}

// PutRecord writes r, maintaining the status+height and per-destination
// indexes alongside the primary Cc entry. Callers that transition a
// record's status must call DeleteIndexEntries for the old status first.
func (s *Store) PutRecord(r *Record) error {
	b := s.kv.NewBatch()
	defer b.Close()

	if err := b.Set(kvstore.ClaimKey(r.BtcTxid), r.Marshal()); err != nil {
		return err
	}
	if err := b.Set(kvstore.ClaimStatusIndexKey(byte(r.Status), r.ClaimHeight, r.BtcTxid), []byte{}); err != nil {
		return err
	}
	if err := b.Set(kvstore.ClaimDestIndexKey(r.BathronDest, r.BtcTxid), []byte{}); err != nil {
		return err
	}
	if err := b.WriteSync(); err != nil {
		return fmt.Errorf("btcburn: put record: %w", err)
	}
	return nil
}

// DeleteIndexEntries removes the status+height index entry for (status,
// claimHeight, txid), used when a record transitions status, so the old
// index row doesn't linger pointing at a stale status.
func (s *Store) DeleteIndexEntries(status Status, claimHeight uint32, txid [32]byte) error {
	if err := s.kv.Delete(kvstore.ClaimStatusIndexKey(byte(status), claimHeight, txid)); err != nil {
		return fmt.Errorf("btcburn: delete status index: %w", err)
	}
	return nil
}

// DeleteRecord removes the primary record and its status index entry
// entirely, used on TX_BURN_CLAIM disconnect.
func (s *Store) DeleteRecord(r *Record) error {
	b := s.kv.NewBatch()
	defer b.Close()
	if err := b.Delete(kvstore.ClaimKey(r.BtcTxid)); err != nil {
		return err
	}
	if err := b.Delete(kvstore.ClaimStatusIndexKey(byte(r.Status), r.ClaimHeight, r.BtcTxid)); err != nil {
		return err
	}
	if err := b.Delete(kvstore.ClaimDestIndexKey(r.BathronDest, r.BtcTxid)); err != nil {
		return err
	}
	if err := b.WriteSync(); err != nil {
		return fmt.Errorf("btcburn: delete record: %w", err)
	}
	return nil
}

// IteratePending walks all PENDING records in ascending claim_height order
// (the status+height index sorts that way by construction), invoking fn
// for each. Stops early if fn returns false.
func (s *Store) IteratePending(fn func(*Record) bool) error {
	start := kvstore.ClaimStatusIndexKey(byte(StatusPending), 0, [32]byte{})
	end := kvstore.ClaimStatusIndexKey(byte(StatusPending)+1, 0, [32]byte{})
	it, err := s.kv.Iterator(start, end)
	if err != nil {
		return fmt.Errorf("btcburn: iterate pending: %w", err)
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		key := it.Key()
		if len(key) < 2+1+4+32 {
			continue
		}
		var txid [32]byte
		copy(txid[:], key[len(key)-32:])
		rec, err := s.GetRecord(txid)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		if !fn(rec) {
			break
		}
	}
	return nil
}

func (s *Store) GetM0BTCSupply() (int64, error) {
	v, err := s.kv.Get(kvstore.M0BTCSupplyKey())
	if err != nil {
		return 0, fmt.Errorf("btcburn: get supply: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("btcburn: supply value is %d bytes, want 8", len(v))
	}
	return int64(binary.LittleEndian.Uint64(v)), nil
}

func (s *Store) PutM0BTCSupply(v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	if err := s.kv.Set(kvstore.M0BTCSupplyKey(), buf[:]); err != nil {
		return fmt.Errorf("btcburn: put supply: %w", err)
	}
	return nil
}

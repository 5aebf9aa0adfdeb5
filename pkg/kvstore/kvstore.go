// Copyright 2025 The BATHRON developers
//
// Package kvstore wraps cometbft-db as the key-value engine underlying the
// Settlement DB and Burn Claim DB. It exposes a small
// KV/Batch interface so the settlement and burn-claim packages never import
// cometbft-db directly, and provides the namespaced key builders both
// databases need. Index keys are built as raw byte concatenations with no
// length prefix, per the external interface's explicit requirement.
package kvstore

import (
	"encoding/binary"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal key-value interface every settlement/burn-claim store is
// built on. A nil value for a missing key is "not present"; callers never
// distinguish a stored empty value from absence (no BATHRON value here
// needs to be empty and present).
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterator returns keys in [start, end) in ascending order; end may be
	// nil to mean "no upper bound". Used by the status+height index scans
	// in the burn-claim DB (Cs) and for deterministic PENDING enumeration.
	Iterator(start, end []byte) (Iterator, error)
	NewBatch() Batch
}

// Iterator walks a key range. Callers must call Close when done.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// Batch collects a set of mutations for atomic commit. A batch covers only
// the writes added to it; block connect and disconnect issue many separate
// writes across the stores and are not committed as one batch.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	WriteSync() error
	Close() error
}

// cometAdapter wraps a cometbft-db DB to implement KV, adding the
// Delete/Iterator/Batch surface the undo path and the status index scans
// need on top of plain Get/Set.
type cometAdapter struct {
	db dbm.DB
}

// NewCometDB wraps an existing cometbft-db DB (LevelDB, BadgerDB, BoltDB,
// or MemDB) as a KV.
func NewCometDB(db dbm.DB) KV {
	return &cometAdapter{db: db}
}

// NewGoLevelDB opens (creating if absent) a goleveldb-backed store at
// dir/name.db, the production on-disk engine.
func NewGoLevelDB(name, dir string) (KV, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open goleveldb %s: %w", name, err)
	}
	return NewCometDB(db), nil
}

// NewMemDB returns an in-memory store, used by tests and by nodes running
// without persistence.
func NewMemDB() KV {
	return NewCometDB(dbm.NewMemDB())
}

func (a *cometAdapter) Get(key []byte) ([]byte, error) {
	v, err := a.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get: %w", err)
	}
	return v, nil
}

func (a *cometAdapter) Set(key, value []byte) error {
	if err := a.db.SetSync(key, value); err != nil {
		return fmt.Errorf("kvstore: set: %w", err)
	}
	return nil
}

func (a *cometAdapter) Delete(key []byte) error {
	if err := a.db.DeleteSync(key); err != nil {
		return fmt.Errorf("kvstore: delete: %w", err)
	}
	return nil
}

func (a *cometAdapter) Iterator(start, end []byte) (Iterator, error) {
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("kvstore: iterator: %w", err)
	}
	return it, nil
}

func (a *cometAdapter) NewBatch() Batch {
	return &cometBatch{b: a.db.NewBatch()}
}

type cometBatch struct {
	b dbm.Batch
}

func (c *cometBatch) Set(key, value []byte) error {
	if err := c.b.Set(key, value); err != nil {
		return fmt.Errorf("kvstore: batch set: %w", err)
	}
	return nil
}

func (c *cometBatch) Delete(key []byte) error {
	if err := c.b.Delete(key); err != nil {
		return fmt.Errorf("kvstore: batch delete: %w", err)
	}
	return nil
}

func (c *cometBatch) WriteSync() error {
	if err := c.b.WriteSync(); err != nil {
		return fmt.Errorf("kvstore: batch write: %w", err)
	}
	return nil
}

func (c *cometBatch) Close() error {
	return c.b.Close()
}

// Settlement DB namespace prefixes.
const (
	PrefixVault            byte = 'V'
	PrefixReceipt          byte = 'R'
	keySettlementStateOnly      = "S"
)

// Burn Claim DB namespace prefixes, all under the 'C' namespace byte.
const (
	PrefixClaimByTxid     = "Cc"
	PrefixClaimStatusIdx  = "Cs"
	PrefixClaimDestIdx    = "Cd"
	keyM0BTCSupplyOnly    = "Cm"
	keyBestBlockOnly      = "Cb"
)

// VaultKey builds the `V || outpoint_bytes` key for a vault entry.
func VaultKey(outpointBytes []byte) []byte {
	return concat([]byte{PrefixVault}, outpointBytes)
}

// ReceiptKey builds the `R || outpoint_bytes` key for an M1 receipt.
func ReceiptKey(outpointBytes []byte) []byte {
	return concat([]byte{PrefixReceipt}, outpointBytes)
}

// SettlementStateKey is the single key holding the global SettlementState.
func SettlementStateKey() []byte {
	return []byte(keySettlementStateOnly)
}

// ClaimKey builds the `Cc || btc_txid` key for a burn claim record.
func ClaimKey(btcTxid [32]byte) []byte {
	return concat([]byte(PrefixClaimByTxid), btcTxid[:])
}

// ClaimStatusIndexKey builds the `Cs || status || claim_height_be_u32 ||
// btc_txid` index key. status is a single byte (0=PENDING, 1=FINAL by
// convention of the caller); claim_height is big-endian so the index sorts
// in height order within a status for deterministic PENDING enumeration.
func ClaimStatusIndexKey(status byte, claimHeight uint32, btcTxid [32]byte) []byte {
	var h [4]byte
	binary.BigEndian.PutUint32(h[:], claimHeight)
	return concat([]byte(PrefixClaimStatusIdx), []byte{status}, h[:], btcTxid[:])
}

// ClaimDestIndexKey builds the `Cd || bathron_dest || btc_txid` per-destination
// index key.
func ClaimDestIndexKey(dest [20]byte, btcTxid [32]byte) []byte {
	return concat([]byte(PrefixClaimDestIdx), dest[:], btcTxid[:])
}

// M0BTCSupplyKey is the single key holding the u64 M0BTC supply counter.
func M0BTCSupplyKey() []byte {
	return []byte(keyM0BTCSupplyOnly)
}

// BestBlockKey is the single key holding the best-block Hash256 the burn
// claim DB has committed up to.
func BestBlockKey() []byte {
	return []byte(keyBestBlockOnly)
}

// concat builds a raw byte concatenation with no length prefixes or framing,
// matching the external interface's explicit requirement that index keys
// bypass any serialization framework that would add one.
func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

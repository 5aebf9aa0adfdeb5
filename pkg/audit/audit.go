// Copyright 2025 The BATHRON developers
//
// Package audit persists an append-only record of finalized mints and
// vault lifecycle events to PostgreSQL for external dashboards. It is
// never consulted by consensus logic (a failed audit write is a logged
// warning, never a validation failure) and lives entirely outside the
// consensus-critical KV stores.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/bathron/bathrond/pkg/bathash"
)

// Client wraps a connection pool to the audit database.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient opens a pooled connection to databaseURL and verifies it with
// a ping. An empty databaseURL is valid and yields a no-op Client whose
// Record* methods always succeed without writing anywhere; audit is
// optional infrastructure, never required for the node to run.
func NewClient(databaseURL string, opts ...ClientOption) (*Client, error) {
	c := &Client{logger: log.New(log.Writer(), "[Audit] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(c)
	}
	if databaseURL == "" {
		c.logger.Println("no audit database configured, running disabled")
		return c, nil
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}
	c.db = db
	c.logger.Println("connected to audit database")
	return c, nil
}

// Close releases the underlying connection pool, if any.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// enabled reports whether this client actually writes anywhere.
func (c *Client) enabled() bool { return c.db != nil }

// RecordMintFinalized appends one row per M0BTC mint that reached FINAL
// status, independent of the consensus KV write that actually credits the
// supply.
func (c *Client) RecordMintFinalized(ctx context.Context, btcTxid bathash.Hash256, dest bathash.Hash160, amount int64, blockHeight uint32) error {
	if !c.enabled() {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO mint_events (event_id, btc_txid, dest_hash160, amount_satoshi, block_height, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (btc_txid) DO NOTHING
	`, uuid.New(), btcTxid.String(), dest.String(), amount, blockHeight, time.Now())
	if err != nil {
		c.logger.Printf("failed to record mint finalized for %s: %v", btcTxid, err)
	}
	return err
}

// VaultLifecycleKind distinguishes vault creation from vault erasure for
// the audit trail.
type VaultLifecycleKind string

const (
	VaultCreated VaultLifecycleKind = "created"
	VaultErased  VaultLifecycleKind = "erased"
)

// RecordVaultLifecycle appends one row per vault creation (LOCK) or
// erasure (UNLOCK).
func (c *Client) RecordVaultLifecycle(ctx context.Context, outpoint bathash.OutPoint, kind VaultLifecycleKind, amount int64, blockHeight uint32) error {
	if !c.enabled() {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO vault_lifecycle_events (event_id, outpoint, kind, amount_satoshi, block_height, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), fmt.Sprintf("%x", outpoint.Bytes()), string(kind), amount, blockHeight, time.Now())
	if err != nil {
		c.logger.Printf("failed to record vault %s lifecycle event: %v", kind, err)
	}
	return err
}

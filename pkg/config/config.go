// Copyright 2025 The BATHRON developers
//
// Package config loads bathrond's runtime configuration: a flat struct
// populated from environment variables with safe defaults, plus a YAML
// overlay for the masternode bootstrap list, which is awkward to express
// as individual env vars. Quorum/DMM parameters come from env vars only.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Network selects which BATHRON network parameter set a node runs.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// Config holds all configuration for the bathrond validator process.
type Config struct {
	Network Network

	// Server configuration
	ListenAddr  string
	HealthAddr  string
	MetricsAddr string

	// Data directory for the KV stores and operator key file.
	DataDir        string
	OperatorKeyPath string

	// Database configuration for the audit sink (optional; empty disables it).
	AuditDatabaseURL string

	// DMM parameters
	DMMBootstrapHeight uint32

	// Finality parameters
	FinalityRotationBlocks uint32

	// Gossip configuration
	GossipListenAddr string
	GossipPeers      []string

	LogLevel string

	// RPCTimeout bounds the read-only JSON RPC handlers in cmd/bathrond.
	RPCTimeout time.Duration

	// DevMode is read from BATHRON_DEV_MODE for local/regtest iteration.
	// Validate does not consult it; no startup check is relaxed by it.
	DevMode bool

	// Bootstrap masternodes, loaded from the YAML overlay if BootstrapFile
	// is set. Env/flag configuration alone cannot express this list.
	BootstrapFile string
	Bootstrap     *Bootstrap
}

// Bootstrap is the YAML-overlay document: the genesis masternode set. It
// carries no per-network parameter overrides.
type Bootstrap struct {
	Masternodes []BootstrapMasternode `yaml:"masternodes"`
}

// BootstrapMasternode is one genesis masternode entry.
type BootstrapMasternode struct {
	ProTxHash      string `yaml:"pro_tx_hash"`
	OperatorPubKey string `yaml:"operator_pubkey"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Network: Network(getEnvString("BATHRON_NETWORK", string(Mainnet))),

		ListenAddr:  getEnvString("BATHRON_LISTEN_ADDR", "0.0.0.0:8645"),
		HealthAddr:  getEnvString("BATHRON_HEALTH_ADDR", "0.0.0.0:8646"),
		MetricsAddr: getEnvString("BATHRON_METRICS_ADDR", "0.0.0.0:9645"),

		DataDir:         getEnvString("BATHRON_DATA_DIR", "./data"),
		OperatorKeyPath: getEnvString("BATHRON_OPERATOR_KEY_PATH", "./data/operator.key"),

		AuditDatabaseURL: getEnvString("BATHRON_AUDIT_DATABASE_URL", ""),

		DMMBootstrapHeight:     uint32(getEnvInt("BATHRON_DMM_BOOTSTRAP_HEIGHT", 250)),
		FinalityRotationBlocks: uint32(getEnvInt("BATHRON_FINALITY_ROTATION_BLOCKS", 576)),

		GossipListenAddr: getEnvString("BATHRON_GOSSIP_LISTEN_ADDR", "0.0.0.0:8647"),
		GossipPeers:      splitNonEmpty(getEnvString("BATHRON_GOSSIP_PEERS", "")),

		LogLevel: getEnvString("BATHRON_LOG_LEVEL", "info"),

		RPCTimeout: getEnvDuration("BATHRON_RPC_TIMEOUT", 5*time.Second),
		DevMode:    getEnvBool("BATHRON_DEV_MODE", false),

		BootstrapFile: getEnvString("BATHRON_BOOTSTRAP_FILE", ""),
	}

	if cfg.BootstrapFile != "" {
		bootstrap, err := loadBootstrap(cfg.BootstrapFile)
		if err != nil {
			return nil, fmt.Errorf("config: load bootstrap file: %w", err)
		}
		cfg.Bootstrap = bootstrap
	}

	return cfg, nil
}

// Validate checks that the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	switch c.Network {
	case Mainnet, Testnet, Regtest:
	default:
		errs = append(errs, fmt.Sprintf("BATHRON_NETWORK has unknown value %q", c.Network))
	}

	if c.DataDir == "" {
		errs = append(errs, "BATHRON_DATA_DIR must not be empty")
	}
	if c.FinalityRotationBlocks == 0 {
		errs = append(errs, "BATHRON_FINALITY_ROTATION_BLOCKS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func loadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &b, nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

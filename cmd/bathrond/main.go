// Copyright 2025 The BATHRON developers
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bathron/bathrond/pkg/audit"
	"github.com/bathron/bathrond/pkg/bathash"
	"github.com/bathron/bathrond/pkg/blockvalidator"
	"github.com/bathron/bathrond/pkg/btcburn"
	"github.com/bathron/bathrond/pkg/chainiface"
	"github.com/bathron/bathrond/pkg/config"
	"github.com/bathron/bathrond/pkg/dmm"
	"github.com/bathron/bathrond/pkg/finality"
	"github.com/bathron/bathrond/pkg/gossip"
	"github.com/bathron/bathrond/pkg/kvstore"
	"github.com/bathron/bathrond/pkg/metrics"
	"github.com/bathron/bathrond/pkg/opkey"
	"github.com/bathron/bathrond/pkg/settlement"
)

// healthStatus tracks process health for /healthz: one struct updated as
// subsystems come up, serialized verbatim for the HTTP handler.
type healthStatus struct {
	mu        sync.RWMutex
	status    string
	startTime time.Time
}

func newHealthStatus() *healthStatus {
	return &healthStatus{status: "starting", startTime: time.Now()}
}

func (h *healthStatus) set(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

func (h *healthStatus) toJSON() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(struct {
		Status        string `json:"status"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}{Status: h.status, UptimeSeconds: int64(time.Since(h.startTime).Seconds())})
	return data
}

// node bundles every component a running bathrond process wires together.
type node struct {
	cfg     *config.Config
	health  *healthStatus
	metrics *metrics.Registry
	audit   *audit.Client
	gossip  *gossip.Hub

	settlementIdx *settlement.Index
	burnStore     *btcburn.Store
	burnEngine    *btcburn.Engine
	killSwitch    *chainiface.KillSwitch
	validator     *blockvalidator.Context
	opkeyMgr      *opkey.Manager
	registry      chainiface.DmnRegistry
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags)
	logger := log.New(log.Writer(), "[bathrond] ", log.LstdFlags)

	var showHelp = flag.Bool("help", false, "Show help message")
	flag.Parse()
	if *showHelp {
		fmt.Println("bathrond - BATHRON validator node")
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	n, err := newNode(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to initialize node: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	n.registerHandlers(mux)

	healthServer := &http.Server{Addr: cfg.HealthAddr, Handler: http.TimeoutHandler(mux, cfg.RPCTimeout, "rpc timeout")}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	gossipMux := http.NewServeMux()
	gossipMux.HandleFunc("/gossip", n.gossip.ServeHTTP)
	gossipServer := &http.Server{Addr: cfg.GossipListenAddr, Handler: gossipMux}

	go func() {
		logger.Printf("health/RPC listening on %s", cfg.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("health server failed: %v", err)
		}
	}()
	go func() {
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("metrics server failed: %v", err)
		}
	}()
	go func() {
		logger.Printf("gossip listening on %s", cfg.GossipListenAddr)
		if err := gossipServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("gossip server failed: %v", err)
		}
	}()

	for _, peer := range cfg.GossipPeers {
		if err := n.gossip.Connect(peer); err != nil {
			logger.Printf("failed to connect to gossip peer %s: %v", peer, err)
		}
	}

	go n.drainGossip(ctx, logger)

	n.health.set("ok")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	_ = gossipServer.Shutdown(shutdownCtx)
	n.gossip.Close()
	_ = n.audit.Close()

	logger.Println("stopped")
}

func newNode(cfg *config.Config, logger *log.Logger) (*node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	settlementDB, err := kvstore.NewGoLevelDB("settlement", cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open settlement db: %w", err)
	}
	burnDB, err := kvstore.NewGoLevelDB("btcburn", cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open btcburn db: %w", err)
	}

	settlementIdx := settlement.NewIndex(settlementDB)
	burnStore := btcburn.NewStore(burnDB)
	killSwitch := &chainiface.KillSwitch{}

	net := btcburn.NetworkMainnet
	if cfg.Network == config.Testnet || cfg.Network == config.Regtest {
		net = btcburn.NetworkTestnet
	}

	registry := staticRegistry(cfg)

	var headerSource chainiface.BtcHeaderSource = noopHeaderSource{}
	burnEngine := btcburn.NewEngine(burnStore, headerSource, killSwitch, net)

	opkeyMgr := opkey.NewManager(cfg.OperatorKeyPath)
	if _, err := opkeyMgr.LoadOrGenerate(); err != nil {
		return nil, fmt.Errorf("load operator key: %w", err)
	}

	var dmmParams dmm.Params
	switch cfg.Network {
	case config.Testnet:
		dmmParams = dmm.ParamsTestnet(cfg.DMMBootstrapHeight)
	case config.Regtest:
		dmmParams = dmm.ParamsRegtest(cfg.DMMBootstrapHeight)
	default:
		dmmParams = dmm.ParamsMainnet(cfg.DMMBootstrapHeight)
	}

	var finalityParams finality.NetworkParams
	switch cfg.Network {
	case config.Testnet:
		finalityParams = finality.TestnetParams()
	case config.Regtest:
		finalityParams = finality.RegtestParams()
	default:
		finalityParams = finality.MainnetParams()
	}

	validator := &blockvalidator.Context{
		Settlement:     settlementIdx,
		Burns:          burnStore,
		BurnEngine:     burnEngine,
		Registry:       registry,
		UTXOs:          unresolvedUTXOSource{},
		DMMParams:      dmmParams,
		RotationBlocks: cfg.FinalityRotationBlocks,
		FinalityParams: finalityParams,
		Aggregator:     finality.NewAggregator(),
	}

	auditClient, err := audit.NewClient(cfg.AuditDatabaseURL, audit.WithLogger(log.New(log.Writer(), "[Audit] ", log.LstdFlags)))
	if err != nil {
		return nil, fmt.Errorf("audit client: %w", err)
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	return &node{
		cfg:           cfg,
		health:        newHealthStatus(),
		metrics:       reg,
		audit:         auditClient,
		gossip:        gossip.NewHub(256),
		settlementIdx: settlementIdx,
		burnStore:     burnStore,
		burnEngine:    burnEngine,
		killSwitch:    killSwitch,
		validator:     validator,
		opkeyMgr:      opkeyMgr,
		registry:      registry,
	}, nil
}

// drainGossip consumes inbound finality signatures from the gossip hub's
// channel, one at a time, keeping signature handling off the network
// goroutines.
func (n *node) drainGossip(ctx context.Context, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-n.gossip.Incoming():
			n.metrics.FinalitySigners.Inc()
			_ = sig // height resolution for AcceptFinalitySignature is
			// owned by the chain-tip tracker, out of this minimal node's
			// read-only RPC scope; full wiring is left to the consuming
			// application that tracks chain tips.
			logger.Printf("received finality signature for block %s", sig.BlockHash)
		}
	}
}

// registerHandlers wires /healthz and the minimal read-only JSON RPC
// surface (settlement state, vault lookup, burn-claim status).
func (n *node) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(n.health.toJSON())
	})

	mux.HandleFunc("/rpc/settlement/state", func(w http.ResponseWriter, r *http.Request) {
		state, err := n.settlementIdx.GetState()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, state)
	})

	mux.HandleFunc("/rpc/settlement/vault/", func(w http.ResponseWriter, r *http.Request) {
		op, err := parseOutpoint(r.URL.Path, "/rpc/settlement/vault/")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vault, err := n.settlementIdx.GetVault(op)
		if err == settlement.ErrVaultNotFound {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, vault)
	})

	mux.HandleFunc("/rpc/burn/claim/", func(w http.ResponseWriter, r *http.Request) {
		txidHex := r.URL.Path[len("/rpc/burn/claim/"):]
		txid, err := bathash.Hash256FromHex(txidHex)
		if err != nil {
			http.Error(w, "invalid txid: "+err.Error(), http.StatusBadRequest)
			return
		}
		rec, err := n.burnStore.GetRecord([32]byte(txid))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, rec)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseOutpoint(path, prefix string) (bathash.OutPoint, error) {
	rest := path[len(prefix):]
	txid, err := bathash.Hash256FromHex(rest)
	if err != nil {
		return bathash.OutPoint{}, err
	}
	return bathash.OutPoint{TxHash: txid, Index: 0}, nil
}

// staticRegistry builds a DmnRegistry from the configured bootstrap file.
// A production deployment replaces this with the live on-chain masternode
// registry; this minimal node only needs enough to exercise block
// acceptance end to end.
func staticRegistry(cfg *config.Config) chainiface.DmnRegistry {
	var active []chainiface.Masternode
	if cfg.Bootstrap != nil {
		for _, mn := range cfg.Bootstrap.Masternodes {
			proTxHash, err := bathash.Hash256FromHex(mn.ProTxHash)
			if err != nil {
				continue
			}
			pubKey, err := hex.DecodeString(mn.OperatorPubKey)
			if err != nil {
				continue
			}
			active = append(active, chainiface.Masternode{ProTxHash: proTxHash, OperatorPubKey: pubKey})
		}
	}
	return &fixedRegistry{active: active}
}

type fixedRegistry struct {
	active []chainiface.Masternode
}

func (r *fixedRegistry) ActiveMasternodes(height uint32) []chainiface.Masternode {
	return r.active
}

// unresolvedUTXOSource stands in for the out-of-scope UTXO set: every
// lookup reports unresolved, so settlement transactions classify as
// incomplete rather than panicking. The consuming application that owns
// the real UTXO set supplies its own blockvalidator.UTXOSource.
type unresolvedUTXOSource struct{}

func (unresolvedUTXOSource) Resolve(bathash.OutPoint) (settlement.InputView, error) {
	return settlement.InputView{}, nil
}

type noopHeaderSource struct{}

func (noopHeaderSource) GetHeaderByHash(bathash.Hash256) (chainiface.BtcHeader, bool) {
	return chainiface.BtcHeader{}, false
}
func (noopHeaderSource) GetHashAtHeight(uint32) (bathash.Hash256, bool) { return bathash.Hash256{}, false }
func (noopHeaderSource) TipHeight() uint32                              { return 0 }
func (noopHeaderSource) VerifyMerkleProof(bathash.Hash256, bathash.Hash256, []bathash.Hash256, uint32) bool {
	return false
}
func (noopHeaderSource) MinSupportedHeight() uint32         { return 0 }
func (noopHeaderSource) IsInBestChain(bathash.Hash256) bool { return false }

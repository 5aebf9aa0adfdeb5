// Copyright 2025 The BATHRON developers
//
// Package metrics exposes the validator's Prometheus instrumentation:
// vault/receipt counts, burn-claim lifecycle gauges, quorum signer counts,
// and the current DMM slot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the validator exports, constructed once at
// node startup and threaded through to the components that update it.
type Registry struct {
	VaultsOpen      prometheus.Gauge
	ReceiptsOpen    prometheus.Gauge
	M0BTCSupply     prometheus.Gauge
	ClaimsPending   prometheus.Gauge
	ClaimsFinal     prometheus.Counter
	ClaimsRejected  prometheus.Counter
	FinalitySigners prometheus.Gauge
	DMMSlot         prometheus.Gauge
	BlockHeight     prometheus.Gauge
	BlocksConnected prometheus.Counter
	BlocksRejected  prometheus.Counter
}

// NewRegistry registers every metric against reg and returns the bundle.
// Callers typically pass prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer in production.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		VaultsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "settlement",
			Name:      "vaults_open",
			Help:      "Number of vault entries currently open.",
		}),
		ReceiptsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "settlement",
			Name:      "receipts_open",
			Help:      "Number of M1 receipt entries currently open.",
		}),
		M0BTCSupply: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "burn",
			Name:      "m0btc_supply_satoshi",
			Help:      "Total minted M0BTC supply, in satoshi.",
		}),
		ClaimsPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "burn",
			Name:      "claims_pending",
			Help:      "Number of burn claims currently in PENDING status.",
		}),
		ClaimsFinal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bathron",
			Subsystem: "burn",
			Name:      "claims_final_total",
			Help:      "Total number of burn claims that have reached FINAL status.",
		}),
		ClaimsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bathron",
			Subsystem: "burn",
			Name:      "claims_rejected_total",
			Help:      "Total number of burn claims rejected at validation.",
		}),
		FinalitySigners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "finality",
			Name:      "signers_current_tip",
			Help:      "Distinct valid finality signers collected for the current best tip.",
		}),
		DMMSlot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "dmm",
			Name:      "current_slot",
			Help:      "Time slot of the most recently connected block.",
		}),
		BlockHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bathron",
			Subsystem: "chain",
			Name:      "height",
			Help:      "Height of the current best-chain tip.",
		}),
		BlocksConnected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bathron",
			Subsystem: "chain",
			Name:      "blocks_connected_total",
			Help:      "Total number of blocks successfully connected.",
		}),
		BlocksRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bathron",
			Subsystem: "chain",
			Name:      "blocks_rejected_total",
			Help:      "Total number of blocks rejected at validation.",
		}),
	}
}

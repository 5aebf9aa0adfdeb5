package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistryRegistersAndUpdates(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.BlockHeight.Set(42)
	r.BlocksConnected.Inc()
	r.ClaimsPending.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected metric families to be registered")
	}

	var sawHeight bool
	for _, f := range families {
		if f.GetName() == "bathron_chain_height" {
			sawHeight = true
			if got := f.Metric[0].GetGauge().GetValue(); got != 42 {
				t.Fatalf("bathron_chain_height = %v, want 42", got)
			}
		}
	}
	if !sawHeight {
		t.Fatalf("expected bathron_chain_height metric to be present")
	}
}

package idhash

import (
	"strings"
	"testing"
)

func TestComputeSymbol(t *testing.T) {
	got := ComputeSymbol("asset-001")

	if len(got) != len(SymbolPrefix)+6 {
		t.Errorf("ComputeSymbol() length = %d, want %d", len(got), len(SymbolPrefix)+6)
	}
	if !strings.HasPrefix(got, SymbolPrefix) {
		t.Errorf("ComputeSymbol() = %q, want %q prefix", got, SymbolPrefix)
	}
	if got != strings.ToUpper(got) {
		t.Errorf("ComputeSymbol() = %q, want uppercase", got)
	}

	// Determinism
	if again := ComputeSymbol("asset-001"); again != got {
		t.Errorf("ComputeSymbol() not deterministic: %q vs %q", got, again)
	}

	// Distinct assets get distinct symbols (for non-colliding inputs)
	if other := ComputeSymbol("asset-002"); other == got {
		t.Errorf("ComputeSymbol() collision between distinct assets: %q", got)
	}
}

func TestComputeSettlementKey_Deterministic(t *testing.T) {
	a := ComputeSettlementKey("buyer1", "asset1", 100, 2500.0, "req-1")
	b := ComputeSettlementKey("buyer1", "asset1", 100, 2500.0, "req-1")
	if a != b {
		t.Errorf("ComputeSettlementKey() not deterministic: %q vs %q", a, b)
	}

	c := ComputeSettlementKey("buyer1", "asset1", 100, 2500.0, "req-2")
	if c == a {
		t.Error("ComputeSettlementKey() ignored client key")
	}
}

func TestComputeDistributionKey(t *testing.T) {
	a := ComputeDistributionKey("asset1", "2024-01", "holder1")
	if len(a) != 64 {
		t.Errorf("ComputeDistributionKey() length = %d, want 64", len(a))
	}
	if b := ComputeDistributionKey("asset1", "2024-02", "holder1"); b == a {
		t.Error("ComputeDistributionKey() ignored period")
	}
}

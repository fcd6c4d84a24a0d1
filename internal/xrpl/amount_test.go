package xrpl

import (
	"math"
	"testing"
)

func TestXRPToDrops(t *testing.T) {
	tests := []struct {
		xrp  float64
		want string
	}{
		{0, "0"},
		{1, "1000000"},
		{0.000001, "1"},
		{1.5, "1500000"},
		// Float noise case: 0.1+0.2 style inputs must round cleanly.
		{0.3, "300000"},
		{123456.789, "123456789000"},
	}

	for _, tt := range tests {
		got, err := XRPToDrops(tt.xrp)
		if err != nil {
			t.Errorf("XRPToDrops(%v): %v", tt.xrp, err)
			continue
		}
		if got != tt.want {
			t.Errorf("XRPToDrops(%v) = %q, want %q", tt.xrp, got, tt.want)
		}
	}
}

func TestXRPToDropsRejectsOutOfRange(t *testing.T) {
	if _, err := XRPToDrops(-1); err == nil {
		t.Error("expected negative amount to fail")
	}
	if _, err := XRPToDrops(2e11); err == nil {
		t.Error("expected amount above supply to fail")
	}
}

func TestDropsToXRP(t *testing.T) {
	xrp, err := DropsToXRP("1500000")
	if err != nil {
		t.Fatalf("DropsToXRP: %v", err)
	}
	if math.Abs(xrp-1.5) > 1e-12 {
		t.Errorf("DropsToXRP = %v, want 1.5", xrp)
	}

	if _, err := DropsToXRP("abc"); err == nil {
		t.Error("expected parse failure")
	}
	if _, err := DropsToXRP("-5"); err == nil {
		t.Error("expected negative drops to fail")
	}
}

package xrpl

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// dropsPerXRP is the ledger's native unit scale.
var dropsPerXRP = decimal.NewFromInt(1_000_000)

// maxXRP caps the representable amount at the total XRP supply.
var maxXRP = decimal.NewFromInt(100_000_000_000)

// XRPToDrops converts an XRP amount to an integer drops string. The
// conversion goes through decimal arithmetic so float noise near the
// sixth decimal place cannot shift the result by a drop.
func XRPToDrops(xrp float64) (string, error) {
	d := decimal.NewFromFloat(xrp)
	if d.IsNegative() {
		return "", fmt.Errorf("negative XRP amount %s", d)
	}
	if d.GreaterThan(maxXRP) {
		return "", fmt.Errorf("XRP amount %s exceeds ledger supply", d)
	}

	drops := d.Mul(dropsPerXRP).Round(0)
	return drops.String(), nil
}

// DropsToXRP converts a drops string to an XRP amount.
func DropsToXRP(drops string) (float64, error) {
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return 0, fmt.Errorf("parse drops %q: %w", drops, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative drops amount %s", d)
	}

	xrp, _ := d.Div(dropsPerXRP).Float64()
	return xrp, nil
}

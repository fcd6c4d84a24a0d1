// Package verify audits the transaction log against the ownership
// invariants: no holder may go negative at any replay step, and the sum
// of net holdings for an asset may never exceed its total units. The
// auditor is read-only and intended for scheduled or on-demand runs.
package verify

import (
	"context"
	"errors"
	"fmt"

	"proptoken/internal/domain"
	"proptoken/internal/ledger"
	"proptoken/internal/storage"
)

// Finding is one invariant violation discovered in the log.
type Finding struct {
	AssetID  string
	HolderID string // empty for asset-level findings
	Kind     string
	Detail   string
}

// Finding kinds.
const (
	FindingNegativeHoldings = "NEGATIVE_HOLDINGS"
	FindingOversold         = "OVERSOLD"
)

// Report contains results for one audit pass.
type Report struct {
	AssetsAudited int
	Findings      []Finding
}

// Clean reports whether the audit found no violations.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Auditor replays the log per asset and checks the invariants.
type Auditor struct {
	assets    storage.AssetStore
	ownership *ledger.Ledger
}

// New creates a new Auditor.
func New(assets storage.AssetStore, ownership *ledger.Ledger) *Auditor {
	return &Auditor{assets: assets, ownership: ownership}
}

// AuditAsset checks one asset's log.
func (a *Auditor) AuditAsset(ctx context.Context, assetID string) ([]Finding, error) {
	asset, err := a.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}

	var findings []Finding

	holdings, err := a.ownership.AllHoldings(ctx, assetID)
	if err != nil {
		if errors.Is(err, ledger.ErrNegativeHoldings) {
			findings = append(findings, Finding{
				AssetID: assetID,
				Kind:    FindingNegativeHoldings,
				Detail:  err.Error(),
			})
			return findings, nil
		}
		return nil, err
	}

	var totalOwned int64
	for _, h := range holdings {
		totalOwned += h.UnitsOwned
	}
	if totalOwned > asset.TotalUnits {
		findings = append(findings, Finding{
			AssetID: assetID,
			Kind:    FindingOversold,
			Detail:  fmt.Sprintf("holders own %d of %d total units", totalOwned, asset.TotalUnits),
		})
	}

	return findings, nil
}

// AuditAll audits every asset that has reached tokenization.
func (a *Auditor) AuditAll(ctx context.Context) (*Report, error) {
	report := &Report{}

	for _, status := range []domain.AssetStatus{domain.AssetStatusTokenized, domain.AssetStatusSoldOut} {
		assets, err := a.assets.GetByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("load %s assets: %w", status, err)
		}

		for _, asset := range assets {
			findings, err := a.AuditAsset(ctx, asset.ID)
			if err != nil {
				return nil, err
			}
			report.AssetsAudited++
			report.Findings = append(report.Findings, findings...)
		}
	}

	return report, nil
}

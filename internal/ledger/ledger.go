// Package ledger derives current ownership state from the append-only
// transaction log. Holdings are never stored: every read replays the
// Completed rows for the pair in creation order. The package is
// read-only and safe for concurrent use.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

// ErrNegativeHoldings indicates a replay step produced a negative unit
// count. This is a data-integrity fault: it is surfaced, never clamped,
// and must be investigated manually.
var ErrNegativeHoldings = errors.New("transaction log replay produced negative holdings")

// positionTypes are the transaction types that move units for a holder.
var positionTypes = []domain.TransactionType{
	domain.TxTypeUnitPurchase,
	domain.TxTypeUnitSale,
	domain.TxTypeUnitTransfer,
	domain.TxTypeSecondaryBuy,
	domain.TxTypeSecondarySell,
}

// Ledger computes derived ownership views over the transaction log.
type Ledger struct {
	transactions storage.TransactionStore
	assets       storage.AssetStore
}

// New creates a Ledger over the given stores.
func New(transactions storage.TransactionStore, assets storage.AssetStore) *Ledger {
	return &Ledger{transactions: transactions, assets: assets}
}

// HoldingsOf replays all Completed position-moving transactions for
// (holder, asset) in creation order and returns the derived holding.
// Pending and Failed rows are excluded. Cost basis follows the
// average-cost method: a sale of k units out of n reduces the basis by
// the fraction k/n.
func (l *Ledger) HoldingsOf(ctx context.Context, holderID, assetID string) (*domain.Holding, error) {
	rows, err := l.transactions.Find(ctx, storage.TransactionFilter{
		HolderID: holderID,
		AssetID:  assetID,
		Types:    positionTypes,
		Status:   domain.TxStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s/%s: %w", holderID, assetID, err)
	}

	return replay(holderID, assetID, rows)
}

// replay folds transaction rows into a holding. Rows must already be in
// creation order.
func replay(holderID, assetID string, rows []*domain.LedgerTransaction) (*domain.Holding, error) {
	h := &domain.Holding{HolderID: holderID, AssetID: assetID}

	for _, tx := range rows {
		switch {
		case tx.Acquiring():
			h.UnitsOwned += tx.Units
			h.CostBasis += tx.Amount
		case tx.Disposing():
			before := h.UnitsOwned
			h.UnitsOwned -= tx.Units
			if h.UnitsOwned < 0 {
				return nil, fmt.Errorf("replay %s/%s at tx %s: %w", holderID, assetID, tx.ID, ErrNegativeHoldings)
			}
			if before > 0 {
				h.CostBasis *= 1 - float64(tx.Units)/float64(before)
			}
		}
	}

	return h, nil
}

// CurrentValue returns units_owned multiplied by the asset's unit price.
func (l *Ledger) CurrentValue(ctx context.Context, holderID, assetID string) (float64, error) {
	h, err := l.HoldingsOf(ctx, holderID, assetID)
	if err != nil {
		return 0, err
	}
	a, err := l.assets.GetByID(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("load asset %s: %w", assetID, err)
	}
	return float64(h.UnitsOwned) * a.UnitPrice, nil
}

// OwnershipFraction returns units_owned / total_units, or 0 for an
// asset with no units.
func (l *Ledger) OwnershipFraction(ctx context.Context, holderID, assetID string) (float64, error) {
	h, err := l.HoldingsOf(ctx, holderID, assetID)
	if err != nil {
		return 0, err
	}
	a, err := l.assets.GetByID(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("load asset %s: %w", assetID, err)
	}
	if a.TotalUnits == 0 {
		return 0, nil
	}
	return float64(h.UnitsOwned) / float64(a.TotalUnits), nil
}

// UnitsSold returns the derived primary-sale aggregate for an asset:
// the sum of units across Completed UnitPurchase rows. The cached
// Asset.UnitsSold field is a projection of this value and must never
// be used for availability decisions.
func (l *Ledger) UnitsSold(ctx context.Context, assetID string) (int64, error) {
	rows, err := l.transactions.Find(ctx, storage.TransactionFilter{
		AssetID: assetID,
		Types:   []domain.TransactionType{domain.TxTypeUnitPurchase},
		Status:  domain.TxStatusCompleted,
	})
	if err != nil {
		return 0, fmt.Errorf("load purchases for %s: %w", assetID, err)
	}

	var sold int64
	for _, tx := range rows {
		sold += tx.Units
	}
	return sold, nil
}

// GrossHolder is one holder's aggregate gross purchase position,
// as enumerated for income distribution.
type GrossHolder struct {
	HolderID   string
	UnitsOwned int64
}

// Holders enumerates all holders with positive gross purchased units
// for an asset. It aggregates Completed purchase-type rows without
// netting subsequent sales, matching the behaviour of the system this
// ledger is derived from. Results are ordered by holder id.
func (l *Ledger) Holders(ctx context.Context, assetID string) ([]GrossHolder, error) {
	rows, err := l.transactions.Find(ctx, storage.TransactionFilter{
		AssetID: assetID,
		Types:   []domain.TransactionType{domain.TxTypeUnitPurchase},
		Status:  domain.TxStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("load purchases for %s: %w", assetID, err)
	}

	byHolder := make(map[string]int64)
	for _, tx := range rows {
		byHolder[tx.HolderID] += tx.Units
	}

	result := make([]GrossHolder, 0, len(byHolder))
	for holderID, units := range byHolder {
		if units > 0 {
			result = append(result, GrossHolder{HolderID: holderID, UnitsOwned: units})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].HolderID < result[j].HolderID
	})

	return result, nil
}

// AllHoldings replays every holder's net position for an asset. Used by
// the log auditor; not part of the hot settlement path.
func (l *Ledger) AllHoldings(ctx context.Context, assetID string) ([]*domain.Holding, error) {
	rows, err := l.transactions.Find(ctx, storage.TransactionFilter{
		AssetID: assetID,
		Types:   positionTypes,
		Status:  domain.TxStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", assetID, err)
	}

	byHolder := make(map[string][]*domain.LedgerTransaction)
	var holderIDs []string
	for _, tx := range rows {
		if _, seen := byHolder[tx.HolderID]; !seen {
			holderIDs = append(holderIDs, tx.HolderID)
		}
		byHolder[tx.HolderID] = append(byHolder[tx.HolderID], tx)
	}
	sort.Strings(holderIDs)

	var result []*domain.Holding
	for _, holderID := range holderIDs {
		h, err := replay(holderID, assetID, byHolder[holderID])
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, nil
}

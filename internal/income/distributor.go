// Package income distributes rental income to asset holders pro rata.
//
// A run is not atomic across holders: a failure partway through leaves
// the shares already written in place. Runs are idempotent per
// asset, period and holder, so re-running after a partial failure
// records only the missing shares.
package income

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/idhash"
	"proptoken/internal/ledger"
	"proptoken/internal/observability"
	"proptoken/internal/storage"
)

// ErrNotDistributable rejects distribution for an asset that has not
// been tokenized.
var ErrNotDistributable = errors.New("asset is not tokenized")

// Distributor runs income distributions.
type Distributor struct {
	assets       storage.AssetStore
	transactions storage.TransactionStore
	ownership    *ledger.Ledger
	verbose      bool

	now func() int64
}

// Options for creating Distributor.
type Options struct {
	AssetStore       storage.AssetStore
	TransactionStore storage.TransactionStore
	Ledger           *ledger.Ledger
	Verbose          bool

	// Now overrides the clock, for tests. Returns unix milliseconds.
	Now func() int64
}

// New creates a new Distributor.
func New(opts Options) *Distributor {
	d := &Distributor{
		assets:       opts.AssetStore,
		transactions: opts.TransactionStore,
		ownership:    opts.Ledger,
		verbose:      opts.Verbose,
		now:          opts.Now,
	}
	if d.now == nil {
		d.now = func() int64 { return time.Now().UnixMilli() }
	}
	return d
}

// Result summarizes one distribution run.
type Result struct {
	SharesRecorded   int
	SharesSkipped    int
	TotalDistributed float64
}

// Distribute splits totalIncome for one period across the asset's
// holders in proportion to units owned. Holders are enumerated from
// gross purchase rows, without netting later sales; that matches the
// payout behaviour this engine replaces and is deliberately left
// unchanged. A holder whose share for this period is already recorded
// is skipped.
func (d *Distributor) Distribute(ctx context.Context, assetID, period string, totalIncome float64) (*Result, error) {
	if totalIncome <= 0 {
		return nil, fmt.Errorf("%w: income must be positive", storage.ErrInvalidInput)
	}

	asset, err := d.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}
	if asset.Status != domain.AssetStatusTokenized && asset.Status != domain.AssetStatusSoldOut {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDistributable, assetID, asset.Status)
	}
	if asset.TotalUnits == 0 {
		return nil, fmt.Errorf("%w: asset %s has zero units", storage.ErrInvalidInput, assetID)
	}

	holders, err := d.ownership.Holders(ctx, assetID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, holder := range holders {
		key := idhash.ComputeDistributionKey(assetID, period, holder.HolderID)

		recorded, err := d.alreadyRecorded(ctx, key)
		if err != nil {
			return result, err
		}
		if recorded {
			result.SharesSkipped++
			continue
		}

		fraction := float64(holder.UnitsOwned) / float64(asset.TotalUnits)
		share := fraction * totalIncome

		now := d.now()
		row := &domain.LedgerTransaction{
			ID:        idhash.ComputeTransactionID(holder.HolderID, assetID, domain.TxTypeRentalDistribution, holder.UnitsOwned, now, key),
			Type:      domain.TxTypeRentalDistribution,
			Status:    domain.TxStatusCompleted,
			HolderID:  holder.HolderID,
			AssetID:   assetID,
			Amount:    share,
			Units:     holder.UnitsOwned,
			UnitPrice: asset.UnitPrice,
			Metadata: map[string]string{
				domain.MetaDistributionKey:   key,
				domain.MetaTotalIncome:       fmt.Sprintf("%.2f", totalIncome),
				domain.MetaOwnershipFraction: fmt.Sprintf("%.8f", fraction),
			},
			CreatedAt:   now,
			CompletedAt: &now,
		}

		if err := d.transactions.Insert(ctx, row); err != nil {
			// Duplicate means a concurrent run got here first; anything
			// else stops the run, already-written shares stay.
			if errors.Is(err, storage.ErrDuplicateKey) {
				result.SharesSkipped++
				continue
			}
			return result, fmt.Errorf("record share for %s: %w", holder.HolderID, err)
		}

		result.SharesRecorded++
		result.TotalDistributed += share
	}

	observability.RecordDistribution(result.SharesRecorded, result.SharesSkipped)
	observability.DefaultMetrics.LastSuccessfulDistribution.Set(float64(d.now() / 1000))

	d.log("distributed %.2f for %s %s: %d shares recorded, %d skipped",
		result.TotalDistributed, assetID, period, result.SharesRecorded, result.SharesSkipped)
	return result, nil
}

// alreadyRecorded checks for an existing share row with the same
// distribution key.
func (d *Distributor) alreadyRecorded(ctx context.Context, key string) (bool, error) {
	rows, err := d.transactions.Find(ctx, storage.TransactionFilter{
		MetadataKey:   domain.MetaDistributionKey,
		MetadataValue: key,
	})
	if err != nil {
		return false, fmt.Errorf("distribution key lookup: %w", err)
	}
	return len(rows) > 0, nil
}

func (d *Distributor) log(format string, args ...interface{}) {
	if d.verbose {
		log.Printf("[income] "+format, args...)
	}
}

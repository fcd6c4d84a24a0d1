// Package reconcile watches for settlements that completed with a
// failed payment leg. Units moved but no value came back; these rows
// carry degraded metadata and need follow-up outside the settlement
// path. The reconciler surfaces them on a schedule and, when a ledger
// stream is available, re-scans as soon as a payment touches a watched
// account.
package reconcile

import (
	"context"
	"log"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/observability"
	"proptoken/internal/storage"
	"proptoken/internal/xrpl"
)

// DefaultScanInterval is how often the log is scanned for degraded
// settlements.
const DefaultScanInterval = 5 * time.Minute

// Reconciler scans the transaction log for degraded settlements.
type Reconciler struct {
	transactions storage.TransactionStore
	stream       xrpl.StreamClient
	accounts     []string
	interval     time.Duration
	verbose      bool

	// onFinding is invoked once per degraded row per scan.
	onFinding func(*domain.LedgerTransaction)
}

// Options for creating Reconciler.
type Options struct {
	TransactionStore storage.TransactionStore

	// Stream is optional. When set, validated payments touching
	// WatchAccounts trigger an immediate re-scan.
	Stream        xrpl.StreamClient
	WatchAccounts []string

	ScanInterval time.Duration
	Verbose      bool

	// OnFinding is invoked for each degraded row found. Optional.
	OnFinding func(*domain.LedgerTransaction)
}

// New creates a new Reconciler.
func New(opts Options) *Reconciler {
	r := &Reconciler{
		transactions: opts.TransactionStore,
		stream:       opts.Stream,
		accounts:     opts.WatchAccounts,
		interval:     opts.ScanInterval,
		verbose:      opts.Verbose,
		onFinding:    opts.OnFinding,
	}
	if r.interval <= 0 {
		r.interval = DefaultScanInterval
	}
	return r
}

// ScanOnce returns all Completed settlement rows whose payment leg
// failed and has not been settled since.
func (r *Reconciler) ScanOnce(ctx context.Context) ([]*domain.LedgerTransaction, error) {
	rows, err := r.transactions.Find(ctx, storage.TransactionFilter{
		Types:         []domain.TransactionType{domain.TxTypeUnitPurchase},
		Status:        domain.TxStatusCompleted,
		MetadataKey:   domain.MetaPaymentFailed,
		MetadataValue: "true",
	})
	if err != nil {
		return nil, err
	}

	// Rows whose payment was collected out of band carry a payment op
	// ref; they no longer need attention.
	var open []*domain.LedgerTransaction
	for _, row := range rows {
		if row.Metadata[domain.MetaPaymentOpRef] != "" {
			continue
		}
		open = append(open, row)
	}

	for _, row := range open {
		observability.RecordReconcileFinding()
		r.log("degraded settlement %s: %d units of %s to %s, amount %.2f uncollected",
			row.ID[:12], row.Units, row.AssetID, row.HolderID, row.Amount)
		if r.onFinding != nil {
			r.onFinding(row)
		}
	}

	return open, nil
}

// Run scans on the configured interval until the context is cancelled.
// With a stream attached, any validated payment touching a watched
// account triggers an immediate extra scan.
func (r *Reconciler) Run(ctx context.Context) error {
	var notifs <-chan xrpl.TxNotification
	if r.stream != nil && len(r.accounts) > 0 {
		ch, err := r.stream.SubscribeAccounts(ctx, r.accounts)
		if err != nil {
			return err
		}
		notifs = ch
		r.log("watching %d accounts on the ledger stream", len(r.accounts))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.ScanOnce(ctx); err != nil {
		r.log("initial scan: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ScanOnce(ctx); err != nil {
				r.log("scheduled scan: %v", err)
			}
		case notif, ok := <-notifs:
			if !ok {
				notifs = nil
				continue
			}
			if !notif.Validated || notif.TxType != "Payment" {
				continue
			}
			r.log("payment %s observed on watched account %s", notif.Hash, notif.Account)
			if _, err := r.ScanOnce(ctx); err != nil {
				r.log("stream-triggered scan: %v", err)
			}
		}
	}
}

func (r *Reconciler) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[reconcile] "+format, args...)
	}
}

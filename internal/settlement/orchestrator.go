// Package settlement coordinates primary-market purchases end to end.
//
// A settlement moves units of a tokenized asset from the issuer to the
// buyer on the external ledger and collects the payment, persisting
// exactly one terminal transaction row per attempt. Unit transfer is
// the critical step: a payment failure after the units have moved does
// not roll anything back, it marks the row as degraded for the
// reconciler.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/idhash"
	"proptoken/internal/ledger"
	"proptoken/internal/observability"
	"proptoken/internal/storage"
	"proptoken/internal/tokenize"
	"proptoken/internal/xrpl"
)

// PriceTolerance is the maximum accepted gap between the submitted
// amount and units times unit price.
const PriceTolerance = 0.01

// Validation errors, surfaced before any external call.
var (
	ErrNotPurchasable    = errors.New("asset is not open for purchase")
	ErrInsufficientUnits = errors.New("not enough units available")
	ErrPriceMismatch     = errors.New("amount does not match units at unit price")
)

// PurchaseRequest is one settlement attempt.
type PurchaseRequest struct {
	BuyerID string
	AssetID string
	Units   int64
	// Amount is the fiat total the buyer pays. Must equal
	// Units * asset.UnitPrice within PriceTolerance.
	Amount float64
	// ClientKey is an optional idempotency key supplied by the caller.
	// Retries with the same key replay the prior outcome.
	ClientKey string
}

// Orchestrator runs settlements. Safe for concurrent use; attempts for
// the same asset are serialized from the availability check through
// row persistence so two buyers can never both take the last unit.
type Orchestrator struct {
	assets       storage.AssetStore
	transactions storage.TransactionStore
	ownership    *ledger.Ledger
	tokenizer    *tokenize.Service
	client       xrpl.Client
	accounts     AccountDirectory
	verbose      bool

	now func() int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Options for creating Orchestrator.
type Options struct {
	AssetStore       storage.AssetStore
	TransactionStore storage.TransactionStore
	Ledger           *ledger.Ledger
	Tokenizer        *tokenize.Service
	Client           xrpl.Client
	Accounts         AccountDirectory
	Verbose          bool

	// Now overrides the clock, for tests. Returns unix milliseconds.
	Now func() int64
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		assets:       opts.AssetStore,
		transactions: opts.TransactionStore,
		ownership:    opts.Ledger,
		tokenizer:    opts.Tokenizer,
		client:       opts.Client,
		accounts:     opts.Accounts,
		verbose:      opts.Verbose,
		now:          opts.Now,
		locks:        make(map[string]*sync.Mutex),
	}
	if o.now == nil {
		o.now = func() int64 { return time.Now().UnixMilli() }
	}
	return o
}

// assetLock returns the mutex serializing settlements for one asset.
func (o *Orchestrator) assetLock(assetID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()

	mu, ok := o.locks[assetID]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[assetID] = mu
	}
	return mu
}

// SettlePurchase executes one primary-market purchase and returns the
// terminal transaction row. A replayed request, same buyer, asset,
// units, amount and client key, returns the previously persisted row
// without touching the ledger again. The returned row's Status tells
// the caller whether the settlement completed.
func (o *Orchestrator) SettlePurchase(ctx context.Context, req PurchaseRequest) (*domain.LedgerTransaction, error) {
	start := time.Now()

	mu := o.assetLock(req.AssetID)
	mu.Lock()
	defer mu.Unlock()

	key := idhash.ComputeSettlementKey(req.BuyerID, req.AssetID, req.Units, req.Amount, req.ClientKey)

	if prior, err := o.priorOutcome(ctx, key); err != nil {
		return nil, err
	} else if prior != nil {
		o.log("settlement %s replayed from row %s (%s)", key[:12], prior.ID, prior.Status)
		observability.RecordIdempotentReplay()
		return prior, nil
	}

	asset, err := o.validate(ctx, req)
	if err != nil {
		observability.RecordSettlement("rejected", 0, 0, time.Since(start).Seconds())
		return nil, err
	}

	row, err := o.execute(ctx, req, asset, key)
	outcome := "completed"
	switch {
	case err != nil:
		outcome = "failed"
	case row.Metadata[domain.MetaPaymentFailed] == "true":
		outcome = "degraded"
	}
	observability.RecordSettlement(outcome, req.Units, req.Amount, time.Since(start).Seconds())
	if err == nil {
		observability.DefaultMetrics.LastSuccessfulSettlement.Set(float64(o.now() / 1000))
	}
	return row, err
}

// priorOutcome looks up a Completed row persisted for the same
// settlement key. Failed rows do not block a retry; only a completed
// unit transfer must never be re-issued.
func (o *Orchestrator) priorOutcome(ctx context.Context, key string) (*domain.LedgerTransaction, error) {
	rows, err := o.transactions.Find(ctx, storage.TransactionFilter{
		MetadataKey:   domain.MetaIdempotencyKey,
		MetadataValue: key,
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	for _, row := range rows {
		if row.Status == domain.TxStatusCompleted {
			return row, nil
		}
	}
	return nil, nil
}

// validate runs the §4.3 step-1 precondition checks. Violations reject
// the request before any external call; no transaction row is created.
func (o *Orchestrator) validate(ctx context.Context, req PurchaseRequest) (*domain.Asset, error) {
	if req.Units <= 0 {
		return nil, fmt.Errorf("%w: units must be positive", storage.ErrInvalidInput)
	}

	asset, err := o.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", req.AssetID, err)
	}

	if !asset.Purchasable() {
		return nil, fmt.Errorf("%w: asset %s is %s", ErrNotPurchasable, asset.ID, asset.Status)
	}

	// Availability is derived from the transaction log, never from the
	// cached counter on the asset row.
	sold, err := o.ownership.UnitsSold(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	if req.Units > asset.TotalUnits-sold {
		return nil, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientUnits,
			req.Units, asset.TotalUnits-sold)
	}

	expected := float64(req.Units) * asset.UnitPrice
	if math.Abs(req.Amount-expected) > PriceTolerance {
		return nil, fmt.Errorf("%w: got %.2f, want %.2f", ErrPriceMismatch, req.Amount, expected)
	}

	return asset, nil
}

// execute runs steps 2 through 6 under the asset lock. Validation has
// already passed.
func (o *Orchestrator) execute(ctx context.Context, req PurchaseRequest, asset *domain.Asset, key string) (*domain.LedgerTransaction, error) {
	// Step 2: lazy tokenization and buyer account provisioning.
	if !asset.Tokenized() {
		tokenized, err := o.tokenizer.Tokenize(ctx, asset.ID)
		observability.RecordTokenization(err)
		if err != nil {
			return o.recordFailed(ctx, req, asset, key, "", fmt.Errorf("tokenize: %w", err))
		}
		asset = tokenized
	}

	buyerAccount, err := o.accounts.EnsureAccount(ctx, req.BuyerID)
	if err != nil {
		return o.recordFailed(ctx, req, asset, key, "", fmt.Errorf("provision buyer account: %w", err))
	}

	// Step A: authorize. An existing authorization is success.
	if _, err := o.client.Authorize(ctx, buyerAccount, asset.IssuerAccount, asset.Symbol); err != nil {
		if !errors.Is(err, xrpl.ErrAlreadySatisfied) {
			return o.recordFailed(ctx, req, asset, key, buyerAccount, fmt.Errorf("authorize: %w", err))
		}
	}

	// Step B: transfer units, the critical step.
	unitOpRef, err := o.client.TransferUnits(ctx, asset.Symbol, asset.IssuerAccount, asset.IssuerAccount, buyerAccount, req.Units)
	if err != nil {
		return o.recordFailed(ctx, req, asset, key, buyerAccount, fmt.Errorf("transfer units: %w", err))
	}

	meta := map[string]string{
		domain.MetaIdempotencyKey: key,
	}

	// Step C: collect payment. Units have already moved, so a failure
	// here degrades the outcome instead of aborting it.
	sellerAccount, payErr := o.accounts.EnsureAccount(ctx, asset.SellerID)
	if payErr == nil {
		var payOpRef string
		payOpRef, payErr = o.client.TransferValue(ctx, buyerAccount, sellerAccount, req.Amount)
		if payErr == nil {
			meta[domain.MetaPaymentOpRef] = payOpRef
		}
	}
	if payErr != nil {
		meta[domain.MetaPaymentFailed] = "true"
		meta[domain.MetaFailureReason] = payErr.Error()
		o.log("settlement %s degraded: payment failed: %v", key[:12], payErr)
	}

	now := o.now()
	row := &domain.LedgerTransaction{
		ID:          idhash.ComputeTransactionID(req.BuyerID, asset.ID, domain.TxTypeUnitPurchase, req.Units, now, key),
		Type:        domain.TxTypeUnitPurchase,
		Status:      domain.TxStatusCompleted,
		HolderID:    req.BuyerID,
		AssetID:     asset.ID,
		Amount:      req.Amount,
		Units:       req.Units,
		UnitPrice:   asset.UnitPrice,
		OpRef:       unitOpRef,
		FromAccount: asset.IssuerAccount,
		ToAccount:   buyerAccount,
		Metadata:    meta,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	if err := o.transactions.Insert(ctx, row); err != nil {
		return nil, fmt.Errorf("persist settlement row: %w", err)
	}

	o.refreshSoldProjection(ctx, asset)

	o.log("settlement %s completed: %d units of %s to %s (op %s)",
		key[:12], req.Units, asset.Symbol, req.BuyerID, unitOpRef)
	return row, nil
}

// recordFailed persists the single Failed row for an aborted settlement
// and returns the original failure.
func (o *Orchestrator) recordFailed(ctx context.Context, req PurchaseRequest, asset *domain.Asset, key, buyerAccount string, cause error) (*domain.LedgerTransaction, error) {
	now := o.now()
	row := &domain.LedgerTransaction{
		ID:        idhash.ComputeTransactionID(req.BuyerID, asset.ID, domain.TxTypeUnitPurchase, req.Units, now, key),
		Type:      domain.TxTypeUnitPurchase,
		Status:    domain.TxStatusFailed,
		HolderID:  req.BuyerID,
		AssetID:   asset.ID,
		Amount:    req.Amount,
		Units:     req.Units,
		UnitPrice: asset.UnitPrice,
		ToAccount: buyerAccount,
		Metadata: map[string]string{
			domain.MetaIdempotencyKey: key,
			domain.MetaFailureReason:  cause.Error(),
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}

	if err := o.transactions.Insert(ctx, row); err != nil {
		o.log("settlement %s: failed to persist failure row: %v", key[:12], err)
	}

	o.log("settlement %s failed: %v", key[:12], cause)
	return row, cause
}

// refreshSoldProjection recomputes the cached units_sold counter from
// the log and flips the asset to SOLD_OUT when fully subscribed. Both
// are projections; failures here are logged, not surfaced, since the
// settlement row is already durable.
func (o *Orchestrator) refreshSoldProjection(ctx context.Context, asset *domain.Asset) {
	sold, err := o.ownership.UnitsSold(ctx, asset.ID)
	if err != nil {
		o.log("refresh units_sold for %s: %v", asset.ID, err)
		return
	}

	asset.UnitsSold = sold
	asset.UpdatedAt = o.now()
	if err := o.assets.Update(ctx, asset); err != nil {
		o.log("update units_sold for %s: %v", asset.ID, err)
		return
	}

	if sold >= asset.TotalUnits {
		if _, err := o.tokenizer.MarkSoldOut(ctx, asset.ID); err != nil {
			o.log("mark sold out %s: %v", asset.ID, err)
		}
	}
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[settlement] "+format, args...)
	}
}

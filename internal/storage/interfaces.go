package storage

import (
	"context"

	"proptoken/internal/domain"
)

// AssetStore provides access to asset registry storage.
type AssetStore interface {
	// Insert adds a new asset. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.Asset) error

	// GetByID retrieves an asset by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, assetID string) (*domain.Asset, error)

	// Update persists a modified asset. Returns ErrNotFound if not exists.
	Update(ctx context.Context, a *domain.Asset) error

	// GetByStatus retrieves all assets in the given lifecycle status.
	GetByStatus(ctx context.Context, status domain.AssetStatus) ([]*domain.Asset, error)

	// GetBySeller retrieves all assets submitted by a seller.
	GetBySeller(ctx context.Context, sellerID string) ([]*domain.Asset, error)
}

// TransactionFilter narrows a transaction log query. Zero-valued fields
// are ignored.
type TransactionFilter struct {
	HolderID string
	AssetID  string
	Types    []domain.TransactionType
	Status   domain.TransactionStatus
	// MetadataKey/MetadataValue match rows whose metadata contains the
	// given pair. Used for idempotency lookups.
	MetadataKey   string
	MetadataValue string
}

// TransactionStore provides append-only access to the ledger
// transaction log. Terminal rows are immutable: there is no update
// operation.
type TransactionStore interface {
	// Insert appends a new transaction. Returns ErrDuplicateKey if the
	// id exists.
	Insert(ctx context.Context, tx *domain.LedgerTransaction) error

	// GetByID retrieves a transaction by id. Returns ErrNotFound if not
	// exists.
	GetByID(ctx context.Context, txID string) (*domain.LedgerTransaction, error)

	// Find retrieves all transactions matching the filter, ordered by
	// creation time ASC (ties broken by id for determinism).
	Find(ctx context.Context, f TransactionFilter) ([]*domain.LedgerTransaction, error)
}

// OrderStore provides access to secondary-market order storage.
type OrderStore interface {
	// Insert adds a new order. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetOpenOrders retrieves resting orders for (asset, side) with
	// status Active or Partial, in price priority (ascending limit for
	// sells, descending for buys) then creation time ASC.
	GetOpenOrders(ctx context.Context, assetID string, side domain.OrderSide) ([]*domain.Order, error)

	// GetByHolder retrieves all orders placed by a holder, newest first.
	GetByHolder(ctx context.Context, holderID string) ([]*domain.Order, error)

	// UpdateFill persists fill bookkeeping and the recomputed status.
	// expectedFilled is the units_filled value the caller read; the
	// update applies only if it still matches, otherwise ErrStaleOrder.
	UpdateFill(ctx context.Context, orderID string, expectedFilled, newFilled int64, newStatus domain.OrderStatus) error

	// Cancel sets an open order to Cancelled. Returns ErrNotFound if
	// not exists, ErrInvalidInput if the order is already terminal.
	Cancel(ctx context.Context, orderID string) error
}

// TradeTickStore provides append-only access to executed-trade history.
type TradeTickStore interface {
	// InsertBulk adds multiple ticks. Append-only, no dedup key beyond
	// what the engine generates.
	InsertBulk(ctx context.Context, ticks []*domain.TradeTick) error

	// GetByAsset retrieves all ticks for an asset, ordered by timestamp ASC.
	GetByAsset(ctx context.Context, assetID string) ([]*domain.TradeTick, error)

	// GetByTimeRange retrieves ticks for an asset within [start, end] ms
	// (inclusive).
	GetByTimeRange(ctx context.Context, assetID string, start, end int64) ([]*domain.TradeTick, error)
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

const (
	insertOrderSQL = `
		INSERT INTO orders (
			order_id, holder_id, asset_id, side,
			units, limit_price, units_filled, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectOrderSQL = `
		SELECT order_id, holder_id, asset_id, side,
		       units, limit_price, units_filled, status,
		       created_at, updated_at
		FROM orders`

	getOrderByIDSQL = selectOrderSQL + ` WHERE order_id = $1`

	// Best ask first: lowest limit wins for sells.
	getOpenSellOrdersSQL = selectOrderSQL + `
		WHERE asset_id = $1 AND side = $2 AND status IN ('ACTIVE', 'PARTIAL')
		ORDER BY limit_price ASC, created_at ASC, order_id ASC`

	// Best bid first: highest limit wins for buys.
	getOpenBuyOrdersSQL = selectOrderSQL + `
		WHERE asset_id = $1 AND side = $2 AND status IN ('ACTIVE', 'PARTIAL')
		ORDER BY limit_price DESC, created_at ASC, order_id ASC`

	getOrdersByHolderSQL = selectOrderSQL + `
		WHERE holder_id = $1
		ORDER BY created_at DESC, order_id ASC`

	// Compare-and-set on units_filled so concurrent fills cannot silently
	// overwrite each other.
	updateOrderFillSQL = `
		UPDATE orders
		SET units_filled = $3, status = $4
		WHERE order_id = $1 AND units_filled = $2 AND status IN ('ACTIVE', 'PARTIAL')`

	cancelOrderSQL = `
		UPDATE orders
		SET status = 'CANCELLED'
		WHERE order_id = $1 AND status IN ('ACTIVE', 'PARTIAL')`
)

// OrderStore is a PostgreSQL implementation of storage.OrderStore.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new PostgreSQL order store.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Insert adds a new order. Returns ErrDuplicateKey if the id exists.
func (s *OrderStore) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" || o.HolderID == "" || o.AssetID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.HolderID, o.AssetID, string(o.Side),
		o.Units, o.LimitPrice, o.UnitsFilled, string(o.Status),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, getOrderByIDSQL, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	return o, nil
}

// GetOpenOrders retrieves resting orders for (asset, side) in price
// priority then creation time ASC.
func (s *OrderStore) GetOpenOrders(ctx context.Context, assetID string, side domain.OrderSide) ([]*domain.Order, error) {
	query := getOpenSellOrdersSQL
	if side == domain.OrderSideBuy {
		query = getOpenBuyOrdersSQL
	}

	rows, err := s.pool.Query(ctx, query, assetID, string(side))
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetByHolder retrieves all orders placed by a holder, newest first.
func (s *OrderStore) GetByHolder(ctx context.Context, holderID string) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, getOrdersByHolderSQL, holderID)
	if err != nil {
		return nil, fmt.Errorf("get orders by holder: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// UpdateFill persists fill bookkeeping conditionally on the expected
// current fill, rejecting concurrent modification with ErrStaleOrder.
func (s *OrderStore) UpdateFill(ctx context.Context, orderID string, expectedFilled, newFilled int64, newStatus domain.OrderStatus) error {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !o.Status.Open() {
		return storage.ErrInvalidInput
	}
	if newFilled < expectedFilled || newFilled > o.Units {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, updateOrderFillSQL, orderID, expectedFilled, newFilled, string(newStatus))
	if err != nil {
		return fmt.Errorf("update order fill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another writer advanced the fill between our read and the
		// conditional update.
		return storage.ErrStaleOrder
	}

	return nil
}

// Cancel sets an open order to Cancelled.
func (s *OrderStore) Cancel(ctx context.Context, orderID string) error {
	tag, err := s.pool.Exec(ctx, cancelOrderSQL, orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from one already terminal.
		if _, err := s.GetByID(ctx, orderID); err != nil {
			return err
		}
		return storage.ErrInvalidInput
	}

	return nil
}

// scanOrder scans a single order from a row.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var side, status string

	err := row.Scan(
		&o.ID, &o.HolderID, &o.AssetID, &side,
		&o.Units, &o.LimitPrice, &o.UnitsFilled, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// scanOrders scans multiple orders from rows.
func scanOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

var _ storage.OrderStore = (*OrderStore)(nil)

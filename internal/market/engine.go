// Package market implements the secondary-market order book. Orders
// rest per asset and match by price priority, then strict time
// priority; every fill trades at the resting order's limit price.
// Matching writes internal ledger rows only, it never calls the
// external ledger.
package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/idhash"
	"proptoken/internal/ledger"
	"proptoken/internal/observability"
	"proptoken/internal/storage"
)

var (
	// ErrInsufficientBalance rejects a sell whose holder owns fewer
	// units than offered.
	ErrInsufficientBalance = errors.New("holder owns fewer units than offered")
	// ErrNotOrderOwner rejects a cancel by anyone but the order's holder.
	ErrNotOrderOwner = errors.New("order belongs to another holder")
	// ErrOrderClosed rejects a cancel of a filled or cancelled order.
	ErrOrderClosed = errors.New("order is no longer open")
)

// Engine matches orders. Submissions for the same asset are serialized:
// one submission's full match pass, fills and transaction rows included,
// completes before the next begins.
type Engine struct {
	orders       storage.OrderStore
	transactions storage.TransactionStore
	ticks        storage.TradeTickStore
	ownership    *ledger.Ledger
	verbose      bool

	now func() int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Options for creating Engine.
type Options struct {
	OrderStore       storage.OrderStore
	TransactionStore storage.TransactionStore
	TradeTickStore   storage.TradeTickStore
	Ledger           *ledger.Ledger
	Verbose          bool

	// Now overrides the clock, for tests. Returns unix milliseconds.
	Now func() int64
}

// New creates a new Engine.
func New(opts Options) *Engine {
	e := &Engine{
		orders:       opts.OrderStore,
		transactions: opts.TransactionStore,
		ticks:        opts.TradeTickStore,
		ownership:    opts.Ledger,
		verbose:      opts.Verbose,
		now:          opts.Now,
		locks:        make(map[string]*sync.Mutex),
	}
	if e.now == nil {
		e.now = func() int64 { return time.Now().UnixMilli() }
	}
	return e
}

func (e *Engine) assetLock(assetID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	mu, ok := e.locks[assetID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[assetID] = mu
	}
	return mu
}

// SubmitOrder validates and persists an order, then runs its match
// pass. The returned order reflects any fills from that pass.
func (e *Engine) SubmitOrder(ctx context.Context, holderID, assetID string, side domain.OrderSide, units int64, limitPrice float64) (*domain.Order, error) {
	if units <= 0 {
		return nil, fmt.Errorf("%w: units must be positive", storage.ErrInvalidInput)
	}
	if limitPrice <= 0 {
		return nil, fmt.Errorf("%w: limit price must be positive", storage.ErrInvalidInput)
	}

	mu := e.assetLock(assetID)
	mu.Lock()
	defer mu.Unlock()

	// Sellers must own what they offer, per the derived ledger state.
	if side == domain.OrderSideSell {
		h, err := e.ownership.HoldingsOf(ctx, holderID, assetID)
		if err != nil {
			return nil, err
		}
		if h.UnitsOwned < units {
			return nil, fmt.Errorf("%w: owns %d, offered %d", ErrInsufficientBalance, h.UnitsOwned, units)
		}
	}

	now := e.now()
	order := &domain.Order{
		ID:         idhash.ComputeOrderID(holderID, assetID, side, units, limitPrice, now),
		HolderID:   holderID,
		AssetID:    assetID,
		Side:       side,
		Units:      units,
		LimitPrice: limitPrice,
		Status:     domain.OrderStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.orders.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	observability.RecordOrderSubmitted(string(side))

	if err := e.match(ctx, order); err != nil {
		return nil, err
	}

	e.log("order %s: %s %d units of %s at %.4f, filled %d",
		order.ID[:12], side, units, assetID, limitPrice, order.UnitsFilled)
	return order, nil
}

// match runs one pass for an incoming order against the resting book.
// Candidates arrive from the store already in price-then-time priority.
func (e *Engine) match(ctx context.Context, incoming *domain.Order) error {
	opposite := domain.OrderSideSell
	if incoming.Side == domain.OrderSideSell {
		opposite = domain.OrderSideBuy
	}

	candidates, err := e.orders.GetOpenOrders(ctx, incoming.AssetID, opposite)
	if err != nil {
		return fmt.Errorf("load resting orders: %w", err)
	}

	var ticks []*domain.TradeTick

	for _, candidate := range candidates {
		if incoming.Remaining() == 0 {
			break
		}
		if candidate.ID == incoming.ID {
			continue
		}
		if !priceCompatible(incoming, candidate) {
			continue
		}

		qty := incoming.Remaining()
		if candidate.Remaining() < qty {
			qty = candidate.Remaining()
		}
		// Maker-price rule: every fill trades at the resting order's
		// limit, never the incoming one's.
		price := candidate.LimitPrice

		if err := e.recordTrade(ctx, incoming, candidate, qty, price); err != nil {
			return err
		}

		buyOrderID, sellOrderID := incoming.ID, candidate.ID
		if incoming.Side == domain.OrderSideSell {
			buyOrderID, sellOrderID = candidate.ID, incoming.ID
		}
		ticks = append(ticks, &domain.TradeTick{
			AssetID:     incoming.AssetID,
			Price:       price,
			Units:       qty,
			BuyOrderID:  buyOrderID,
			SellOrderID: sellOrderID,
			Timestamp:   e.now(),
		})
		observability.RecordTrade(qty)
	}

	if len(ticks) > 0 && e.ticks != nil {
		if err := e.ticks.InsertBulk(ctx, ticks); err != nil {
			// Tick history is analytical. The fills are already durable,
			// so a tick write failure is logged and not surfaced.
			e.log("insert %d trade ticks: %v", len(ticks), err)
		}
	}

	return nil
}

// recordTrade persists both fills and the Completed transaction pair
// for one trade.
func (e *Engine) recordTrade(ctx context.Context, incoming, candidate *domain.Order, qty int64, price float64) error {
	if err := e.applyFill(ctx, candidate, qty); err != nil {
		return err
	}
	if err := e.applyFill(ctx, incoming, qty); err != nil {
		return err
	}

	buyOrder, sellOrder := incoming, candidate
	if incoming.Side == domain.OrderSideSell {
		buyOrder, sellOrder = candidate, incoming
	}

	now := e.now()
	amount := float64(qty) * price

	buyRow := &domain.LedgerTransaction{
		ID:        idhash.ComputeTransactionID(buyOrder.HolderID, buyOrder.AssetID, domain.TxTypeSecondaryBuy, qty, now, buyOrder.ID+sellOrder.ID),
		Type:      domain.TxTypeSecondaryBuy,
		Status:    domain.TxStatusCompleted,
		HolderID:  buyOrder.HolderID,
		AssetID:   buyOrder.AssetID,
		Amount:    amount,
		Units:     qty,
		UnitPrice: price,
		Metadata: map[string]string{
			domain.MetaOrderID:             buyOrder.ID,
			domain.MetaCounterpartyOrderID: sellOrder.ID,
			domain.MetaTradeKind:           "secondary_market",
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	sellRow := &domain.LedgerTransaction{
		ID:        idhash.ComputeTransactionID(sellOrder.HolderID, sellOrder.AssetID, domain.TxTypeSecondarySell, qty, now, sellOrder.ID+buyOrder.ID),
		Type:      domain.TxTypeSecondarySell,
		Status:    domain.TxStatusCompleted,
		HolderID:  sellOrder.HolderID,
		AssetID:   sellOrder.AssetID,
		Amount:    amount,
		Units:     qty,
		UnitPrice: price,
		Metadata: map[string]string{
			domain.MetaOrderID:             sellOrder.ID,
			domain.MetaCounterpartyOrderID: buyOrder.ID,
			domain.MetaTradeKind:           "secondary_market",
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}

	if err := e.transactions.Insert(ctx, buyRow); err != nil {
		return fmt.Errorf("persist buy row: %w", err)
	}
	if err := e.transactions.Insert(ctx, sellRow); err != nil {
		return fmt.Errorf("persist sell row: %w", err)
	}

	e.log("trade: %d units of %s at %.4f (%s x %s)",
		qty, buyOrder.AssetID, price, buyOrder.ID[:12], sellOrder.ID[:12])
	return nil
}

// applyFill advances an order's filled quantity and status, in memory
// and in the store.
func (e *Engine) applyFill(ctx context.Context, order *domain.Order, qty int64) error {
	expected := order.UnitsFilled
	order.UnitsFilled += qty
	order.RecomputeStatus()

	if err := e.orders.UpdateFill(ctx, order.ID, expected, order.UnitsFilled, order.Status); err != nil {
		return fmt.Errorf("update fill for %s: %w", order.ID, err)
	}
	return nil
}

// priceCompatible reports whether the two orders cross: the buy limit
// must meet or exceed the sell limit.
func priceCompatible(incoming, candidate *domain.Order) bool {
	if incoming.Side == domain.OrderSideBuy {
		return incoming.LimitPrice >= candidate.LimitPrice
	}
	return candidate.LimitPrice >= incoming.LimitPrice
}

// CancelOrder cancels an open order. Only the owning holder may cancel,
// and already-filled quantity stays filled; the transaction rows from
// prior fills are untouched.
func (e *Engine) CancelOrder(ctx context.Context, holderID, orderID string) (*domain.Order, error) {
	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}

	if order.HolderID != holderID {
		return nil, fmt.Errorf("%w: %s", ErrNotOrderOwner, orderID)
	}
	if !order.Status.Open() {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderClosed, orderID, order.Status)
	}

	mu := e.assetLock(order.AssetID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.orders.Cancel(ctx, orderID); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	observability.RecordOrderCancelled()

	order, err = e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order %s: %w", orderID, err)
	}

	e.log("order %s cancelled with %d of %d filled", orderID[:12], order.UnitsFilled, order.Units)
	return order, nil
}

func (e *Engine) log(format string, args ...interface{}) {
	if e.verbose {
		log.Printf("[market] "+format, args...)
	}
}

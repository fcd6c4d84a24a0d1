package memory

import (
	"context"
	"sort"
	"sync"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Order
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data: make(map[string]*domain.Order),
	}
}

// Insert adds a new order. Returns ErrDuplicateKey if the id exists.
func (s *OrderStore) Insert(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" || o.HolderID == "" || o.AssetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *o
	s.data[o.ID] = &copy
	return nil
}

// GetByID retrieves an order by id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *o
	return &copy, nil
}

// GetOpenOrders retrieves resting orders for (asset, side) in price
// priority then creation time ASC.
func (s *OrderStore) GetOpenOrders(_ context.Context, assetID string, side domain.OrderSide) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if o.AssetID == assetID && o.Side == side && o.Status.Open() {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LimitPrice != result[j].LimitPrice {
			if side == domain.OrderSideSell {
				// Best ask first
				return result[i].LimitPrice < result[j].LimitPrice
			}
			// Best bid first
			return result[i].LimitPrice > result[j].LimitPrice
		}
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetByHolder retrieves all orders placed by a holder, newest first.
func (s *OrderStore) GetByHolder(_ context.Context, holderID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if o.HolderID == holderID {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdateFill persists fill bookkeeping conditionally on the expected
// current fill, rejecting concurrent modification with ErrStaleOrder.
func (s *OrderStore) UpdateFill(_ context.Context, orderID string, expectedFilled, newFilled int64, newStatus domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.data[orderID]
	if !exists {
		return storage.ErrNotFound
	}
	if !o.Status.Open() {
		return storage.ErrInvalidInput
	}
	if o.UnitsFilled != expectedFilled {
		return storage.ErrStaleOrder
	}
	if newFilled < expectedFilled || newFilled > o.Units {
		return storage.ErrInvalidInput
	}

	o.UnitsFilled = newFilled
	o.Status = newStatus
	return nil
}

// Cancel sets an open order to Cancelled.
func (s *OrderStore) Cancel(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.data[orderID]
	if !exists {
		return storage.ErrNotFound
	}
	if !o.Status.Open() {
		return storage.ErrInvalidInput
	}

	o.Status = domain.OrderStatusCancelled
	return nil
}

var _ storage.OrderStore = (*OrderStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

// TradeTickStore is an in-memory implementation of storage.TradeTickStore.
type TradeTickStore struct {
	mu   sync.RWMutex
	data []*domain.TradeTick
}

// NewTradeTickStore creates a new in-memory trade tick store.
func NewTradeTickStore() *TradeTickStore {
	return &TradeTickStore{}
}

// InsertBulk appends multiple ticks.
func (s *TradeTickStore) InsertBulk(_ context.Context, ticks []*domain.TradeTick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tick := range ticks {
		if tick == nil || tick.AssetID == "" {
			return storage.ErrInvalidInput
		}
		copy := *tick
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByAsset retrieves all ticks for an asset, ordered by timestamp ASC.
func (s *TradeTickStore) GetByAsset(_ context.Context, assetID string) ([]*domain.TradeTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeTick
	for _, tick := range s.data {
		if tick.AssetID == assetID {
			copy := *tick
			result = append(result, &copy)
		}
	}

	sortTicks(result)
	return result, nil
}

// GetByTimeRange retrieves ticks for an asset within [start, end] inclusive.
func (s *TradeTickStore) GetByTimeRange(_ context.Context, assetID string, start, end int64) ([]*domain.TradeTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeTick
	for _, tick := range s.data {
		if tick.AssetID == assetID && tick.Timestamp >= start && tick.Timestamp <= end {
			copy := *tick
			result = append(result, &copy)
		}
	}

	sortTicks(result)
	return result, nil
}

func sortTicks(ticks []*domain.TradeTick) {
	sort.Slice(ticks, func(i, j int) bool {
		return ticks[i].Timestamp < ticks[j].Timestamp
	})
}

var _ storage.TradeTickStore = (*TradeTickStore)(nil)

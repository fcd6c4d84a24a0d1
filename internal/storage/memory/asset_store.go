package memory

import (
	"context"
	"sort"
	"sync"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

// AssetStore is an in-memory implementation of storage.AssetStore.
type AssetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Asset
}

// NewAssetStore creates a new in-memory asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		data: make(map[string]*domain.Asset),
	}
}

// Insert adds a new asset. Returns ErrDuplicateKey if the id exists.
func (s *AssetStore) Insert(_ context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[a.ID] = &copy
	return nil
}

// GetByID retrieves an asset by its ID. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(_ context.Context, assetID string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[assetID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}

// Update persists a modified asset. Returns ErrNotFound if not exists.
func (s *AssetStore) Update(_ context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; !exists {
		return storage.ErrNotFound
	}

	copy := *a
	s.data[a.ID] = &copy
	return nil
}

// GetByStatus retrieves all assets in the given lifecycle status.
func (s *AssetStore) GetByStatus(_ context.Context, status domain.AssetStatus) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Asset
	for _, a := range s.data {
		if a.Status == status {
			copy := *a
			result = append(result, &copy)
		}
	}

	sortAssets(result)
	return result, nil
}

// GetBySeller retrieves all assets submitted by a seller.
func (s *AssetStore) GetBySeller(_ context.Context, sellerID string) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Asset
	for _, a := range s.data {
		if a.SellerID == sellerID {
			copy := *a
			result = append(result, &copy)
		}
	}

	sortAssets(result)
	return result, nil
}

// sortAssets orders by creation time ASC, id ASC for determinism.
func sortAssets(assets []*domain.Asset) {
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt != assets[j].CreatedAt {
			return assets[i].CreatedAt < assets[j].CreatedAt
		}
		return assets[i].ID < assets[j].ID
	})
}

var _ storage.AssetStore = (*AssetStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

// TransactionStore is an in-memory implementation of
// storage.TransactionStore. The log is append-only: rows are never
// updated or deleted once inserted.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LedgerTransaction
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.LedgerTransaction),
	}
}

// Insert appends a new transaction. Returns ErrDuplicateKey if the id exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.LedgerTransaction) error {
	if tx == nil || tx.ID == "" || tx.HolderID == "" || tx.AssetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[tx.ID] = copyTransaction(tx)
	return nil
}

// GetByID retrieves a transaction by id. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, txID string) (*domain.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.data[txID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyTransaction(tx), nil
}

// Find retrieves all transactions matching the filter, ordered by
// creation time ASC, id ASC.
func (s *TransactionStore) Find(_ context.Context, f storage.TransactionFilter) ([]*domain.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerTransaction
	for _, tx := range s.data {
		if matchesFilter(tx, f) {
			result = append(result, copyTransaction(tx))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func matchesFilter(tx *domain.LedgerTransaction, f storage.TransactionFilter) bool {
	if f.HolderID != "" && tx.HolderID != f.HolderID {
		return false
	}
	if f.AssetID != "" && tx.AssetID != f.AssetID {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if tx.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MetadataKey != "" {
		if tx.Metadata == nil || tx.Metadata[f.MetadataKey] != f.MetadataValue {
			return false
		}
	}
	return true
}

// copyTransaction deep-copies a row including its metadata map.
func copyTransaction(tx *domain.LedgerTransaction) *domain.LedgerTransaction {
	c := *tx
	if tx.Metadata != nil {
		c.Metadata = make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			c.Metadata[k] = v
		}
	}
	if tx.CompletedAt != nil {
		done := *tx.CompletedAt
		c.CompletedAt = &done
	}
	return &c
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

package memory

import (
	"context"
	"errors"
	"testing"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

func TestTransactionStore_InsertAndGet(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.LedgerTransaction{
		ID:        "tx1",
		Type:      domain.TxTypeUnitPurchase,
		Status:    domain.TxStatusCompleted,
		HolderID:  "holder1",
		AssetID:   "asset1",
		Amount:    2500,
		Units:     100,
		UnitPrice: 25,
		CreatedAt: 1000,
	}

	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "tx1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Units != 100 {
		t.Errorf("Units mismatch: got %d, want 100", got.Units)
	}
}

func TestTransactionStore_DuplicateKey(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.LedgerTransaction{ID: "tx1", HolderID: "h1", AssetID: "a1"}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, tx)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTransactionStore_NotFound(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTransactionStore_InvalidInput(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.LedgerTransaction{ID: ""}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}

func TestTransactionStore_FindFilters(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	rows := []*domain.LedgerTransaction{
		{ID: "t1", HolderID: "h1", AssetID: "a1", Type: domain.TxTypeUnitPurchase, Status: domain.TxStatusCompleted, CreatedAt: 1000},
		{ID: "t2", HolderID: "h1", AssetID: "a1", Type: domain.TxTypeUnitSale, Status: domain.TxStatusCompleted, CreatedAt: 2000},
		{ID: "t3", HolderID: "h1", AssetID: "a1", Type: domain.TxTypeUnitPurchase, Status: domain.TxStatusFailed, CreatedAt: 3000},
		{ID: "t4", HolderID: "h2", AssetID: "a1", Type: domain.TxTypeUnitPurchase, Status: domain.TxStatusCompleted, CreatedAt: 4000},
		{ID: "t5", HolderID: "h1", AssetID: "a2", Type: domain.TxTypeUnitPurchase, Status: domain.TxStatusCompleted, CreatedAt: 5000},
	}
	for _, tx := range rows {
		if err := store.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert %s failed: %v", tx.ID, err)
		}
	}

	result, err := store.Find(ctx, storage.TransactionFilter{
		HolderID: "h1",
		AssetID:  "a1",
		Types:    []domain.TransactionType{domain.TxTypeUnitPurchase},
		Status:   domain.TxStatusCompleted,
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(result) != 1 || result[0].ID != "t1" {
		t.Errorf("Expected [t1], got %d rows", len(result))
	}
}

func TestTransactionStore_FindOrdering(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	// Insert out of creation order
	rows := []*domain.LedgerTransaction{
		{ID: "t3", HolderID: "h1", AssetID: "a1", CreatedAt: 3000},
		{ID: "t1", HolderID: "h1", AssetID: "a1", CreatedAt: 1000},
		{ID: "t2", HolderID: "h1", AssetID: "a1", CreatedAt: 2000},
	}
	for _, tx := range rows {
		if err := store.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.Find(ctx, storage.TransactionFilter{HolderID: "h1"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if result[i].ID != want {
			t.Errorf("Position %d: got %s, want %s", i, result[i].ID, want)
		}
	}
}

func TestTransactionStore_FindByMetadata(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.LedgerTransaction{
		ID: "t1", HolderID: "h1", AssetID: "a1",
		Metadata: map[string]string{domain.MetaIdempotencyKey: "key123"},
	}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.Find(ctx, storage.TransactionFilter{
		MetadataKey:   domain.MetaIdempotencyKey,
		MetadataValue: "key123",
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(result))
	}

	result, _ = store.Find(ctx, storage.TransactionFilter{
		MetadataKey:   domain.MetaIdempotencyKey,
		MetadataValue: "other",
	})
	if len(result) != 0 {
		t.Errorf("Expected no rows for non-matching metadata, got %d", len(result))
	}
}

func TestTransactionStore_CopiesAreIsolated(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	tx := &domain.LedgerTransaction{
		ID: "t1", HolderID: "h1", AssetID: "a1",
		Metadata: map[string]string{"k": "v"},
	}
	if err := store.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the returned copy must not affect the stored row.
	got, _ := store.GetByID(ctx, "t1")
	got.Metadata["k"] = "mutated"

	again, _ := store.GetByID(ctx, "t1")
	if again.Metadata["k"] != "v" {
		t.Error("Stored row was mutated through a returned copy")
	}
}

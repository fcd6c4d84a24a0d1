package reconcile

import (
	"context"
	"testing"

	"proptoken/internal/domain"
	"proptoken/internal/storage/memory"
)

func insertRow(t *testing.T, store *memory.TransactionStore, id string, meta map[string]string) {
	t.Helper()
	tx := &domain.LedgerTransaction{
		ID:        id + "-000000000000",
		Type:      domain.TxTypeUnitPurchase,
		Status:    domain.TxStatusCompleted,
		HolderID:  "buyer-1",
		AssetID:   "asset-1",
		Units:     10,
		Amount:    10,
		Metadata:  meta,
		CreatedAt: 1700000000000,
	}
	if err := store.Insert(context.Background(), tx); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestScanOnceFindsDegradedRows(t *testing.T) {
	store := memory.NewTransactionStore()

	insertRow(t, store, "clean", map[string]string{
		domain.MetaPaymentOpRef: "pay-1",
	})
	insertRow(t, store, "degraded", map[string]string{
		domain.MetaPaymentFailed: "true",
		domain.MetaFailureReason: "insufficient XRP",
	})
	insertRow(t, store, "recovered", map[string]string{
		domain.MetaPaymentFailed: "true",
		domain.MetaPaymentOpRef:  "pay-2",
	})

	var seen []string
	r := New(Options{
		TransactionStore: store,
		OnFinding: func(tx *domain.LedgerTransaction) {
			seen = append(seen, tx.ID)
		},
	})

	open, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open finding, got %d", len(open))
	}
	if open[0].Metadata[domain.MetaFailureReason] != "insufficient XRP" {
		t.Errorf("unexpected row: %+v", open[0])
	}
	if len(seen) != 1 || seen[0] != open[0].ID {
		t.Errorf("OnFinding saw %v", seen)
	}
}

func TestScanOnceEmptyLog(t *testing.T) {
	r := New(Options{TransactionStore: memory.NewTransactionStore()})

	open, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no findings, got %d", len(open))
	}
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"proptoken/internal/domain"
	"proptoken/internal/storage/memory"
)

func newTestLedger(t *testing.T) (*Ledger, *memory.TransactionStore, *memory.AssetStore) {
	t.Helper()
	txs := memory.NewTransactionStore()
	assets := memory.NewAssetStore()
	return New(txs, assets), txs, assets
}

var txSeq int

func insertTx(t *testing.T, store *memory.TransactionStore, holderID, assetID string, txType domain.TransactionType, status domain.TransactionStatus, units int64, amount float64, meta map[string]string) {
	t.Helper()
	txSeq++
	tx := &domain.LedgerTransaction{
		ID:        fmt.Sprintf("tx-%04d", txSeq),
		Type:      txType,
		Status:    status,
		HolderID:  holderID,
		AssetID:   assetID,
		Amount:    amount,
		Units:     units,
		Metadata:  meta,
		CreatedAt: int64(1700000000000 + txSeq),
	}
	if err := store.Insert(context.Background(), tx); err != nil {
		t.Fatalf("insert tx: %v", err)
	}
}

func TestHoldingsOfEmptyLog(t *testing.T) {
	l, _, _ := newTestLedger(t)

	h, err := l.HoldingsOf(context.Background(), "alice", "asset-1")
	if err != nil {
		t.Fatalf("HoldingsOf: %v", err)
	}
	if h.UnitsOwned != 0 || h.CostBasis != 0 {
		t.Errorf("expected zero holding, got units=%d basis=%f", h.UnitsOwned, h.CostBasis)
	}
}

func TestHoldingsOfPurchasesAccumulate(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeSecondaryBuy, domain.TxStatusCompleted, 50, 600, nil)

	h, err := l.HoldingsOf(context.Background(), "alice", "asset-1")
	if err != nil {
		t.Fatalf("HoldingsOf: %v", err)
	}
	if h.UnitsOwned != 150 {
		t.Errorf("UnitsOwned = %d, want 150", h.UnitsOwned)
	}
	if h.CostBasis != 1600 {
		t.Errorf("CostBasis = %f, want 1600", h.CostBasis)
	}
}

func TestHoldingsOfAverageCostSale(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	// Buy 100 for 1000, sell 40: basis drops by 40%.
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeSecondarySell, domain.TxStatusCompleted, 40, 480, nil)

	h, err := l.HoldingsOf(context.Background(), "alice", "asset-1")
	if err != nil {
		t.Fatalf("HoldingsOf: %v", err)
	}
	if h.UnitsOwned != 60 {
		t.Errorf("UnitsOwned = %d, want 60", h.UnitsOwned)
	}
	if math.Abs(h.CostBasis-600) > 1e-9 {
		t.Errorf("CostBasis = %f, want 600", h.CostBasis)
	}
}

func TestHoldingsOfIgnoresPendingAndFailed(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusPending, 500, 5000, nil)
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusFailed, 500, 5000, nil)

	h, err := l.HoldingsOf(context.Background(), "alice", "asset-1")
	if err != nil {
		t.Fatalf("HoldingsOf: %v", err)
	}
	if h.UnitsOwned != 100 {
		t.Errorf("UnitsOwned = %d, want 100", h.UnitsOwned)
	}
}

func TestHoldingsOfTransferDirections(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitTransfer, domain.TxStatusCompleted, 30, 0,
		map[string]string{domain.MetaTransferDirection: domain.TransferOut})
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeUnitTransfer, domain.TxStatusCompleted, 30, 0,
		map[string]string{domain.MetaTransferDirection: domain.TransferIn})

	alice, err := l.HoldingsOf(context.Background(), "alice", "asset-1")
	if err != nil {
		t.Fatalf("HoldingsOf alice: %v", err)
	}
	if alice.UnitsOwned != 70 {
		t.Errorf("alice UnitsOwned = %d, want 70", alice.UnitsOwned)
	}

	bob, err := l.HoldingsOf(context.Background(), "bob", "asset-1")
	if err != nil {
		t.Fatalf("HoldingsOf bob: %v", err)
	}
	if bob.UnitsOwned != 30 {
		t.Errorf("bob UnitsOwned = %d, want 30", bob.UnitsOwned)
	}
}

func TestHoldingsOfNegativeIsIntegrityError(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 10, 100, nil)
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeSecondarySell, domain.TxStatusCompleted, 25, 250, nil)

	_, err := l.HoldingsOf(context.Background(), "alice", "asset-1")
	if !errors.Is(err, ErrNegativeHoldings) {
		t.Fatalf("expected ErrNegativeHoldings, got %v", err)
	}
}

func TestCurrentValueAndOwnershipFraction(t *testing.T) {
	l, txs, assets := newTestLedger(t)
	ctx := context.Background()

	asset := &domain.Asset{
		ID:         "asset-1",
		Title:      "Marina Office",
		Kind:       domain.AssetKindOffice,
		TotalValue: 100000,
		SizeMetric: 100,
		Status:     domain.AssetStatusTokenized,
	}
	asset.CalculateUnits()
	if err := assets.Insert(ctx, asset); err != nil {
		t.Fatalf("insert asset: %v", err)
	}

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 250000, 25000, nil)

	value, err := l.CurrentValue(ctx, "alice", "asset-1")
	if err != nil {
		t.Fatalf("CurrentValue: %v", err)
	}
	if math.Abs(value-25000) > 1e-6 {
		t.Errorf("CurrentValue = %f, want 25000", value)
	}

	frac, err := l.OwnershipFraction(ctx, "alice", "asset-1")
	if err != nil {
		t.Fatalf("OwnershipFraction: %v", err)
	}
	if math.Abs(frac-0.25) > 1e-9 {
		t.Errorf("OwnershipFraction = %f, want 0.25", frac)
	}
}

func TestUnitsSoldCountsOnlyCompletedPrimaryPurchases(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 200, 2000, nil)
	insertTx(t, txs, "carol", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusFailed, 500, 5000, nil)
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeSecondaryBuy, domain.TxStatusCompleted, 50, 600, nil)
	insertTx(t, txs, "alice", "asset-2", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 999, 9990, nil)

	sold, err := l.UnitsSold(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("UnitsSold: %v", err)
	}
	if sold != 300 {
		t.Errorf("UnitsSold = %d, want 300", sold)
	}
}

func TestHoldersEnumeratesGrossPurchases(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	// Bob bought then sold everything on the secondary market. The
	// enumeration is gross purchases, so he still appears with his
	// original 200 units.
	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 200, 2000, nil)
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeSecondarySell, domain.TxStatusCompleted, 200, 2400, nil)
	insertTx(t, txs, "carol", "asset-1", domain.TxTypeSecondaryBuy, domain.TxStatusCompleted, 200, 2400, nil)

	holders, err := l.Holders(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("Holders: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("len(holders) = %d, want 2", len(holders))
	}
	if holders[0].HolderID != "alice" || holders[0].UnitsOwned != 100 {
		t.Errorf("holders[0] = %+v, want alice/100", holders[0])
	}
	if holders[1].HolderID != "bob" || holders[1].UnitsOwned != 200 {
		t.Errorf("holders[1] = %+v, want bob/200", holders[1])
	}
}

func TestAllHoldingsNetsPerHolder(t *testing.T) {
	l, txs, _ := newTestLedger(t)

	insertTx(t, txs, "alice", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 100, 1000, nil)
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeUnitPurchase, domain.TxStatusCompleted, 200, 2000, nil)
	insertTx(t, txs, "bob", "asset-1", domain.TxTypeSecondarySell, domain.TxStatusCompleted, 150, 1800, nil)

	all, err := l.AllHoldings(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("AllHoldings: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[0].HolderID != "alice" || all[0].UnitsOwned != 100 {
		t.Errorf("all[0] = %+v", all[0])
	}
	if all[1].HolderID != "bob" || all[1].UnitsOwned != 50 {
		t.Errorf("all[1] = %+v", all[1])
	}
}

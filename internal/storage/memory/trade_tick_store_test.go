package memory

import (
	"context"
	"errors"
	"testing"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

func tick(assetID string, ts int64, price float64) *domain.TradeTick {
	return &domain.TradeTick{
		AssetID:     assetID,
		Price:       price,
		Units:       10,
		BuyOrderID:  "b1",
		SellOrderID: "s1",
		Timestamp:   ts,
	}
}

func TestTradeTickStore_InsertBulkAndGetByAsset(t *testing.T) {
	store := NewTradeTickStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.TradeTick{
		tick("asset1", 2000, 11),
		tick("asset1", 1000, 10),
		tick("asset2", 1500, 99),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	ticks, err := store.GetByAsset(ctx, "asset1")
	if err != nil {
		t.Fatalf("GetByAsset failed: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(ticks))
	}
	// Ordered by timestamp ASC regardless of insert order
	if ticks[0].Timestamp != 1000 || ticks[1].Timestamp != 2000 {
		t.Errorf("Unexpected ordering: %+v", ticks)
	}
}

func TestTradeTickStore_InsertBulkEmpty(t *testing.T) {
	store := NewTradeTickStore()
	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Fatalf("Empty InsertBulk failed: %v", err)
	}
}

func TestTradeTickStore_InsertBulkInvalid(t *testing.T) {
	store := NewTradeTickStore()
	err := store.InsertBulk(context.Background(), []*domain.TradeTick{tick("", 1000, 1)})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestTradeTickStore_GetByTimeRange(t *testing.T) {
	store := NewTradeTickStore()
	ctx := context.Background()

	store.InsertBulk(ctx, []*domain.TradeTick{
		tick("asset1", 1000, 1),
		tick("asset1", 2000, 2),
		tick("asset1", 3000, 3),
	})

	// Inclusive on both ends
	ticks, err := store.GetByTimeRange(ctx, "asset1", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(ticks) != 2 || ticks[0].Price != 2 || ticks[1].Price != 3 {
		t.Errorf("Unexpected range result: %+v", ticks)
	}
}

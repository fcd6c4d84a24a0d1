package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

func testAsset(id string) *domain.Asset {
	a := &domain.Asset{
		ID:          id,
		Title:       "Sunset Apartment 4B",
		Description: "Two-bedroom apartment",
		Kind:        domain.AssetKindApartment,
		TotalValue:  500000,
		SizeMetric:  85,
		MonthlyRent: 2500,
		AnnualYield: 6,
		SellerID:    "seller-1",
		Status:      domain.AssetStatusPendingReview,
		CreatedAt:   1700000000000,
		UpdatedAt:   1700000000000,
	}
	a.CalculateUnits()
	return a
}

func TestAssetStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	asset := testAsset("asset-001")
	require.NoError(t, store.Insert(ctx, asset))

	retrieved, err := store.GetByID(ctx, "asset-001")
	require.NoError(t, err)

	assert.Equal(t, asset.ID, retrieved.ID)
	assert.Equal(t, asset.Title, retrieved.Title)
	assert.Equal(t, asset.Kind, retrieved.Kind)
	assert.Equal(t, asset.TotalValue, retrieved.TotalValue)
	assert.Equal(t, asset.TotalUnits, retrieved.TotalUnits)
	assert.Equal(t, asset.UnitPrice, retrieved.UnitPrice)
	assert.Equal(t, asset.SellerID, retrieved.SellerID)
	assert.Equal(t, asset.Status, retrieved.Status)
	assert.Equal(t, asset.CreatedAt, retrieved.CreatedAt)
}

func TestAssetStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testAsset("asset-dup")))
	err := store.Insert(ctx, testAsset("asset-dup"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestAssetStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssetStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	asset := testAsset("asset-update")
	require.NoError(t, store.Insert(ctx, asset))

	asset.Status = domain.AssetStatusApproved
	asset.Symbol = "SUN"
	asset.UnitsSold = 100
	asset.UpdatedAt = 1700000001000
	require.NoError(t, store.Update(ctx, asset))

	retrieved, err := store.GetByID(ctx, "asset-update")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusApproved, retrieved.Status)
	assert.Equal(t, "SUN", retrieved.Symbol)
	assert.Equal(t, int64(100), retrieved.UnitsSold)
	assert.Equal(t, int64(1700000001000), retrieved.UpdatedAt)
}

func TestAssetStore_UpdateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	err := store.Update(ctx, testAsset("asset-missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssetStore_GetByStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	pending := testAsset("asset-pending")
	require.NoError(t, store.Insert(ctx, pending))

	approved := testAsset("asset-approved")
	approved.Status = domain.AssetStatusApproved
	require.NoError(t, store.Insert(ctx, approved))

	results, err := store.GetByStatus(ctx, domain.AssetStatusApproved)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "asset-approved", results[0].ID)
}

func TestAssetStore_GetBySeller(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssetStore(pool)
	ctx := context.Background()

	a1 := testAsset("asset-s1")
	a1.CreatedAt = 1700000000000
	require.NoError(t, store.Insert(ctx, a1))

	a2 := testAsset("asset-s2")
	a2.CreatedAt = 1700000002000
	require.NoError(t, store.Insert(ctx, a2))

	other := testAsset("asset-other")
	other.SellerID = "seller-2"
	require.NoError(t, store.Insert(ctx, other))

	results, err := store.GetBySeller(ctx, "seller-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "asset-s1", results[0].ID)
	assert.Equal(t, "asset-s2", results[1].ID)
}

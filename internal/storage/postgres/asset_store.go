package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

const (
	insertAssetSQL = `
		INSERT INTO assets (
			asset_id, title, description, kind,
			total_value, size_metric, total_units, unit_price, units_sold,
			monthly_rent, annual_yield,
			symbol, seller_id, issuer_account, issuance_op_ref,
			status, review_notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	selectAssetSQL = `
		SELECT asset_id, title, description, kind,
		       total_value, size_metric, total_units, unit_price, units_sold,
		       monthly_rent, annual_yield,
		       symbol, seller_id, issuer_account, issuance_op_ref,
		       status, review_notes, created_at, updated_at
		FROM assets`

	getAssetByIDSQL = selectAssetSQL + ` WHERE asset_id = $1`

	getAssetsByStatusSQL = selectAssetSQL + ` WHERE status = $1 ORDER BY created_at ASC, asset_id ASC`

	getAssetsBySellerSQL = selectAssetSQL + ` WHERE seller_id = $1 ORDER BY created_at ASC, asset_id ASC`

	updateAssetSQL = `
		UPDATE assets SET
			title = $2, description = $3, kind = $4,
			total_value = $5, size_metric = $6, total_units = $7, unit_price = $8, units_sold = $9,
			monthly_rent = $10, annual_yield = $11,
			symbol = $12, seller_id = $13, issuer_account = $14, issuance_op_ref = $15,
			status = $16, review_notes = $17, updated_at = $18
		WHERE asset_id = $1`
)

// AssetStore is a PostgreSQL implementation of storage.AssetStore.
type AssetStore struct {
	pool *Pool
}

// NewAssetStore creates a new PostgreSQL asset store.
func NewAssetStore(pool *Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// Insert adds a new asset. Returns ErrDuplicateKey if the id exists.
func (s *AssetStore) Insert(ctx context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertAssetSQL,
		a.ID, a.Title, a.Description, string(a.Kind),
		a.TotalValue, a.SizeMetric, a.TotalUnits, a.UnitPrice, a.UnitsSold,
		a.MonthlyRent, a.AnnualYield,
		a.Symbol, a.SellerID, a.IssuerAccount, a.IssuanceOpRef,
		string(a.Status), a.ReviewNotes, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert asset: %w", err)
	}

	return nil
}

// GetByID retrieves an asset by its ID. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	row := s.pool.QueryRow(ctx, getAssetByIDSQL, assetID)

	a, err := scanAsset(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset by id: %w", err)
	}

	return a, nil
}

// Update persists a modified asset. Returns ErrNotFound if not exists.
func (s *AssetStore) Update(ctx context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, updateAssetSQL,
		a.ID, a.Title, a.Description, string(a.Kind),
		a.TotalValue, a.SizeMetric, a.TotalUnits, a.UnitPrice, a.UnitsSold,
		a.MonthlyRent, a.AnnualYield,
		a.Symbol, a.SellerID, a.IssuerAccount, a.IssuanceOpRef,
		string(a.Status), a.ReviewNotes, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// GetByStatus retrieves all assets in the given lifecycle status.
func (s *AssetStore) GetByStatus(ctx context.Context, status domain.AssetStatus) ([]*domain.Asset, error) {
	rows, err := s.pool.Query(ctx, getAssetsByStatusSQL, string(status))
	if err != nil {
		return nil, fmt.Errorf("get assets by status: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// GetBySeller retrieves all assets submitted by a seller.
func (s *AssetStore) GetBySeller(ctx context.Context, sellerID string) ([]*domain.Asset, error) {
	rows, err := s.pool.Query(ctx, getAssetsBySellerSQL, sellerID)
	if err != nil {
		return nil, fmt.Errorf("get assets by seller: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// scanAsset scans a single asset from a row.
func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var a domain.Asset
	var kind, status string

	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &kind,
		&a.TotalValue, &a.SizeMetric, &a.TotalUnits, &a.UnitPrice, &a.UnitsSold,
		&a.MonthlyRent, &a.AnnualYield,
		&a.Symbol, &a.SellerID, &a.IssuerAccount, &a.IssuanceOpRef,
		&status, &a.ReviewNotes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = domain.AssetKind(kind)
	a.Status = domain.AssetStatus(status)
	return &a, nil
}

// scanAssets scans multiple assets from rows.
func scanAssets(rows pgx.Rows) ([]*domain.Asset, error) {
	var assets []*domain.Asset

	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	return assets, nil
}

var _ storage.AssetStore = (*AssetStore)(nil)

package clickhouse

import (
	"context"
	"fmt"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

// TradeTickStore implements storage.TradeTickStore using ClickHouse.
// Ticks are append-only market history; the engine never rewrites them.
type TradeTickStore struct {
	conn *Conn
}

// NewTradeTickStore creates a new TradeTickStore.
func NewTradeTickStore(conn *Conn) *TradeTickStore {
	return &TradeTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeTickStore = (*TradeTickStore)(nil)

// InsertBulk adds multiple ticks in one batch.
func (s *TradeTickStore) InsertBulk(ctx context.Context, ticks []*domain.TradeTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_ticks (
			asset_id, price, units, buy_order_id, sell_order_id, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.AssetID, t.Price, t.Units,
			t.BuyOrderID, t.SellOrderID, uint64(t.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAsset retrieves all ticks for an asset, ordered by timestamp ASC.
func (s *TradeTickStore) GetByAsset(ctx context.Context, assetID string) ([]*domain.TradeTick, error) {
	query := `
		SELECT asset_id, price, units, buy_order_id, sell_order_id, timestamp_ms
		FROM trade_ticks
		WHERE asset_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("query by asset: %w", err)
	}
	defer rows.Close()

	return scanTradeTicks(rows)
}

// GetByTimeRange retrieves ticks for an asset within [start, end] ms (inclusive).
func (s *TradeTickStore) GetByTimeRange(ctx context.Context, assetID string, start, end int64) ([]*domain.TradeTick, error) {
	query := `
		SELECT asset_id, price, units, buy_order_id, sell_order_id, timestamp_ms
		FROM trade_ticks
		WHERE asset_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTradeTicks(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanTradeTicks scans multiple rows into a slice.
func scanTradeTicks(rows chRows) ([]*domain.TradeTick, error) {
	var ticks []*domain.TradeTick

	for rows.Next() {
		var t domain.TradeTick
		var timestamp uint64
		err := rows.Scan(
			&t.AssetID, &t.Price, &t.Units,
			&t.BuyOrderID, &t.SellOrderID, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade tick: %w", err)
		}
		t.Timestamp = int64(timestamp)
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade ticks: %w", err)
	}

	return ticks, nil
}

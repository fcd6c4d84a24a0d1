package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"proptoken/internal/domain"
	"proptoken/internal/storage"
)

const (
	insertTransactionSQL = `
		INSERT INTO ledger_transactions (
			tx_id, tx_type, status, holder_id, asset_id,
			amount, units, unit_price,
			op_ref, from_account, to_account,
			metadata, notes, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	selectTransactionSQL = `
		SELECT tx_id, tx_type, status, holder_id, asset_id,
		       amount, units, unit_price,
		       op_ref, from_account, to_account,
		       metadata, notes, created_at, completed_at
		FROM ledger_transactions`

	getTransactionByIDSQL = selectTransactionSQL + ` WHERE tx_id = $1`
)

// TransactionStore is a PostgreSQL implementation of
// storage.TransactionStore. The table is append-only; terminal rows are
// never updated, so no update statement exists.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new PostgreSQL transaction store.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Insert appends a new transaction. Returns ErrDuplicateKey if the id
// exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.LedgerTransaction) error {
	if tx == nil || tx.ID == "" || tx.HolderID == "" || tx.AssetID == "" {
		return storage.ErrInvalidInput
	}

	metadata, err := json.Marshal(metadataOrEmpty(tx.Metadata))
	if err != nil {
		return fmt.Errorf("marshal transaction metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, insertTransactionSQL,
		tx.ID, string(tx.Type), string(tx.Status), tx.HolderID, tx.AssetID,
		tx.Amount, tx.Units, tx.UnitPrice,
		tx.OpRef, tx.FromAccount, tx.ToAccount,
		metadata, tx.Notes, tx.CreatedAt, tx.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by id. Returns ErrNotFound if not
// exists.
func (s *TransactionStore) GetByID(ctx context.Context, txID string) (*domain.LedgerTransaction, error) {
	row := s.pool.QueryRow(ctx, getTransactionByIDSQL, txID)

	tx, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}

	return tx, nil
}

// Find retrieves all transactions matching the filter, ordered by
// creation time ASC with id as tiebreaker.
func (s *TransactionStore) Find(ctx context.Context, f storage.TransactionFilter) ([]*domain.LedgerTransaction, error) {
	query, args := buildFindQuery(f)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// buildFindQuery assembles the WHERE clause for a transaction filter.
// Zero-valued filter fields are skipped.
func buildFindQuery(f storage.TransactionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if f.HolderID != "" {
		addCondition("holder_id = $%d", f.HolderID)
	}
	if f.AssetID != "" {
		addCondition("asset_id = $%d", f.AssetID)
	}
	if f.Status != "" {
		addCondition("status = $%d", string(f.Status))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		addCondition("tx_type = ANY($%d)", types)
	}
	if f.MetadataKey != "" {
		args = append(args, f.MetadataKey, f.MetadataValue)
		conditions = append(conditions, fmt.Sprintf("metadata->>$%d = $%d", len(args)-1, len(args)))
	}

	query := selectTransactionSQL
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, tx_id ASC"

	return query, args
}

// scanTransaction scans a single transaction from a row.
func scanTransaction(row pgx.Row) (*domain.LedgerTransaction, error) {
	var tx domain.LedgerTransaction
	var txType, status string
	var metadata []byte

	err := row.Scan(
		&tx.ID, &txType, &status, &tx.HolderID, &tx.AssetID,
		&tx.Amount, &tx.Units, &tx.UnitPrice,
		&tx.OpRef, &tx.FromAccount, &tx.ToAccount,
		&metadata, &tx.Notes, &tx.CreatedAt, &tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(status)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal transaction metadata: %w", err)
		}
	}

	return &tx, nil
}

// scanTransactions scans multiple transactions from rows.
func scanTransactions(rows pgx.Rows) ([]*domain.LedgerTransaction, error) {
	var txs []*domain.LedgerTransaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

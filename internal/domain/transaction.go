package domain

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TxTypeUnitPurchase       TransactionType = "UNIT_PURCHASE"
	TxTypeUnitSale           TransactionType = "UNIT_SALE"
	TxTypeUnitTransfer       TransactionType = "UNIT_TRANSFER"
	TxTypeRentalDistribution TransactionType = "RENTAL_DISTRIBUTION"
	TxTypeSecondaryBuy       TransactionType = "SECONDARY_BUY"
	TxTypeSecondarySell      TransactionType = "SECONDARY_SELL"
)

// TransactionStatus is the lifecycle state of a ledger transaction.
// Completed, Failed and Cancelled are terminal; a terminal row is
// immutable and must never be updated in place.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "PENDING"
	TxStatusCompleted TransactionStatus = "COMPLETED"
	TxStatusFailed    TransactionStatus = "FAILED"
	TxStatusCancelled TransactionStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further mutation.
func (s TransactionStatus) Terminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed || s == TxStatusCancelled
}

// Metadata keys written by the engines.
const (
	MetaCounterpartyOrderID = "counterparty_order_id"
	MetaTransferDirection   = "transfer_direction" // "IN" or "OUT" on UNIT_TRANSFER rows
	MetaOrderID             = "order_id"
	MetaTradeKind           = "trade_kind"
	MetaPaymentFailed       = "payment_failed"
	MetaPaymentOpRef        = "payment_op_ref"
	MetaFailureReason       = "failure_reason"
	MetaIdempotencyKey      = "idempotency_key"
	MetaDistributionKey     = "distribution_key"
	MetaTotalIncome         = "total_income"
	MetaOwnershipFraction   = "ownership_fraction"
)

// LedgerTransaction is an immutable, append-only record of value
// movement. The transaction log is the sole source of truth for
// holdings; no component may cache a balance derived from it.
type LedgerTransaction struct {
	ID     string
	Type   TransactionType
	Status TransactionStatus

	HolderID string
	AssetID  string

	Amount    float64 // fiat amount
	Units     int64   // ownership units moved
	UnitPrice float64 // price per unit at transaction time

	// External ledger operation references. OpRef is the primary
	// reference (unit movement); auxiliary refs live in Metadata.
	OpRef       string
	FromAccount string
	ToAccount   string

	Metadata map[string]string
	Notes    string

	CreatedAt   int64  // unix ms
	CompletedAt *int64 // unix ms, nil until terminal
}

// TransferDirection values for UNIT_TRANSFER rows. A user-to-user
// transfer is recorded as two rows, one per holder, each tagged with
// its direction.
const (
	TransferIn  = "IN"
	TransferOut = "OUT"
)

// Acquiring reports whether a transaction adds units to its holder's
// position. UNIT_TRANSFER direction is carried in metadata.
func (tx *LedgerTransaction) Acquiring() bool {
	switch tx.Type {
	case TxTypeUnitPurchase, TxTypeSecondaryBuy:
		return true
	case TxTypeUnitTransfer:
		return tx.Metadata[MetaTransferDirection] == TransferIn
	}
	return false
}

// Disposing reports whether a transaction removes units from its
// holder's position.
func (tx *LedgerTransaction) Disposing() bool {
	switch tx.Type {
	case TxTypeUnitSale, TxTypeSecondarySell:
		return true
	case TxTypeUnitTransfer:
		return tx.Metadata[MetaTransferDirection] == TransferOut
	}
	return false
}

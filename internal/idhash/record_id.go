package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"proptoken/internal/domain"
)

// ComputeTransactionID computes a deterministic transaction row id.
// Formula: SHA256(holder|asset|type|units|created_at_ms|salt)
// Returns hex-encoded hash (64 characters).
func ComputeTransactionID(
	holderID string,
	assetID string,
	txType domain.TransactionType,
	units int64,
	createdAtMs int64,
	salt string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		holderID,
		assetID,
		txType,
		units,
		createdAtMs,
		salt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSettlementKey computes the idempotency key for a purchase
// settlement. Formula: SHA256(buyer|asset|units|fiat_amount|client_key)
// Retried calls with the same arguments map to the same key.
func ComputeSettlementKey(
	buyerID string,
	assetID string,
	units int64,
	fiatAmount float64,
	clientKey string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%.8f|%s",
		buyerID,
		assetID,
		units,
		fiatAmount,
		clientKey,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeDistributionKey computes the idempotency key for one holder's
// income distribution in one period. Formula: SHA256(asset|period|holder)
func ComputeDistributionKey(assetID, period, holderID string) string {
	data := fmt.Sprintf("%s|%s|%s", assetID, period, holderID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeOrderID computes a deterministic order id.
// Formula: SHA256(holder|asset|side|units|limit_price|created_at_ms)
func ComputeOrderID(
	holderID string,
	assetID string,
	side domain.OrderSide,
	units int64,
	limitPrice float64,
	createdAtMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%.8f|%d",
		holderID,
		assetID,
		side,
		units,
		limitPrice,
		createdAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

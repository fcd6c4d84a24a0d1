// Package xrpl talks to an XRP Ledger node over JSON-RPC and WebSocket.
// It covers the operations the settlement flow needs: issuing an asset
// currency, authorizing holder accounts, moving units and XRP value,
// and reading balances.
package xrpl

import (
	"context"
	"errors"
)

// ErrAlreadySatisfied is returned when an operation's effect is already
// in place on the ledger, such as authorizing an account that already
// holds a trust line for the currency. Callers treat it as success.
var ErrAlreadySatisfied = errors.New("ledger operation already satisfied")

// ErrOperationFailed indicates the node accepted the request but the
// transaction did not apply.
var ErrOperationFailed = errors.New("ledger operation failed")

// Client defines the ledger operations used by the settlement and
// tokenization flows.
type Client interface {
	// Issue creates the currency for an asset on the issuer account and
	// returns the operation reference of the issuance transaction.
	Issue(ctx context.Context, issuerAccount, symbol string, totalUnits int64) (string, error)

	// Authorize establishes a trust line from the holder account to the
	// issuer for the given currency. Returns ErrAlreadySatisfied when
	// the trust line already exists.
	Authorize(ctx context.Context, holderAccount, issuerAccount, symbol string) (string, error)

	// TransferUnits moves asset units between two accounts and returns
	// the operation reference.
	TransferUnits(ctx context.Context, symbol, issuerAccount, fromAccount, toAccount string, units int64) (string, error)

	// TransferValue sends XRP between two accounts and returns the
	// operation reference.
	TransferValue(ctx context.Context, fromAccount, toAccount string, amount float64) (string, error)

	// AccountUnits returns the unit balance an account holds for the
	// given currency.
	AccountUnits(ctx context.Context, account, issuerAccount, symbol string) (int64, error)
}

// TxNotification is one validated transaction observed on a subscribed
// account stream.
type TxNotification struct {
	Hash        string
	Account     string
	Destination string
	TxType      string
	Result      string
	Validated   bool
	LedgerIndex int64
}

// StreamClient defines the WebSocket subscription interface used by the
// reconciler.
type StreamClient interface {
	// SubscribeAccounts streams validated transactions touching any of
	// the given accounts.
	SubscribeAccounts(ctx context.Context, accounts []string) (<-chan TxNotification, error)

	// Close shuts the connection down and closes all streams.
	Close() error
}

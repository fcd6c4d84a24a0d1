package storage

import "errors"

// Storage errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTerminalRow is returned when attempting to mutate a ledger
	// transaction row that has reached a terminal status. The
	// transaction log is append-only: terminal rows are immutable.
	ErrTerminalRow = errors.New("terminal transaction row is immutable")

	// ErrStaleOrder is returned by UpdateFill when the order's stored
	// fill state no longer matches the caller's expectation.
	ErrStaleOrder = errors.New("stale order fill state")
)

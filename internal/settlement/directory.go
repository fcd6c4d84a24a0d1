package settlement

import (
	"context"
	"sync"

	"proptoken/internal/xrpl"
)

// AccountDirectory resolves a holder's external-ledger account. The
// holder id is opaque to this package; the directory is the identity
// provider boundary.
type AccountDirectory interface {
	// AccountOf returns the registered account for a holder, or "" when
	// none exists.
	AccountOf(ctx context.Context, holderID string) (string, error)

	// EnsureAccount returns the holder's account, provisioning a new
	// one when the holder has none.
	EnsureAccount(ctx context.Context, holderID string) (string, error)
}

// WalletDirectory is an in-process AccountDirectory that provisions
// ledger wallets on demand and keeps their seeds in memory. Suitable
// for a single-node deployment and tests; a production identity
// provider replaces it behind the same interface.
type WalletDirectory struct {
	mu      sync.Mutex
	wallets map[string]*xrpl.Wallet

	newWallet func() (*xrpl.Wallet, error)
}

// NewWalletDirectory creates an empty directory.
func NewWalletDirectory() *WalletDirectory {
	return &WalletDirectory{
		wallets:   make(map[string]*xrpl.Wallet),
		newWallet: xrpl.GenerateWallet,
	}
}

// Register binds an existing account address to a holder.
func (d *WalletDirectory) Register(holderID, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wallets[holderID] = &xrpl.Wallet{Address: address}
}

// AccountOf returns the holder's account address, or "" when none is
// registered.
func (d *WalletDirectory) AccountOf(_ context.Context, holderID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.wallets[holderID]
	if !ok {
		return "", nil
	}
	return w.Address, nil
}

// EnsureAccount returns the holder's account, generating a wallet when
// the holder has none.
func (d *WalletDirectory) EnsureAccount(_ context.Context, holderID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, ok := d.wallets[holderID]; ok {
		return w.Address, nil
	}

	w, err := d.newWallet()
	if err != nil {
		return "", err
	}
	d.wallets[holderID] = w
	return w.Address, nil
}

var _ AccountDirectory = (*WalletDirectory)(nil)

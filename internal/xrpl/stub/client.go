// Package stub provides an in-memory xrpl.Client for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"proptoken/internal/xrpl"
)

// Call records one client invocation.
type Call struct {
	Method  string
	Account string
	Symbol  string
	Units   int64
	Amount  float64
}

// Client implements xrpl.Client against in-memory state. Failures are
// injected per method via the Fail* fields.
type Client struct {
	mu sync.Mutex

	// authorized tracks trust lines as account|symbol keys.
	authorized map[string]bool
	// balances tracks unit balances as account|symbol keys.
	balances map[string]int64

	// Calls records every invocation in order.
	Calls []Call

	// FailIssue, FailAuthorize, FailTransferUnits and FailTransferValue
	// make the corresponding method return the given error.
	FailIssue         error
	FailAuthorize     error
	FailTransferUnits error
	FailTransferValue error

	opSeq int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		authorized: make(map[string]bool),
		balances:   make(map[string]int64),
	}
}

func key(account, symbol string) string {
	return account + "|" + symbol
}

func (c *Client) nextOpRef(kind string) string {
	c.opSeq++
	return fmt.Sprintf("%s-op-%04d", kind, c.opSeq)
}

// SetAuthorized marks an account as already holding a trust line.
func (c *Client) SetAuthorized(account, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorized[key(account, symbol)] = true
}

// SetUnits seeds an account's unit balance.
func (c *Client) SetUnits(account, symbol string, units int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[key(account, symbol)] = units
}

// Issue records the issuance and seeds the issuer balance.
func (c *Client) Issue(_ context.Context, issuerAccount, symbol string, totalUnits int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, Call{Method: "Issue", Account: issuerAccount, Symbol: symbol, Units: totalUnits})
	if c.FailIssue != nil {
		return "", c.FailIssue
	}

	c.balances[key(issuerAccount, symbol)] = totalUnits
	return c.nextOpRef("issue"), nil
}

// Authorize establishes a trust line, or returns ErrAlreadySatisfied if
// one exists.
func (c *Client) Authorize(_ context.Context, holderAccount, issuerAccount, symbol string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, Call{Method: "Authorize", Account: holderAccount, Symbol: symbol})
	if c.FailAuthorize != nil {
		return "", c.FailAuthorize
	}

	k := key(holderAccount, symbol)
	if c.authorized[k] {
		return "", xrpl.ErrAlreadySatisfied
	}
	c.authorized[k] = true
	return c.nextOpRef("auth"), nil
}

// TransferUnits moves units between stub balances.
func (c *Client) TransferUnits(_ context.Context, symbol, issuerAccount, fromAccount, toAccount string, units int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, Call{Method: "TransferUnits", Account: fromAccount, Symbol: symbol, Units: units})
	if c.FailTransferUnits != nil {
		return "", c.FailTransferUnits
	}

	c.balances[key(fromAccount, symbol)] -= units
	c.balances[key(toAccount, symbol)] += units
	return c.nextOpRef("units"), nil
}

// TransferValue records an XRP payment.
func (c *Client) TransferValue(_ context.Context, fromAccount, toAccount string, amount float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, Call{Method: "TransferValue", Account: fromAccount, Amount: amount})
	if c.FailTransferValue != nil {
		return "", c.FailTransferValue
	}

	return c.nextOpRef("value"), nil
}

// AccountUnits returns the seeded unit balance.
func (c *Client) AccountUnits(_ context.Context, account, issuerAccount, symbol string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.balances[key(account, symbol)], nil
}

// CallsFor returns recorded calls for a method.
func (c *Client) CallsFor(method string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Call
	for _, call := range c.Calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

var _ xrpl.Client = (*Client)(nil)

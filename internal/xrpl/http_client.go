package xrpl

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client using the XRPL JSON-RPC HTTP API.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	secrets     map[string]string
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithAccountSecret registers the signing secret for an account. The
// node signs and submits on our behalf, so every account that sends
// transactions needs a registered secret.
func WithAccountSecret(account, secret string) ClientOption {
	return func(c *HTTPClient) {
		c.secrets[account] = secret
	}
}

// NewHTTPClient creates a new XRPL JSON-RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		secrets:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest is an XRPL JSON-RPC request. The XRPL convention wraps a
// single params object in a one-element array.
type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

// rpcResultStatus is the envelope every XRPL result carries.
type rpcResultStatus struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type rpcError struct {
	Code    string
	Message string
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("xrpl error %s: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqBody := rpcRequest{Method: method}
	if params != nil {
		reqBody.Params = []interface{}{params}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		var status rpcResultStatus
		if err := json.Unmarshal(rpcResp.Result, &status); err != nil {
			lastErr = fmt.Errorf("unmarshal result status: %w", err)
			continue
		}
		if status.Status == "error" {
			// Node-level errors are not retried
			return &rpcError{Code: status.ErrorCode, Message: status.ErrorMessage}
		}

		if result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// submitResult is the raw response for the submit method.
type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// submit signs and submits a transaction through the node and returns
// the transaction hash. The sending account must have a registered
// secret.
func (c *HTTPClient) submit(ctx context.Context, account string, txJSON map[string]interface{}) (string, error) {
	secret, ok := c.secrets[account]
	if !ok {
		return "", fmt.Errorf("no signing secret registered for account %s", account)
	}

	params := map[string]interface{}{
		"secret":  secret,
		"tx_json": txJSON,
	}

	var result submitResult
	if err := c.call(ctx, "submit", params, &result); err != nil {
		return "", err
	}

	// tes* codes apply; everything else is a rejection.
	if !strings.HasPrefix(result.EngineResult, "tes") {
		return "", fmt.Errorf("%w: %s (%s)", ErrOperationFailed, result.EngineResult, result.EngineResultMessage)
	}

	return result.TxJSON.Hash, nil
}

// accountLinesResult is the raw response for account_lines.
type accountLinesResult struct {
	Lines []accountLine `json:"lines"`
}

type accountLine struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Limit    string `json:"limit"`
}

// trustLine looks up the holder's trust line for the issuer currency.
// Returns nil when no line exists.
func (c *HTTPClient) trustLine(ctx context.Context, holderAccount, issuerAccount, symbol string) (*accountLine, error) {
	params := map[string]interface{}{
		"account":      holderAccount,
		"peer":         issuerAccount,
		"ledger_index": "validated",
	}

	var result accountLinesResult
	if err := c.call(ctx, "account_lines", params, &result); err != nil {
		return nil, err
	}

	currency := CurrencyCode(symbol)
	for i := range result.Lines {
		if result.Lines[i].Currency == currency {
			return &result.Lines[i], nil
		}
	}
	return nil, nil
}

// Issue configures the issuer account for the asset currency and
// returns the operation reference. Units on the ledger come into
// existence as holders receive them, so issuance is an account
// configuration step rather than a mint. totalUnits is recorded by the
// caller and enforced off ledger.
func (c *HTTPClient) Issue(ctx context.Context, issuerAccount, symbol string, totalUnits int64) (string, error) {
	if totalUnits <= 0 {
		return "", fmt.Errorf("%w: non-positive unit count %d", ErrOperationFailed, totalUnits)
	}

	txJSON := map[string]interface{}{
		"TransactionType": "AccountSet",
		"Account":         issuerAccount,
		// asfDefaultRipple, required for issued currencies to move
		// between holders.
		"SetFlag": 8,
	}
	return c.submit(ctx, issuerAccount, txJSON)
}

// Authorize establishes the holder's trust line for the currency.
// Returns ErrAlreadySatisfied when the line already exists.
func (c *HTTPClient) Authorize(ctx context.Context, holderAccount, issuerAccount, symbol string) (string, error) {
	line, err := c.trustLine(ctx, holderAccount, issuerAccount, symbol)
	if err != nil {
		return "", err
	}
	if line != nil {
		return "", ErrAlreadySatisfied
	}

	txJSON := map[string]interface{}{
		"TransactionType": "TrustSet",
		"Account":         holderAccount,
		"LimitAmount": map[string]string{
			"currency": CurrencyCode(symbol),
			"issuer":   issuerAccount,
			"value":    "1000000000",
		},
	}
	return c.submit(ctx, holderAccount, txJSON)
}

// TransferUnits moves asset units from one account to another.
func (c *HTTPClient) TransferUnits(ctx context.Context, symbol, issuerAccount, fromAccount, toAccount string, units int64) (string, error) {
	if units <= 0 {
		return "", fmt.Errorf("%w: non-positive unit count %d", ErrOperationFailed, units)
	}

	txJSON := map[string]interface{}{
		"TransactionType": "Payment",
		"Account":         fromAccount,
		"Destination":     toAccount,
		"Amount": map[string]string{
			"currency": CurrencyCode(symbol),
			"issuer":   issuerAccount,
			"value":    strconv.FormatInt(units, 10),
		},
	}
	return c.submit(ctx, fromAccount, txJSON)
}

// TransferValue sends XRP between accounts.
func (c *HTTPClient) TransferValue(ctx context.Context, fromAccount, toAccount string, amount float64) (string, error) {
	drops, err := XRPToDrops(amount)
	if err != nil {
		return "", err
	}

	txJSON := map[string]interface{}{
		"TransactionType": "Payment",
		"Account":         fromAccount,
		"Destination":     toAccount,
		"Amount":          drops,
	}
	return c.submit(ctx, fromAccount, txJSON)
}

// AccountUnits returns the holder's unit balance for the currency.
// A missing trust line reads as zero.
func (c *HTTPClient) AccountUnits(ctx context.Context, account, issuerAccount, symbol string) (int64, error) {
	line, err := c.trustLine(ctx, account, issuerAccount, symbol)
	if err != nil {
		return 0, err
	}
	if line == nil {
		return 0, nil
	}

	// IOU balances are decimal strings; unit balances are whole.
	balance, err := strconv.ParseFloat(line.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", line.Balance, err)
	}
	return int64(balance), nil
}

// CurrencyCode converts an asset symbol to an XRPL currency code.
// Three-character symbols pass through; longer symbols use the 160-bit
// hex form, ASCII left-aligned and zero-padded.
func CurrencyCode(symbol string) string {
	if len(symbol) == 3 {
		return symbol
	}
	buf := make([]byte, 20)
	copy(buf, symbol)
	return strings.ToUpper(hex.EncodeToString(buf))
}

var _ Client = (*HTTPClient)(nil)

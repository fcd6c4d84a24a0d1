package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient implements StreamClient over the XRPL WebSocket API using
// gorilla/websocket. One subscription covers a fixed set of accounts;
// after a reconnect the same set is resubscribed.
type WSClient struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subscribed accounts, kept for resubscription after reconnect
	accounts   []string
	accountsMu sync.Mutex

	notifCh chan TxNotification
	notifMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSClient creates a WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeAccounts streams validated transactions touching any of the
// given accounts. Only one subscription per client is supported.
func (c *WSClient) SubscribeAccounts(ctx context.Context, accounts []string) (<-chan TxNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	c.notifMu.Lock()
	if c.notifCh != nil {
		c.notifMu.Unlock()
		return nil, fmt.Errorf("already subscribed")
	}
	// Large buffer absorbs bursts; sends block rather than drop.
	ch := make(chan TxNotification, 10000)
	c.notifCh = ch
	c.notifMu.Unlock()

	c.accountsMu.Lock()
	c.accounts = append([]string(nil), accounts...)
	c.accountsMu.Unlock()

	if err := c.writeSubscribe(accounts); err != nil {
		c.notifMu.Lock()
		c.notifCh = nil
		c.notifMu.Unlock()
		return nil, err
	}

	return ch, nil
}

// writeSubscribe sends the subscribe command for the account set.
func (c *WSClient) writeSubscribe(accounts []string) error {
	req := wsCommand{
		ID:       c.requestID.Add(1),
		Command:  "subscribe",
		Accounts: accounts,
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection and the notification stream.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.notifMu.Lock()
	if c.notifCh != nil {
		close(c.notifCh)
		c.notifCh = nil
	}
	c.notifMu.Unlock()

	return nil
}

// readLoop reads messages and dispatches transaction notifications.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes.
func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.accountsMu.Lock()
	accounts := append([]string(nil), c.accounts...)
	c.accountsMu.Unlock()

	if len(accounts) > 0 {
		if err := c.writeSubscribe(accounts); err != nil {
			// Resubscribe failed, next read error triggers another cycle
			return
		}
	}
}

// handleMessage parses a stream message and forwards transaction events.
func (c *WSClient) handleMessage(message []byte) {
	var msg wsStreamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != "transaction" {
		return
	}

	notif := TxNotification{
		Hash:        msg.Transaction.Hash,
		Account:     msg.Transaction.Account,
		Destination: msg.Transaction.Destination,
		TxType:      msg.Transaction.TransactionType,
		Result:      msg.EngineResult,
		Validated:   msg.Validated,
		LedgerIndex: msg.LedgerIndex,
	}

	c.notifMu.Lock()
	ch := c.notifCh
	c.notifMu.Unlock()

	if ch != nil {
		// Block until we can send - never drop events
		select {
		case ch <- notif:
		case <-c.done:
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsCommand struct {
	ID       uint64   `json:"id"`
	Command  string   `json:"command"`
	Accounts []string `json:"accounts,omitempty"`
}

type wsStreamMessage struct {
	Type         string     `json:"type"`
	EngineResult string     `json:"engine_result"`
	LedgerIndex  int64      `json:"ledger_index"`
	Validated    bool       `json:"validated"`
	Transaction  wsStreamTx `json:"transaction"`
}

type wsStreamTx struct {
	Hash            string `json:"hash"`
	Account         string `json:"Account"`
	Destination     string `json:"Destination"`
	TransactionType string `json:"TransactionType"`
}

var _ StreamClient = (*WSClient)(nil)

// Package main provides the unified platform server:
// - HTTP API: tokenization, settlement, trading, income distribution
// - Reconciliation (background): re-scan of degraded settlements
// - Health/status/metrics endpoints
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/income"
	"proptoken/internal/ledger"
	"proptoken/internal/market"
	"proptoken/internal/reconcile"
	"proptoken/internal/settlement"
	"proptoken/internal/storage"
	chstore "proptoken/internal/storage/clickhouse"
	"proptoken/internal/storage/memory"
	"proptoken/internal/storage/migrations"
	pgstore "proptoken/internal/storage/postgres"
	"proptoken/internal/tokenize"
	"proptoken/internal/verify"
	"proptoken/internal/xrpl"
	"proptoken/internal/xrpl/stub"
)

// Server holds all components of the platform service.
type Server struct {
	// Configuration
	useMemory bool
	verbose   bool

	// Stores
	stores *allStores

	// Components
	accounts    *settlement.WalletDirectory
	ownership   *ledger.Ledger
	tokenizer   *tokenize.Service
	settler     *settlement.Orchestrator
	market      *market.Engine
	distributor *income.Distributor
	auditor     *verify.Auditor
	logger      *log.Logger

	// State
	mu                sync.Mutex
	startedAt         time.Time
	lastReconcileScan time.Time
	reconcileFindings int
}

// allStores holds all storage implementations.
type allStores struct {
	assetStore       storage.AssetStore
	transactionStore storage.TransactionStore
	orderStore       storage.OrderStore
	tradeTickStore   storage.TradeTickStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	xrplEndpoint := flag.String("xrpl-endpoint", os.Getenv("XRPL_RPC_ENDPOINT"), "XRPL JSON-RPC endpoint (empty = in-process stub ledger)")
	xrplWSEndpoint := flag.String("xrpl-ws-endpoint", os.Getenv("XRPL_WS_ENDPOINT"), "XRPL WebSocket endpoint for payment notifications")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API address")
	reconcileInterval := flag.Duration("reconcile-interval", reconcile.DefaultScanInterval, "Degraded-settlement scan interval")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// External ledger client
	client := createLedgerClient(*xrplEndpoint, logger)

	// Wire components. Ownership is always derived from the transaction
	// log; no component keeps balances of its own.
	accounts := settlement.NewWalletDirectory()
	ownership := ledger.New(stores.transactionStore, stores.assetStore)
	tokenizer := tokenize.New(tokenize.Options{
		AssetStore: stores.assetStore,
		Client:     client,
		Verbose:    *verbose,
	})
	settler := settlement.New(settlement.Options{
		AssetStore:       stores.assetStore,
		TransactionStore: stores.transactionStore,
		Ledger:           ownership,
		Tokenizer:        tokenizer,
		Client:           client,
		Accounts:         accounts,
		Verbose:          *verbose,
	})
	engine := market.New(market.Options{
		OrderStore:       stores.orderStore,
		TransactionStore: stores.transactionStore,
		TradeTickStore:   stores.tradeTickStore,
		Ledger:           ownership,
		Verbose:          *verbose,
	})
	distributor := income.New(income.Options{
		AssetStore:       stores.assetStore,
		TransactionStore: stores.transactionStore,
		Ledger:           ownership,
		Verbose:          *verbose,
	})
	auditor := verify.New(stores.assetStore, ownership)

	server := &Server{
		useMemory:   *useMemory,
		verbose:     *verbose,
		stores:      stores,
		accounts:    accounts,
		ownership:   ownership,
		tokenizer:   tokenizer,
		settler:     settler,
		market:      engine,
		distributor: distributor,
		auditor:     auditor,
		logger:      logger,
		startedAt:   time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*httpAddr)

	// Run background components
	err = server.Run(ctx, *xrplWSEndpoint, *reconcileInterval)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores, applying migrations first.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			assetStore:       memory.NewAssetStore(),
			transactionStore: memory.NewTransactionStore(),
			orderStore:       memory.NewOrderStore(),
			tradeTickStore:   memory.NewTradeTickStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse (migrations create the database and return the conn)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (registry, ledger log, order book)
		assetStore:       pgstore.NewAssetStore(pool),
		transactionStore: pgstore.NewTransactionStore(pool),
		orderStore:       pgstore.NewOrderStore(pool),

		// ClickHouse stores (market history)
		tradeTickStore: chstore.NewTradeTickStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// createLedgerClient returns the XRPL client, or the in-process stub
// when no endpoint is configured.
func createLedgerClient(endpoint string, logger *log.Logger) xrpl.Client {
	if endpoint == "" {
		logger.Println("No XRPL endpoint configured, using in-process stub ledger")
		return stub.NewClient()
	}

	opts := []xrpl.ClientOption{}
	for account, secret := range parseAccountSecrets(os.Getenv("XRPL_ACCOUNT_SECRETS")) {
		opts = append(opts, xrpl.WithAccountSecret(account, secret))
	}

	logger.Printf("Using XRPL endpoint %s", endpoint)
	return xrpl.NewHTTPClient(endpoint, opts...)
}

// parseAccountSecrets parses "rAddr1:sSecret1,rAddr2:sSecret2" pairs.
func parseAccountSecrets(raw string) map[string]string {
	secrets := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		secrets[parts[0]] = parts[1]
	}
	return secrets
}

// Run starts background components and blocks until shutdown.
func (s *Server) Run(ctx context.Context, wsEndpoint string, scanInterval time.Duration) error {
	s.logger.Println("Starting platform server...")

	var stream xrpl.StreamClient
	if wsEndpoint != "" {
		ws, err := xrpl.NewWSClient(ctx, wsEndpoint, nil)
		if err != nil {
			return fmt.Errorf("connect xrpl websocket: %w", err)
		}
		defer ws.Close()
		stream = ws
		s.logger.Printf("Subscribed to XRPL stream at %s", wsEndpoint)
	}

	reconciler := reconcile.New(reconcile.Options{
		TransactionStore: s.stores.transactionStore,
		Stream:           stream,
		WatchAccounts:    watchAccountsFromEnv(),
		ScanInterval:     scanInterval,
		Verbose:          s.verbose,
		OnFinding: func(row *domain.LedgerTransaction) {
			s.mu.Lock()
			s.reconcileFindings++
			s.lastReconcileScan = time.Now()
			s.mu.Unlock()
		},
	})

	errCh := make(chan error, 1)
	go func() {
		err := reconciler.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("reconciler: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// watchAccountsFromEnv reads XRPL accounts to watch for payment
// notifications from XRPL_WATCH_ACCOUNTS (comma-separated).
func watchAccountsFromEnv() []string {
	raw := os.Getenv("XRPL_WATCH_ACCOUNTS")
	if raw == "" {
		return nil
	}

	var accounts []string
	for _, a := range strings.Split(raw, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			accounts = append(accounts, a)
		}
	}
	return accounts
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Settlement metrics
	SettlementsTotal     *prometheus.CounterVec
	SettlementUnits      prometheus.Counter
	SettlementAmount     prometheus.Counter
	SettlementDegraded   prometheus.Counter
	SettlementDuration   prometheus.Histogram
	SettlementIdempotent prometheus.Counter

	// Tokenization metrics
	AssetsTokenized    prometheus.Counter
	TokenizationErrors prometheus.Counter

	// Matching metrics
	OrdersSubmitted *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	TradesExecuted  prometheus.Counter
	TradeUnits      prometheus.Counter

	// Distribution metrics
	DistributionRuns    prometheus.Counter
	DistributionShares  prometheus.Counter
	DistributionSkipped prometheus.Counter

	// Ledger client metrics
	LedgerCallLatency *prometheus.HistogramVec
	LedgerCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSettlement   prometheus.Gauge
	LastSuccessfulDistribution prometheus.Gauge
	ReconcileFindings          prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "proptoken"
	}

	return &Metrics{
		// Settlement metrics
		SettlementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "settlements_total",
			Help:      "Total number of settlement attempts by outcome",
		}, []string{"outcome"}),
		SettlementUnits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "units_settled_total",
			Help:      "Total number of units moved by completed settlements",
		}),
		SettlementAmount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "amount_settled_total",
			Help:      "Total fiat amount across completed settlements",
		}),
		SettlementDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "degraded_total",
			Help:      "Total number of settlements completed with failed payment collection",
		}),
		SettlementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Settlement duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SettlementIdempotent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "idempotent_replays_total",
			Help:      "Total number of settlement calls answered from a prior row",
		}),

		// Tokenization metrics
		AssetsTokenized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokenize",
			Name:      "assets_tokenized_total",
			Help:      "Total number of assets issued on the ledger",
		}),
		TokenizationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokenize",
			Name:      "errors_total",
			Help:      "Total number of failed tokenization attempts",
		}),

		// Matching metrics
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "orders_submitted_total",
			Help:      "Total number of orders submitted by side",
		}, []string{"side"}),
		OrdersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "orders_cancelled_total",
			Help:      "Total number of orders cancelled",
		}),
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "trades_executed_total",
			Help:      "Total number of secondary market trades executed",
		}),
		TradeUnits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "trade_units_total",
			Help:      "Total number of units traded on the secondary market",
		}),

		// Distribution metrics
		DistributionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "income",
			Name:      "distribution_runs_total",
			Help:      "Total number of income distribution runs",
		}),
		DistributionShares: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "income",
			Name:      "shares_recorded_total",
			Help:      "Total number of per-holder distribution rows written",
		}),
		DistributionSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "income",
			Name:      "shares_skipped_total",
			Help:      "Total number of per-holder shares skipped as already recorded",
		}),

		// Ledger client metrics
		LedgerCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "xrpl",
			Name:      "call_latency_seconds",
			Help:      "Ledger client call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		LedgerCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "xrpl",
			Name:      "call_errors_total",
			Help:      "Total number of ledger client call errors",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSettlement: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_settlement_timestamp",
			Help:      "Unix timestamp of last completed settlement",
		}),
		LastSuccessfulDistribution: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_distribution_timestamp",
			Help:      "Unix timestamp of last completed distribution run",
		}),
		ReconcileFindings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "reconcile_findings_total",
			Help:      "Total number of degraded settlements flagged by the reconciler",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSettlement records a settlement outcome.
func RecordSettlement(outcome string, units int64, amount float64, durationSeconds float64) {
	DefaultMetrics.SettlementsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.SettlementDuration.Observe(durationSeconds)
	if outcome == "completed" || outcome == "degraded" {
		DefaultMetrics.SettlementUnits.Add(float64(units))
		DefaultMetrics.SettlementAmount.Add(amount)
	}
	if outcome == "degraded" {
		DefaultMetrics.SettlementDegraded.Inc()
	}
}

// RecordIdempotentReplay increments the idempotent replay counter.
func RecordIdempotentReplay() {
	DefaultMetrics.SettlementIdempotent.Inc()
}

// RecordTokenization records a tokenization attempt.
func RecordTokenization(err error) {
	if err != nil {
		DefaultMetrics.TokenizationErrors.Inc()
		return
	}
	DefaultMetrics.AssetsTokenized.Inc()
}

// RecordOrderSubmitted increments the order counter for a side.
func RecordOrderSubmitted(side string) {
	DefaultMetrics.OrdersSubmitted.WithLabelValues(side).Inc()
}

// RecordOrderCancelled increments the cancelled order counter.
func RecordOrderCancelled() {
	DefaultMetrics.OrdersCancelled.Inc()
}

// RecordTrade records one executed secondary market trade.
func RecordTrade(units int64) {
	DefaultMetrics.TradesExecuted.Inc()
	DefaultMetrics.TradeUnits.Add(float64(units))
}

// RecordDistribution records one distribution run.
func RecordDistribution(sharesRecorded, sharesSkipped int) {
	DefaultMetrics.DistributionRuns.Inc()
	DefaultMetrics.DistributionShares.Add(float64(sharesRecorded))
	DefaultMetrics.DistributionSkipped.Add(float64(sharesSkipped))
}

// RecordLedgerCall records ledger client call metrics.
func RecordLedgerCall(method string, seconds float64, err error) {
	DefaultMetrics.LedgerCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.LedgerCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordReconcileFinding increments the reconciler findings counter.
func RecordReconcileFinding() {
	DefaultMetrics.ReconcileFindings.Inc()
}

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
	// Signal metrics
	SignalsProcessed  prometheus.Counter
	CandidatesCreated *prometheus.CounterVec

	// Risk gate metrics
	GateDecisions *prometheus.CounterVec
	GateLatency   prometheus.Histogram

	// Execution metrics
	OrdersSubmitted   *prometheus.CounterVec
	OrderLatency      *prometheus.HistogramVec
	OrderRetriesTotal prometheus.Counter

	// Position metrics
	ActivePositions prometheus.Gauge
	ExitsTriggered  prometheus.Counter
	PositionsClosed *prometheus.CounterVec

	// Price stream metrics
	PriceUpdatesReceived prometheus.Counter
	FeedReconnects       prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSignalProcessed prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}

	return &Metrics{
		// Signal metrics
		SignalsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "processed_total",
			Help:      "Total number of inbound signals processed",
		}),
		CandidatesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "candidates_created_total",
			Help:      "Total number of candidates created by source",
		}, []string{"source"}),

		// Risk gate metrics
		GateDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "decisions_total",
			Help:      "Total number of risk gate decisions by outcome",
		}, []string{"outcome"}),
		GateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "riskgate",
			Name:      "evaluation_latency_seconds",
			Help:      "Risk gate evaluation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Execution metrics
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "orders_submitted_total",
			Help:      "Total number of swap orders by direction and terminal status",
		}, []string{"direction", "status"}),
		OrderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "order_latency_seconds",
			Help:      "End-to-end order submission latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"direction"}),
		OrderRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "order_retries_total",
			Help:      "Total number of order submission retries",
		}),

		// Position metrics
		ActivePositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "active",
			Help:      "Current number of active position monitors",
		}),
		ExitsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "exits_triggered_total",
			Help:      "Total number of take-profit exits triggered",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "closed_total",
			Help:      "Total number of positions closed by terminal state",
		}, []string{"state"}),

		// Price stream metrics
		PriceUpdatesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "updates_received_total",
			Help:      "Total number of price updates received",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "reconnects_total",
			Help:      "Total number of price feed reconnections",
		}),

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
		LastSignalProcessed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_signal_timestamp",
			Help:      "Unix timestamp of last processed signal",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignal increments the signal counters for a source.
func RecordSignal(source string) {
	DefaultMetrics.SignalsProcessed.Inc()
	DefaultMetrics.CandidatesCreated.WithLabelValues(source).Inc()
}

// RecordGateDecision records a risk gate outcome.
func RecordGateDecision(outcome string, seconds float64) {
	DefaultMetrics.GateDecisions.WithLabelValues(outcome).Inc()
	DefaultMetrics.GateLatency.Observe(seconds)
}

// RecordOrder records a terminal order outcome.
func RecordOrder(direction, status string, seconds float64) {
	DefaultMetrics.OrdersSubmitted.WithLabelValues(direction, status).Inc()
	DefaultMetrics.OrderLatency.WithLabelValues(direction).Observe(seconds)
}

// RecordPositionClosed records a position reaching a terminal state.
func RecordPositionClosed(state string) {
	DefaultMetrics.PositionsClosed.WithLabelValues(state).Inc()
	DefaultMetrics.ActivePositions.Dec()
}

// RecordPositionOpened increments the active positions gauge.
func RecordPositionOpened() {
	DefaultMetrics.ActivePositions.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Stream metrics
	LedgersProcessed      prometheus.Counter
	TransactionsProcessed prometheus.Counter
	OfferEventsStored     prometheus.Counter
	TradeFillsStored      prometheus.Counter
	StreamErrors          *prometheus.CounterVec

	// Node pool metrics
	NodeDemotions prometheus.Counter
	NodeSwitches  prometheus.Counter
	NodeLatency   *prometheus.GaugeVec

	// Rate limiter metrics
	RequestWaits prometheus.Counter

	// Pipeline metrics
	PipelineTransitions *prometheus.CounterVec
	PipelineOutcomes    *prometheus.CounterVec
	SubmitAttempts      prometheus.Histogram

	// Health metrics
	LastValidatedLedger prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "xrpl_gateway"
	}

	return &Metrics{
		LedgersProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ledgers_processed_total",
			Help:      "Total number of validated ledgers processed",
		}),
		TransactionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "transactions_processed_total",
			Help:      "Total number of validated transactions processed",
		}),
		OfferEventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "offer_events_stored_total",
			Help:      "Total number of offer events stored",
		}),
		TradeFillsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trade_fills_stored_total",
			Help:      "Total number of trade fills stored",
		}),
		StreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total number of stream processing errors by stage",
		}, []string{"stage"}),

		NodeDemotions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "node_demotions_total",
			Help:      "Total number of endpoints marked bad",
		}),
		NodeSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "node_switches_total",
			Help:      "Total number of proactive endpoint switches",
		}),
		NodeLatency: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "node_latency_seconds",
			Help:      "Last probed round-trip latency per endpoint",
		}, []string{"endpoint"}),

		RequestWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "request_waits_total",
			Help:      "Total number of requests delayed by the rate limiter",
		}),

		PipelineTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transitions_total",
			Help:      "Total number of transaction state transitions",
		}, []string{"state"}),
		PipelineOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Total number of final transaction outcomes by engine result",
		}, []string{"result"}),
		SubmitAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "submit_attempts",
			Help:      "Submission attempts used per transaction",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),

		LastValidatedLedger: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_validated_ledger_index",
			Help:      "Index of the last validated ledger observed on the stream",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// PoolNotify adapts the metrics to the node pool's notification hook.
func (m *Metrics) PoolNotify(event, detail string) {
	switch event {
	case "node_demoted":
		m.NodeDemotions.Inc()
	case "node_switched":
		m.NodeSwitches.Inc()
	case "request_wait":
		m.RequestWaits.Inc()
	}
}

// PoolLatency adapts the metrics to the node pool's latency probe hook.
func (m *Metrics) PoolLatency(url string, latency time.Duration) {
	m.NodeLatency.WithLabelValues(url).Set(latency.Seconds())
}

// PipelineState adapts the metrics to the pipeline's state hook.
func (m *Metrics) PipelineState(state string) {
	m.PipelineTransitions.WithLabelValues(state).Inc()
}

// PipelineOutcome adapts the metrics to the pipeline's outcome hook.
func (m *Metrics) PipelineOutcome(result string, attempts int) {
	m.PipelineOutcomes.WithLabelValues(result).Inc()
	if attempts > 0 {
		m.SubmitAttempts.Observe(float64(attempts))
	}
}

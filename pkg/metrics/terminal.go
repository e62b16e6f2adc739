package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TerminalMetrics records sync-queue and payment-attempt outcomes.
type TerminalMetrics struct {
	drainDuration *prometheus.HistogramVec
	drainSuccess  *prometheus.CounterVec
	drainFailure  *prometheus.CounterVec
	pendingSales  prometheus.Gauge
	attempts      *prometheus.CounterVec
}

// NewTerminalMetrics registers the terminal metrics on the provided registerer.
func NewTerminalMetrics(reg prometheus.Registerer) *TerminalMetrics {
	if reg == nil {
		return &TerminalMetrics{}
	}
	drainDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_drain_duration_seconds",
		Help:    "Duration of sync drain passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	drainSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_sales_acked",
		Help: "Sales acknowledged by the remote ledger.",
	}, []string{"trigger"})
	drainFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_sales_failed",
		Help: "Sale posts that failed and stayed queued.",
	}, []string{"trigger"})
	pendingSales := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_pending_sales",
		Help: "Sales committed locally and not yet acknowledged remotely.",
	})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts",
		Help: "Payment attempts by method and terminal outcome.",
	}, []string{"method", "outcome"})
	reg.MustRegister(drainDuration, drainSuccess, drainFailure, pendingSales, attempts)
	return &TerminalMetrics{
		drainDuration: drainDuration,
		drainSuccess:  drainSuccess,
		drainFailure:  drainFailure,
		pendingSales:  pendingSales,
		attempts:      attempts,
	}
}

// ObserveDrain records the duration of one drain pass.
func (m *TerminalMetrics) ObserveDrain(trigger string, duration time.Duration) {
	if m == nil || m.drainDuration == nil {
		return
	}
	m.drainDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncAcked counts a sale acknowledged by the ledger.
func (m *TerminalMetrics) IncAcked(trigger string) {
	if m == nil || m.drainSuccess == nil {
		return
	}
	m.drainSuccess.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncFailed counts a sale post that failed and stayed queued.
func (m *TerminalMetrics) IncFailed(trigger string) {
	if m == nil || m.drainFailure == nil {
		return
	}
	m.drainFailure.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// SetPending publishes the current pending-sale queue depth.
func (m *TerminalMetrics) SetPending(count int) {
	if m == nil || m.pendingSales == nil {
		return
	}
	m.pendingSales.Set(float64(count))
}

// IncAttempt counts a payment attempt outcome.
func (m *TerminalMetrics) IncAttempt(method, outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

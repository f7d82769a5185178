package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome and run result label values
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	RunSuccess     = "success"
	RunFailure     = "failure"
)

// MaterializationMetrics records recurring order materialization runs.
// A nil *MaterializationMetrics is valid and records nothing.
type MaterializationMetrics struct {
	orders   *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMaterializationMetrics registers the materialization metrics on reg
func NewMaterializationMetrics(reg prometheus.Registerer) *MaterializationMetrics {
	if reg == nil {
		return &MaterializationMetrics{}
	}

	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recurring_orders_materialized_total",
		Help: "Templates handled by materialization, by outcome.",
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recurring_materialization_runs_total",
		Help: "Materialization runs for a date, by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recurring_materialization_duration_seconds",
		Help:    "Duration of materialization runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(orders, runs, duration)

	return &MaterializationMetrics{orders: orders, runs: runs, duration: duration}
}

// IncOutcome counts one template handled with the given outcome
func (m *MaterializationMetrics) IncOutcome(outcome string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished run
func (m *MaterializationMetrics) ObserveRun(result string, d time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"taxaudit/internal/withholding"
)

// Run outcomes
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// AuditMetrics counts audit runs and their per-payment results. A nil
// *AuditMetrics is valid and records nothing.
type AuditMetrics struct {
	runs        *prometheus.CounterVec
	payments    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewAuditMetrics registers the audit instruments on reg.
func NewAuditMetrics(reg prometheus.Registerer) *AuditMetrics {
	m := &AuditMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_runs_total",
			Help: "Withholding audit runs by outcome.",
		}, []string{"outcome"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_payments_total",
			Help: "Reconciled payments by classification.",
		}, []string{"classification"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_payment_failures_total",
			Help: "Payments that could not be evaluated, by failure kind.",
		}, []string{"kind"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_run_duration_seconds",
			Help:    "Wall time of a withholding audit run.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(m.runs, m.payments, m.failures, m.runDuration)

	// Pre-create label values so dashboards see zeros.
	for _, c := range []withholding.Classification{withholding.Compliant, withholding.UnderWithheld, withholding.OverWithheld, withholding.Exempt} {
		m.payments.WithLabelValues(string(c))
	}
	for _, o := range []string{OutcomeCompleted, OutcomePartial, OutcomeCancelled, OutcomeFailed} {
		m.runs.WithLabelValues(o)
	}

	return m
}

// ObserveRun records a finished run. res may be nil for failed runs.
func (m *AuditMetrics) ObserveRun(outcome string, res *withholding.AuditResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())

	if res == nil {
		return
	}
	counts := res.Aggregate.ByClassification
	m.payments.WithLabelValues(string(withholding.Compliant)).Add(float64(counts.Compliant))
	m.payments.WithLabelValues(string(withholding.UnderWithheld)).Add(float64(counts.UnderWithheld))
	m.payments.WithLabelValues(string(withholding.OverWithheld)).Add(float64(counts.OverWithheld))
	m.payments.WithLabelValues(string(withholding.Exempt)).Add(float64(counts.Exempt))
	for _, f := range res.Failures {
		m.failures.WithLabelValues(string(f.Kind)).Inc()
	}
}

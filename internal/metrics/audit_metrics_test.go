package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"taxaudit/internal/withholding"
)

func TestAuditMetrics_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetrics(reg)

	res := &withholding.AuditResult{
		Aggregate: withholding.AuditAggregate{
			ByClassification: withholding.ClassificationCounts{Compliant: 3, UnderWithheld: 2, Exempt: 1},
		},
		Failures: []withholding.FailedEntry{
			{PaymentID: "a", Kind: withholding.FailureUnknownRule},
			{PaymentID: "b", Kind: withholding.FailureUnknownRule},
			{PaymentID: "c", Kind: withholding.FailureInvalidAmount},
		},
	}

	m.ObserveRun(OutcomeCompleted, res, 120*time.Millisecond)
	m.ObserveRun(OutcomeFailed, nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runs.WithLabelValues(OutcomePartial)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.payments.WithLabelValues("compliant")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.payments.WithLabelValues("under_withheld")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.payments.WithLabelValues("over_withheld")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("exempt")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("unknown_rule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("invalid_amount")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestAuditMetrics_NilIsNoop(t *testing.T) {
	var m *AuditMetrics
	assert.NotPanics(t, func() {
		m.ObserveRun(OutcomeCompleted, &withholding.AuditResult{}, time.Second)
	})
}

package withholding_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxaudit/internal/withholding"
)

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	agg := withholding.Aggregate(nil)

	assert.Zero(t, agg.PaymentCount)
	assert.Zero(t, agg.NonCompliantCount)
	assert.True(t, agg.TotalGross.IsZero())
	assert.True(t, agg.TotalExpectedNet.IsZero())
	assert.True(t, agg.TotalActualNet.IsZero())
	for _, kind := range withholding.TaxKinds {
		assert.True(t, agg.TotalExpected.Get(kind).IsZero(), "expected %s", kind)
		assert.True(t, agg.TotalActual.Get(kind).IsZero(), "actual %s", kind)
		assert.True(t, agg.TotalDelta.Get(kind).IsZero(), "delta %s", kind)
	}
}

func reconciledRecords(t *testing.T) []withholding.AuditRecord {
	t.Helper()

	res, err := withholding.NewEngine(withholding.DefaultRateTable()).ReconcileAll(t.Context(), manyPayments(30))
	require.NoError(t, err)

	// Mix in an exempt record and an over-withheld one.
	exempt, err := withholding.NewEngine(irOnlyTable(t)).Reconcile(withholding.Payment{
		ID:             "tiny",
		ServiceType:    withholding.ServiceConsultoria,
		SupplierRegime: withholding.RegimeLucroPresumido,
		GrossAmount:    d("12.34"),
		NetAmount:      d("12.34"),
	})
	require.NoError(t, err)

	over := scenarioPayment()
	over.ID = "over"
	over.Withheld.ISS = d("600.00")
	overRec, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(over)
	require.NoError(t, err)

	return append(res.Records, exempt, overRec)
}

func TestAggregate_SumsEveryKind(t *testing.T) {
	t.Parallel()

	records := reconciledRecords(t)
	agg := withholding.Aggregate(records)

	var expected, actual withholding.Amounts
	for _, r := range records {
		expected = expected.Add(r.Expected)
		actual = actual.Add(r.Actual)
	}
	for _, kind := range withholding.TaxKinds {
		assert.True(t, expected.Get(kind).Equal(agg.TotalExpected.Get(kind)), "expected %s", kind)
		assert.True(t, actual.Get(kind).Equal(agg.TotalActual.Get(kind)), "actual %s", kind)
	}

	assert.Equal(t, len(records), agg.PaymentCount)
	assert.Equal(t, withholding.ClassificationCounts{
		Compliant:     20,
		UnderWithheld: 10,
		OverWithheld:  1,
		Exempt:        1,
	}, agg.ByClassification)
	assert.Equal(t, 12, agg.NonCompliantCount)
	assertAmount(t, "310012.34", agg.TotalGross)
}

func TestAggregate_OrderInvariant(t *testing.T) {
	t.Parallel()

	records := reconciledRecords(t)
	want := withholding.Aggregate(records)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]withholding.AuditRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := withholding.Aggregate(shuffled)
		assert.True(t, want.TotalGross.Equal(got.TotalGross))
		assert.True(t, want.TotalExpected.Equal(got.TotalExpected))
		assert.True(t, want.TotalActual.Equal(got.TotalActual))
		assert.True(t, want.TotalDelta.Equal(got.TotalDelta))
		assert.True(t, want.TotalExpectedNet.Equal(got.TotalExpectedNet))
		assert.True(t, want.TotalActualNet.Equal(got.TotalActualNet))
		assert.Equal(t, want.ByClassification, got.ByClassification)
		assert.Equal(t, want.NonCompliantCount, got.NonCompliantCount)
	}
}

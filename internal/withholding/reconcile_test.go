package withholding_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxaudit/internal/withholding"
)

// scenarioPayment is a 10,000.00 consultancy payment to a lucro real supplier
// with every retention withheld correctly.
func scenarioPayment() withholding.Payment {
	return withholding.Payment{
		ID:             "pay-1",
		ClientID:       "client-1",
		SupplierID:     "supplier-1",
		SupplierRegime: withholding.RegimeLucroReal,
		ServiceType:    withholding.ServiceConsultoria,
		DocumentNumber: "NF-1001",
		GrossAmount:    d("10000.00"),
		Withheld: withholding.Amounts{
			IR: d("150.00"), PIS: d("65.00"), COFINS: d("300.00"), CSLL: d("100.00"), ISS: d("500.00"),
		},
		NetAmount: d("8885.00"),
	}
}

func TestReconcile_Compliant(t *testing.T) {
	t.Parallel()

	p := scenarioPayment()
	require.True(t, p.NetConsistent(withholding.DefaultTolerance))

	rec, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(p)
	require.NoError(t, err)

	assert.Equal(t, withholding.Compliant, rec.Classification)
	assert.Equal(t, "pay-1", rec.PaymentID)
	assert.Equal(t, "NF-1001", rec.DocumentNumber)
	assertAmount(t, "8885.00", rec.ExpectedNet)
	assertAmount(t, "8885.00", rec.ActualNet)
	assert.True(t, rec.Delta.Equal(withholding.Amounts{}))
	assert.Equal(t, withholding.KindFlags{}, rec.Exempt)
}

func TestReconcile_UnderWithheld(t *testing.T) {
	t.Parallel()

	p := scenarioPayment()
	p.Withheld.IR = d("0")
	p.NetAmount = d("9035.00")

	rec, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(p)
	require.NoError(t, err)

	assert.Equal(t, withholding.UnderWithheld, rec.Classification)
	assertAmount(t, "-150.00", rec.Delta.IR)
	assertAmount(t, "150.00", rec.Expected.IR)
}

func TestReconcile_UnderTakesPrecedenceOverOver(t *testing.T) {
	t.Parallel()

	p := scenarioPayment()
	p.Withheld.IR = d("0")
	p.Withheld.ISS = d("900.00")

	rec, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(p)
	require.NoError(t, err)
	assert.Equal(t, withholding.UnderWithheld, rec.Classification)
}

func TestReconcile_OverWithheld(t *testing.T) {
	t.Parallel()

	p := scenarioPayment()
	p.Withheld.CSLL = d("100.02")

	rec, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(p)
	require.NoError(t, err)
	assert.Equal(t, withholding.OverWithheld, rec.Classification)
}

func TestReconcile_WithinTolerance(t *testing.T) {
	t.Parallel()

	p := scenarioPayment()
	p.Withheld.IR = d("150.01")
	p.Withheld.PIS = d("64.99")

	rec, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(p)
	require.NoError(t, err)
	assert.Equal(t, withholding.Compliant, rec.Classification)

	strict, err := withholding.NewEngine(withholding.DefaultRateTable(), withholding.WithTolerance(d("0"))).Reconcile(p)
	require.NoError(t, err)
	assert.Equal(t, withholding.UnderWithheld, strict.Classification)
}

func irOnlyTable(t *testing.T) *withholding.RateTable {
	t.Helper()
	table, err := withholding.NewRateTable([]withholding.RateEntry{
		{
			ServiceType:    withholding.ServiceConsultoria,
			Regime:         withholding.RegimeLucroPresumido,
			Kind:           withholding.IR,
			Rate:           d("0.015"),
			MinimumTaxable: d("666.00"),
			Applicable:     true,
		},
	})
	require.NoError(t, err)
	return table
}

func TestReconcile_BelowThresholdIsExempt(t *testing.T) {
	t.Parallel()

	p := withholding.Payment{
		ID:             "small",
		SupplierRegime: withholding.RegimeLucroPresumido,
		ServiceType:    withholding.ServiceConsultoria,
		GrossAmount:    d("50.00"),
		NetAmount:      d("50.00"),
	}

	rec, err := withholding.NewEngine(irOnlyTable(t)).Reconcile(p)
	require.NoError(t, err)

	assert.True(t, rec.Expected.IR.IsZero())
	assert.Equal(t, withholding.Exempt, rec.Classification)
	assert.True(t, rec.Exempt.All())
}

func TestReconcile_ExemptButWithheldIsOver(t *testing.T) {
	t.Parallel()

	p := withholding.Payment{
		ID:             "small",
		SupplierRegime: withholding.RegimeLucroPresumido,
		ServiceType:    withholding.ServiceConsultoria,
		GrossAmount:    d("50.00"),
		Withheld:       withholding.Amounts{IR: d("0.75")},
		NetAmount:      d("49.25"),
	}

	rec, err := withholding.NewEngine(irOnlyTable(t)).Reconcile(p)
	require.NoError(t, err)
	assert.Equal(t, withholding.OverWithheld, rec.Classification)
}

func TestReconcile_UnknownRule(t *testing.T) {
	t.Parallel()

	p := scenarioPayment()
	p.ServiceType = "astrologia"

	_, err := withholding.NewEngine(withholding.DefaultRateTable()).Reconcile(p)
	assert.ErrorIs(t, err, withholding.ErrUnknownRule)
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	engine := withholding.NewEngine(withholding.DefaultRateTable())
	p := scenarioPayment()
	p.Withheld.COFINS = d("299.50")

	first, err := engine.Reconcile(p)
	require.NoError(t, err)
	second, err := engine.Reconcile(p)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

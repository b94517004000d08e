package withholding_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxaudit/internal/withholding"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func consultoriaLucroReal(t *testing.T) withholding.TaxRule {
	t.Helper()
	rule, err := withholding.DefaultRateTable().Resolve(withholding.ServiceConsultoria, withholding.RegimeLucroReal)
	require.NoError(t, err)
	return rule
}

func TestComputeExpected(t *testing.T) {
	t.Parallel()

	rule := consultoriaLucroReal(t)

	tests := []struct {
		name  string
		gross string
		want  withholding.Amounts
	}{
		{
			name:  "all kinds above minimum",
			gross: "10000.00",
			want: withholding.Amounts{
				IR: d("150.00"), PIS: d("65.00"), COFINS: d("300.00"), CSLL: d("100.00"), ISS: d("500.00"),
			},
		},
		{
			name:  "below federal minimums only ISS remains",
			gross: "200.00",
			want: withholding.Amounts{
				IR: d("0"), PIS: d("0"), COFINS: d("0"), CSLL: d("0"), ISS: d("10.00"),
			},
		},
		{
			name:  "gross equal to minimum is taxed",
			gross: "666.67",
			want: withholding.Amounts{
				IR: d("10.00"), PIS: d("4.33"), COFINS: d("20.00"), CSLL: d("6.67"), ISS: d("33.33"),
			},
		},
		{
			name:  "zero gross",
			gross: "0",
			want:  withholding.Amounts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := withholding.ComputeExpected(withholding.Payment{ID: "p1", GrossAmount: d(tt.gross)}, rule)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %+v, got %+v", tt.want, got)
		})
	}
}

func TestComputeExpected_BankersRounding(t *testing.T) {
	t.Parallel()

	rule := withholding.TaxRule{
		ISS: withholding.KindRule{Applicable: true, Rate: d("0.05")},
	}

	// 0.50 * 0.05 = 0.025 ties to 0.02; 0.70 * 0.05 = 0.035 ties to 0.04.
	got, err := withholding.ComputeExpected(withholding.Payment{GrossAmount: d("0.50")}, rule)
	require.NoError(t, err)
	assertAmount(t, "0.02", got.ISS)

	got, err = withholding.ComputeExpected(withholding.Payment{GrossAmount: d("0.70")}, rule)
	require.NoError(t, err)
	assertAmount(t, "0.04", got.ISS)
}

func TestComputeExpected_InapplicableIsZero(t *testing.T) {
	t.Parallel()

	rule, err := withholding.DefaultRateTable().Resolve(withholding.ServiceAdvocacia, withholding.RegimeSimplesNacional)
	require.NoError(t, err)

	got, err := withholding.ComputeExpected(withholding.Payment{GrossAmount: d("1000000")}, rule)
	require.NoError(t, err)

	for _, kind := range []withholding.TaxKind{withholding.IR, withholding.PIS, withholding.COFINS, withholding.CSLL} {
		assert.True(t, got.Get(kind).IsZero(), "kind %s", kind)
	}
	assertAmount(t, "20000.00", got.ISS)
}

func TestComputeExpected_NegativeGross(t *testing.T) {
	t.Parallel()

	_, err := withholding.ComputeExpected(withholding.Payment{ID: "neg", GrossAmount: d("-1")}, consultoriaLucroReal(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, withholding.ErrInvalidAmount)

	var invalid *withholding.InvalidAmountError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "neg", invalid.PaymentID)
}

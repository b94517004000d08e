package withholding_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxaudit/internal/withholding"
)

func TestDefaultRateTable_CoversEveryPair(t *testing.T) {
	t.Parallel()

	table := withholding.DefaultRateTable()
	assert.Equal(t, len(withholding.ServiceTypes)*3, table.Len())

	for _, st := range withholding.ServiceTypes {
		for _, regime := range []withholding.Regime{
			withholding.RegimeSimplesNacional, withholding.RegimeLucroPresumido, withholding.RegimeLucroReal,
		} {
			rule, err := table.Resolve(st, regime)
			require.NoError(t, err, "%s/%s", st, regime)
			assert.Equal(t, st, rule.ServiceType)
			assert.Equal(t, regime, rule.Regime)
			assert.True(t, rule.ISS.Applicable)
		}
	}

	rules := table.Rules()
	require.Len(t, rules, table.Len())
	for i := 1; i < len(rules); i++ {
		prev, cur := rules[i-1], rules[i]
		assert.True(t, prev.ServiceType < cur.ServiceType ||
			(prev.ServiceType == cur.ServiceType && prev.Regime < cur.Regime))
	}
}

func TestRateTable_Resolve(t *testing.T) {
	t.Parallel()

	table, err := withholding.NewRateTable([]withholding.RateEntry{
		{ServiceType: withholding.ServiceEngenharia, Regime: withholding.RegimeLucroReal, Kind: withholding.IR, Rate: d("0.015"), MinimumTaxable: d("666.67"), Applicable: true},
		{ServiceType: withholding.ServiceEngenharia, Regime: withholding.RegimeLucroReal, Kind: withholding.ISS, Rate: d("0.03"), Applicable: true},
	})
	require.NoError(t, err)

	rule, err := table.Resolve(withholding.ServiceEngenharia, withholding.RegimeLucroReal)
	require.NoError(t, err)
	assert.True(t, rule.IR.Applicable)
	assertAmount(t, "0.015", rule.IR.Rate)
	assertAmount(t, "666.67", rule.IR.MinimumTaxable)
	assert.False(t, rule.PIS.Applicable, "unlisted kinds are inapplicable")

	tests := []struct {
		name   string
		st     withholding.ServiceType
		regime withholding.Regime
	}{
		{"missing pair", withholding.ServiceEngenharia, withholding.RegimeLucroPresumido},
		{"unknown service type", "astrologia", withholding.RegimeLucroReal},
		{"unknown regime", withholding.ServiceEngenharia, "mei"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Resolve(tt.st, tt.regime)
			require.ErrorIs(t, err, withholding.ErrUnknownRule)

			var unknown *withholding.UnknownRuleError
			require.True(t, errors.As(err, &unknown))
			assert.Equal(t, tt.st, unknown.ServiceType)
			assert.Equal(t, tt.regime, unknown.Regime)
		})
	}
}

func TestNewRateTable_RejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	valid := withholding.RateEntry{
		ServiceType: withholding.ServiceConsultoria,
		Regime:      withholding.RegimeLucroReal,
		Kind:        withholding.IR,
		Rate:        d("0.015"),
		Applicable:  true,
	}

	tests := []struct {
		name    string
		entries func() []withholding.RateEntry
	}{
		{"rate above one", func() []withholding.RateEntry {
			e := valid
			e.Rate = d("1.5")
			return []withholding.RateEntry{e}
		}},
		{"negative rate", func() []withholding.RateEntry {
			e := valid
			e.Rate = d("-0.01")
			return []withholding.RateEntry{e}
		}},
		{"negative minimum", func() []withholding.RateEntry {
			e := valid
			e.MinimumTaxable = d("-1")
			return []withholding.RateEntry{e}
		}},
		{"unknown kind", func() []withholding.RateEntry {
			e := valid
			e.Kind = "IOF"
			return []withholding.RateEntry{e}
		}},
		{"unknown regime", func() []withholding.RateEntry {
			e := valid
			e.Regime = "mei"
			return []withholding.RateEntry{e}
		}},
		{"duplicate row", func() []withholding.RateEntry {
			return []withholding.RateEntry{valid, valid}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := withholding.NewRateTable(tt.entries())
			assert.ErrorIs(t, err, withholding.ErrInvalidRateEntry)
		})
	}
}

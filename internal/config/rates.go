package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"taxaudit/internal/withholding"
)

// rateRow is one entry of the "rates" list in a rate file. Numbers may be
// written as strings to keep exact decimals.
type rateRow struct {
	ServiceType    string `mapstructure:"service_type"`
	Regime         string `mapstructure:"regime"`
	Kind           string `mapstructure:"kind"`
	Rate           string `mapstructure:"rate"`
	MinimumTaxable string `mapstructure:"minimum_taxable"`
	Applicable     *bool  `mapstructure:"applicable"`
}

// LoadRateEntries reads a YAML, JSON or TOML rate file. Rows default to
// applicable; the entries are not validated beyond number parsing.
func LoadRateEntries(path string) ([]withholding.RateEntry, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config.LoadRateEntries: %w", err)
	}

	var rows []rateRow
	if err := v.UnmarshalKey("rates", &rows); err != nil {
		return nil, fmt.Errorf("config.LoadRateEntries: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("config.LoadRateEntries: %s has no rates", path)
	}

	entries := make([]withholding.RateEntry, 0, len(rows))
	for i, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			return nil, fmt.Errorf("config.LoadRateEntries: rates[%d]: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LoadRateTable builds a validated rate table from path, or the built-in
// reference table when path is empty.
func LoadRateTable(path string) (*withholding.RateTable, error) {
	if path == "" {
		return withholding.DefaultRateTable(), nil
	}
	entries, err := LoadRateEntries(path)
	if err != nil {
		return nil, err
	}
	return withholding.NewRateTable(entries)
}

func (r rateRow) toEntry() (withholding.RateEntry, error) {
	rate, err := decimal.NewFromString(r.Rate)
	if err != nil {
		return withholding.RateEntry{}, fmt.Errorf("rate %q: %w", r.Rate, err)
	}

	minimum := decimal.Zero
	if r.MinimumTaxable != "" {
		minimum, err = decimal.NewFromString(r.MinimumTaxable)
		if err != nil {
			return withholding.RateEntry{}, fmt.Errorf("minimum_taxable %q: %w", r.MinimumTaxable, err)
		}
	}

	applicable := true
	if r.Applicable != nil {
		applicable = *r.Applicable
	}

	return withholding.RateEntry{
		ServiceType:    withholding.ServiceType(r.ServiceType),
		Regime:         withholding.Regime(r.Regime),
		Kind:           withholding.TaxKind(r.Kind),
		Rate:           rate,
		MinimumTaxable: minimum,
		Applicable:     applicable,
	}, nil
}

package withholding

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RateEntry is one row of the rate table: the retention of a single tax kind
// for a (service type, regime) pair. Kinds without a row for a known pair are
// inapplicable to it.
type RateEntry struct {
	ServiceType    ServiceType     `json:"service_type"`
	Regime         Regime          `json:"regime"`
	Kind           TaxKind         `json:"kind"`
	Rate           decimal.Decimal `json:"rate"`
	MinimumTaxable decimal.Decimal `json:"minimum_taxable"`
	Applicable     bool            `json:"applicable"`
}

func (e RateEntry) validate() error {
	if !e.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown service type %q", ErrInvalidRateEntry, e.ServiceType)
	}
	if !e.Regime.Valid() {
		return fmt.Errorf("%w: unknown regime %q", ErrInvalidRateEntry, e.Regime)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown tax kind %q", ErrInvalidRateEntry, e.Kind)
	}
	if e.Rate.IsNegative() || e.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: rate %s for %s/%s/%s outside [0, 1]", ErrInvalidRateEntry, e.Rate, e.ServiceType, e.Regime, e.Kind)
	}
	if e.MinimumTaxable.IsNegative() {
		return fmt.Errorf("%w: negative minimum taxable %s for %s/%s/%s", ErrInvalidRateEntry, e.MinimumTaxable, e.ServiceType, e.Regime, e.Kind)
	}
	return nil
}

// Resolver selects the tax rule that applies to a payment.
type Resolver interface {
	Resolve(serviceType ServiceType, regime Regime) (TaxRule, error)
}

type ruleKey struct {
	serviceType ServiceType
	regime      Regime
}

type entryKey struct {
	ruleKey
	kind TaxKind
}

// RateTable is an immutable (service type, regime) -> TaxRule mapping. It is
// safe for concurrent use once built.
type RateTable struct {
	rules map[ruleKey]TaxRule
}

// NewRateTable validates entries and indexes them by (service type, regime).
func NewRateTable(entries []RateEntry) (*RateTable, error) {
	seen := make(map[entryKey]struct{}, len(entries))
	rules := make(map[ruleKey]TaxRule)

	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, err
		}
		ek := entryKey{ruleKey{e.ServiceType, e.Regime}, e.Kind}
		if _, dup := seen[ek]; dup {
			return nil, fmt.Errorf("%w: duplicate row for %s/%s/%s", ErrInvalidRateEntry, e.ServiceType, e.Regime, e.Kind)
		}
		seen[ek] = struct{}{}

		rule, ok := rules[ek.ruleKey]
		if !ok {
			rule = TaxRule{ServiceType: e.ServiceType, Regime: e.Regime}
		}
		rule.setKind(e.Kind, KindRule{
			Applicable:     e.Applicable,
			Rate:           e.Rate,
			MinimumTaxable: e.MinimumTaxable,
		})
		rules[ek.ruleKey] = rule
	}

	return &RateTable{rules: rules}, nil
}

// Resolve returns the rule for the pair or an *UnknownRuleError.
func (t *RateTable) Resolve(serviceType ServiceType, regime Regime) (TaxRule, error) {
	if !serviceType.Valid() || !regime.Valid() {
		return TaxRule{}, &UnknownRuleError{ServiceType: serviceType, Regime: regime}
	}
	rule, ok := t.rules[ruleKey{serviceType, regime}]
	if !ok {
		return TaxRule{}, &UnknownRuleError{ServiceType: serviceType, Regime: regime}
	}
	return rule, nil
}

// Len returns the number of (service type, regime) pairs.
func (t *RateTable) Len() int {
	return len(t.rules)
}

// Rules returns every rule ordered by service type then regime.
func (t *RateTable) Rules() []TaxRule {
	out := make([]TaxRule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceType != out[j].ServiceType {
			return out[i].ServiceType < out[j].ServiceType
		}
		return out[i].Regime < out[j].Regime
	})
	return out
}

package withholding

import "github.com/shopspring/decimal"

// CurrencyPlaces is the number of decimal places amounts are rounded to.
const CurrencyPlaces = 2

// ComputeExpected returns the amount that should have been withheld for every
// tax kind. Products are rounded half-to-even to CurrencyPlaces, so repeated
// audits of the same figures never drift by a cent.
func ComputeExpected(p Payment, rule TaxRule) (Amounts, error) {
	expected, _, err := computeExpected(p, rule)
	return expected, err
}

// computeExpected also reports which kinds were not evaluated because the rule
// is inapplicable or the gross amount is below its minimum.
func computeExpected(p Payment, rule TaxRule) (Amounts, KindFlags, error) {
	if p.GrossAmount.IsNegative() {
		return Amounts{}, KindFlags{}, &InvalidAmountError{PaymentID: p.ID, Amount: p.GrossAmount}
	}

	var (
		expected Amounts
		exempt   KindFlags
	)
	for _, kind := range TaxKinds {
		kr := rule.Kind(kind)
		if !kr.Applicable || p.GrossAmount.LessThan(kr.MinimumTaxable) {
			expected = expected.With(kind, decimal.Zero)
			exempt = exempt.With(kind, true)
			continue
		}
		expected = expected.With(kind, p.GrossAmount.Mul(kr.Rate).RoundBank(CurrencyPlaces))
	}

	return expected, exempt, nil
}

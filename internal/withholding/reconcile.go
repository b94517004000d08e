package withholding

import "github.com/shopspring/decimal"

// DefaultTolerance absorbs one cent of rounding noise between independently
// rounded expected and recorded amounts.
var DefaultTolerance = decimal.New(1, -CurrencyPlaces)

// reconcile builds the audit record of p under rule.
func reconcile(p Payment, rule TaxRule, tolerance decimal.Decimal) (AuditRecord, error) {
	expected, exempt, err := computeExpected(p, rule)
	if err != nil {
		return AuditRecord{}, err
	}

	actual := p.Withheld
	delta := actual.Sub(expected)

	return AuditRecord{
		PaymentID:      p.ID,
		DocumentNumber: p.DocumentNumber,
		ServiceType:    p.ServiceType,
		SupplierRegime: p.SupplierRegime,
		GrossAmount:    p.GrossAmount,
		Expected:       expected,
		Actual:         actual,
		Delta:          delta,
		Exempt:         exempt,
		Classification: classify(delta, exempt, tolerance),
		ExpectedNet:    p.GrossAmount.Sub(expected.Sum()),
		ActualNet:      p.NetAmount,
	}, nil
}

// classify applies the ordering under > over > exempt > compliant. A payment
// exempt from every kind but with money withheld anyway is over-withheld.
func classify(delta Amounts, exempt KindFlags, tolerance decimal.Decimal) Classification {
	var under, over bool
	for _, kind := range TaxKinds {
		d := delta.Get(kind)
		switch {
		case d.LessThan(tolerance.Neg()):
			under = true
		case d.GreaterThan(tolerance):
			over = true
		}
	}

	switch {
	case under:
		return UnderWithheld
	case over:
		return OverWithheld
	case exempt.All():
		return Exempt
	default:
		return Compliant
	}
}

package withholding

import "github.com/shopspring/decimal"

// Reference rates used when no rate file or stored table is configured. Legal
// accuracy is the operator's responsibility; these mirror the usual federal
// retentions on services and a flat municipal ISS.
var (
	irProfessionalRate = decimal.RequireFromString("0.015")
	irGeneralRate      = decimal.RequireFromString("0.01")
	pisRate            = decimal.RequireFromString("0.0065")
	cofinsRate         = decimal.RequireFromString("0.03")
	csllRate           = decimal.RequireFromString("0.01")
	issRate            = decimal.RequireFromString("0.05")
	issSimplesRate     = decimal.RequireFromString("0.02")

	// IR at or below R$10 is not withheld.
	irProfessionalMinimum = decimal.RequireFromString("666.67")
	irGeneralMinimum      = decimal.RequireFromString("1000.01")

	// PIS+COFINS+CSLL (4.65%) at or below R$10 is not withheld.
	csrfMinimum = decimal.RequireFromString("215.06")
)

var generalServices = map[ServiceType]bool{
	ServiceLimpezaConservacao:  true,
	ServiceVigilanciaSeguranca: true,
	ServiceManutencao:          true,
	ServiceLocacaoMaoDeObra:    true,
}

// DefaultRateEntries returns the built-in reference rate table.
func DefaultRateEntries() []RateEntry {
	entries := make([]RateEntry, 0, len(ServiceTypes)*3*len(TaxKinds))

	for _, st := range ServiceTypes {
		irRate, irMin := irProfessionalRate, irProfessionalMinimum
		if generalServices[st] {
			irRate, irMin = irGeneralRate, irGeneralMinimum
		}

		for _, regime := range []Regime{RegimeLucroPresumido, RegimeLucroReal} {
			entries = append(entries,
				RateEntry{ServiceType: st, Regime: regime, Kind: IR, Rate: irRate, MinimumTaxable: irMin, Applicable: true},
				RateEntry{ServiceType: st, Regime: regime, Kind: PIS, Rate: pisRate, MinimumTaxable: csrfMinimum, Applicable: true},
				RateEntry{ServiceType: st, Regime: regime, Kind: COFINS, Rate: cofinsRate, MinimumTaxable: csrfMinimum, Applicable: true},
				RateEntry{ServiceType: st, Regime: regime, Kind: CSLL, Rate: csllRate, MinimumTaxable: csrfMinimum, Applicable: true},
				RateEntry{ServiceType: st, Regime: regime, Kind: ISS, Rate: issRate, MinimumTaxable: decimal.Zero, Applicable: true},
			)
		}

		// Simples Nacional suppliers are not subject to federal retention.
		for _, k := range []TaxKind{IR, PIS, COFINS, CSLL} {
			entries = append(entries, RateEntry{ServiceType: st, Regime: RegimeSimplesNacional, Kind: k, Rate: decimal.Zero, MinimumTaxable: decimal.Zero})
		}
		entries = append(entries, RateEntry{ServiceType: st, Regime: RegimeSimplesNacional, Kind: ISS, Rate: issSimplesRate, MinimumTaxable: decimal.Zero, Applicable: true})
	}

	return entries
}

// DefaultRateTable builds a RateTable from DefaultRateEntries.
func DefaultRateTable() *RateTable {
	t, err := NewRateTable(DefaultRateEntries())
	if err != nil {
		panic("withholding: invalid default rate table: " + err.Error())
	}
	return t
}

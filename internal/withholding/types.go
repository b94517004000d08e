package withholding

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxKind identifies one of the withheld federal or municipal taxes.
type TaxKind string

const (
	IR     TaxKind = "IR"
	PIS    TaxKind = "PIS"
	COFINS TaxKind = "COFINS"
	CSLL   TaxKind = "CSLL"
	ISS    TaxKind = "ISS"
)

// TaxKinds lists every tax kind in report column order.
var TaxKinds = [...]TaxKind{IR, PIS, COFINS, CSLL, ISS}

// Valid reports whether k is one of TaxKinds.
func (k TaxKind) Valid() bool {
	switch k {
	case IR, PIS, COFINS, CSLL, ISS:
		return true
	}
	return false
}

// Regime is the supplier's tax classification.
type Regime string

const (
	RegimeSimplesNacional Regime = "simples_nacional"
	RegimeLucroPresumido  Regime = "lucro_presumido"
	RegimeLucroReal       Regime = "lucro_real"
)

func (r Regime) Valid() bool {
	switch r {
	case RegimeSimplesNacional, RegimeLucroPresumido, RegimeLucroReal:
		return true
	}
	return false
}

// ServiceType is the category of service a payment remunerates.
type ServiceType string

const (
	ServiceConsultoria           ServiceType = "consultoria"
	ServiceAdvocacia             ServiceType = "advocacia"
	ServiceContabilidade         ServiceType = "contabilidade"
	ServiceEngenharia            ServiceType = "engenharia"
	ServiceLimpezaConservacao    ServiceType = "limpeza_conservacao"
	ServiceVigilanciaSeguranca   ServiceType = "vigilancia_seguranca"
	ServiceManutencao            ServiceType = "manutencao"
	ServiceLocacaoMaoDeObra      ServiceType = "locacao_mao_de_obra"
	ServiceTecnologiaInformacao  ServiceType = "tecnologia_informacao"
	ServicePublicidadePropaganda ServiceType = "publicidade_propaganda"
)

// ServiceTypes lists the known service categories.
var ServiceTypes = [...]ServiceType{
	ServiceConsultoria,
	ServiceAdvocacia,
	ServiceContabilidade,
	ServiceEngenharia,
	ServiceLimpezaConservacao,
	ServiceVigilanciaSeguranca,
	ServiceManutencao,
	ServiceLocacaoMaoDeObra,
	ServiceTecnologiaInformacao,
	ServicePublicidadePropaganda,
}

func (s ServiceType) Valid() bool {
	for _, known := range ServiceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// Amounts holds one currency amount per tax kind. The zero value is all zeros.
type Amounts struct {
	IR     decimal.Decimal `json:"ir"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	CSLL   decimal.Decimal `json:"csll"`
	ISS    decimal.Decimal `json:"iss"`
}

// Get returns the amount for kind. Unknown kinds read as zero.
func (a Amounts) Get(kind TaxKind) decimal.Decimal {
	switch kind {
	case IR:
		return a.IR
	case PIS:
		return a.PIS
	case COFINS:
		return a.COFINS
	case CSLL:
		return a.CSLL
	case ISS:
		return a.ISS
	}
	return decimal.Zero
}

// With returns a copy of a with kind set to v.
func (a Amounts) With(kind TaxKind, v decimal.Decimal) Amounts {
	switch kind {
	case IR:
		a.IR = v
	case PIS:
		a.PIS = v
	case COFINS:
		a.COFINS = v
	case CSLL:
		a.CSLL = v
	case ISS:
		a.ISS = v
	}
	return a
}

func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		IR:     a.IR.Add(b.IR),
		PIS:    a.PIS.Add(b.PIS),
		COFINS: a.COFINS.Add(b.COFINS),
		CSLL:   a.CSLL.Add(b.CSLL),
		ISS:    a.ISS.Add(b.ISS),
	}
}

func (a Amounts) Sub(b Amounts) Amounts {
	return Amounts{
		IR:     a.IR.Sub(b.IR),
		PIS:    a.PIS.Sub(b.PIS),
		COFINS: a.COFINS.Sub(b.COFINS),
		CSLL:   a.CSLL.Sub(b.CSLL),
		ISS:    a.ISS.Sub(b.ISS),
	}
}

// Sum adds the amounts of every tax kind.
func (a Amounts) Sum() decimal.Decimal {
	return a.IR.Add(a.PIS).Add(a.COFINS).Add(a.CSLL).Add(a.ISS)
}

// Equal compares kind by kind, ignoring decimal representation.
func (a Amounts) Equal(b Amounts) bool {
	for _, k := range TaxKinds {
		if !a.Get(k).Equal(b.Get(k)) {
			return false
		}
	}
	return true
}

// Payment is one taxed disbursement from a client to a supplier, as read from the
// payment store. The engine never mutates it.
type Payment struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	SupplierID     string          `json:"supplier_id"`
	SupplierRegime Regime          `json:"supplier_regime"`
	ServiceType    ServiceType     `json:"service_type"`
	DocumentNumber string          `json:"document_number"`
	PaymentDate    time.Time       `json:"payment_date"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	Withheld       Amounts         `json:"withheld"`
	NetAmount      decimal.Decimal `json:"net_amount"`
}

// NetConsistent reports whether net = gross - sum(withheld) within tol.
func (p Payment) NetConsistent(tol decimal.Decimal) bool {
	expected := p.GrossAmount.Sub(p.Withheld.Sum())
	return p.NetAmount.Sub(expected).Abs().LessThanOrEqual(tol)
}

// KindRule is the retention rule for a single tax kind.
type KindRule struct {
	Applicable     bool            `json:"applicable"`
	Rate           decimal.Decimal `json:"rate"`
	MinimumTaxable decimal.Decimal `json:"minimum_taxable"`
}

// TaxRule is the resolved rate set for a (service type, regime) pair.
type TaxRule struct {
	ServiceType ServiceType `json:"service_type"`
	Regime      Regime      `json:"regime"`
	IR          KindRule    `json:"ir"`
	PIS         KindRule    `json:"pis"`
	COFINS      KindRule    `json:"cofins"`
	CSLL        KindRule    `json:"csll"`
	ISS         KindRule    `json:"iss"`
}

// Kind returns the rule for kind; unknown kinds are inapplicable.
func (r TaxRule) Kind(kind TaxKind) KindRule {
	switch kind {
	case IR:
		return r.IR
	case PIS:
		return r.PIS
	case COFINS:
		return r.COFINS
	case CSLL:
		return r.CSLL
	case ISS:
		return r.ISS
	}
	return KindRule{}
}

func (r *TaxRule) setKind(kind TaxKind, kr KindRule) {
	switch kind {
	case IR:
		r.IR = kr
	case PIS:
		r.PIS = kr
	case COFINS:
		r.COFINS = kr
	case CSLL:
		r.CSLL = kr
	case ISS:
		r.ISS = kr
	}
}

// Classification is the reconciliation outcome of one payment.
type Classification string

const (
	Compliant     Classification = "compliant"
	UnderWithheld Classification = "under_withheld"
	OverWithheld  Classification = "over_withheld"
	Exempt        Classification = "exempt"
)

// KindFlags is a per tax kind boolean set.
type KindFlags struct {
	IR     bool `json:"ir"`
	PIS    bool `json:"pis"`
	COFINS bool `json:"cofins"`
	CSLL   bool `json:"csll"`
	ISS    bool `json:"iss"`
}

func (f KindFlags) Get(kind TaxKind) bool {
	switch kind {
	case IR:
		return f.IR
	case PIS:
		return f.PIS
	case COFINS:
		return f.COFINS
	case CSLL:
		return f.CSLL
	case ISS:
		return f.ISS
	}
	return false
}

func (f KindFlags) With(kind TaxKind, v bool) KindFlags {
	switch kind {
	case IR:
		f.IR = v
	case PIS:
		f.PIS = v
	case COFINS:
		f.COFINS = v
	case CSLL:
		f.CSLL = v
	case ISS:
		f.ISS = v
	}
	return f
}

// All reports whether every kind is set.
func (f KindFlags) All() bool {
	return f.IR && f.PIS && f.COFINS && f.CSLL && f.ISS
}

// AuditRecord is the result of reconciling one payment.
type AuditRecord struct {
	PaymentID      string          `json:"payment_id"`
	DocumentNumber string          `json:"document_number"`
	ServiceType    ServiceType     `json:"service_type"`
	SupplierRegime Regime          `json:"supplier_regime"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	Expected       Amounts         `json:"expected"`
	Actual         Amounts         `json:"actual"`
	Delta          Amounts         `json:"delta"`
	Exempt         KindFlags       `json:"exempt"`
	Classification Classification  `json:"classification"`
	ExpectedNet    decimal.Decimal `json:"expected_net"`
	ActualNet      decimal.Decimal `json:"actual_net"`
}

// FailureKind names the reason a payment could not be evaluated.
type FailureKind string

const (
	FailureUnknownRule   FailureKind = "unknown_rule"
	FailureInvalidAmount FailureKind = "invalid_amount"
	FailureOther         FailureKind = "other"
)

// FailedEntry marks a payment that could not be evaluated.
type FailedEntry struct {
	PaymentID      string      `json:"payment_id"`
	DocumentNumber string      `json:"document_number"`
	Kind           FailureKind `json:"kind"`
	Message        string      `json:"message"`
}

// ClassificationCounts counts records per classification.
type ClassificationCounts struct {
	Compliant     int `json:"compliant"`
	UnderWithheld int `json:"under_withheld"`
	OverWithheld  int `json:"over_withheld"`
	Exempt        int `json:"exempt"`
}

// AuditAggregate is the client-level summary of a set of audit records.
type AuditAggregate struct {
	TotalGross        decimal.Decimal      `json:"total_gross"`
	TotalExpected     Amounts              `json:"total_expected"`
	TotalActual       Amounts              `json:"total_actual"`
	TotalDelta        Amounts              `json:"total_delta"`
	TotalExpectedNet  decimal.Decimal      `json:"total_expected_net"`
	TotalActualNet    decimal.Decimal      `json:"total_actual_net"`
	PaymentCount      int                  `json:"payment_count"`
	NonCompliantCount int                  `json:"non_compliant_count"`
	ByClassification  ClassificationCounts `json:"by_classification"`
}

// AuditResult is the output of one audit run.
type AuditResult struct {
	ClientID     string         `json:"client_id"`
	Records      []AuditRecord  `json:"records"`
	Failures     []FailedEntry  `json:"failures"`
	Aggregate    AuditAggregate `json:"aggregate"`
	FailureCount int            `json:"failure_count"`
	Partial      bool           `json:"partial"`
}

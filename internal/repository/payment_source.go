package repository

import (
	"context"
	"fmt"

	"taxaudit/internal/model"
	"taxaudit/internal/withholding"

	"github.com/google/uuid"
)

// PaymentSource serves a client's stored payments to the withholding engine.
type PaymentSource struct {
	payments PaymentRepository
}

var _ withholding.PaymentSource = (*PaymentSource)(nil)

func NewPaymentSource(payments PaymentRepository) *PaymentSource {
	return &PaymentSource{payments: payments}
}

func (s *PaymentSource) ListPayments(ctx context.Context, clientID string) ([]withholding.Payment, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client id %q: %w", clientID, err)
	}

	rows, err := s.payments.ListByClient(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]withholding.Payment, len(rows))
	for i := range rows {
		out[i] = ToWithholdingPayment(&rows[i])
	}
	return out, nil
}

// ToWithholdingPayment maps a stored payment to the engine's value type. The
// supplier regime comes from the preloaded Supplier and is empty without it,
// which the engine reports as an unknown rule.
func ToWithholdingPayment(p *model.Payment) withholding.Payment {
	var regime withholding.Regime
	if p.Supplier != nil {
		regime = withholding.Regime(p.Supplier.Regime)
	}
	return withholding.Payment{
		ID:             p.ID.String(),
		ClientID:       p.ClientID.String(),
		SupplierID:     p.SupplierID.String(),
		SupplierRegime: regime,
		ServiceType:    withholding.ServiceType(p.ServiceType),
		DocumentNumber: p.DocumentNumber,
		PaymentDate:    p.PaymentDate,
		GrossAmount:    p.GrossAmount,
		Withheld: withholding.Amounts{
			IR:     p.WithheldIR,
			PIS:    p.WithheldPIS,
			COFINS: p.WithheldCOFINS,
			CSLL:   p.WithheldCSLL,
			ISS:    p.WithheldISS,
		},
		NetAmount: p.NetAmount,
	}
}

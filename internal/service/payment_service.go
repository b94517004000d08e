package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/internal/withholding"
	"taxaudit/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// --- DTOs ---

// CreatePaymentRequest carries amounts as decimal strings, e.g. "1500.00".
// Omitted withheld amounts are zero.
type CreatePaymentRequest struct {
	ClientID       string `json:"client_id" binding:"required"`
	SupplierID     string `json:"supplier_id" binding:"required"`
	ServiceType    string `json:"service_type" binding:"required"`
	DocumentNumber string `json:"document_number" binding:"required"`
	PaymentDate    string `json:"payment_date" binding:"required"` // YYYY-MM-DD
	GrossAmount    string `json:"gross_amount" binding:"required"`
	WithheldIR     string `json:"withheld_ir"`
	WithheldPIS    string `json:"withheld_pis"`
	WithheldCOFINS string `json:"withheld_cofins"`
	WithheldCSLL   string `json:"withheld_csll"`
	WithheldISS    string `json:"withheld_iss"`
	NetAmount      string `json:"net_amount" binding:"required"`
	Notes          string `json:"notes"`
}

type PaymentFilterRequest struct {
	ClientID    string
	SupplierID  string
	ServiceType string
	From        string
	To          string
}

type PaymentResponse struct {
	ID             string `json:"id"`
	ClientID       string `json:"client_id"`
	SupplierID     string `json:"supplier_id"`
	SupplierName   string `json:"supplier_name,omitempty"`
	SupplierRegime string `json:"supplier_regime,omitempty"`
	ServiceType    string `json:"service_type"`
	DocumentNumber string `json:"document_number"`
	PaymentDate    string `json:"payment_date"`
	GrossAmount    string `json:"gross_amount"`
	WithheldIR     string `json:"withheld_ir"`
	WithheldPIS    string `json:"withheld_pis"`
	WithheldCOFINS string `json:"withheld_cofins"`
	WithheldCSLL   string `json:"withheld_csll"`
	WithheldISS    string `json:"withheld_iss"`
	NetAmount      string `json:"net_amount"`
	Notes          string `json:"notes"`
	CreatedAt      string `json:"created_at"`
}

// --- Interface ---

type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest, userID string) (PaymentResponse, error)
	GetPayment(ctx context.Context, id string) (PaymentResponse, error)
	GetPayments(ctx context.Context, filter PaymentFilterRequest, page, limit int) ([]PaymentResponse, int64, error)
}

// --- Implementation ---

type paymentService struct {
	paymentRepo repository.PaymentRepository
	partnerRepo repository.PartnerRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	partnerRepo repository.PartnerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		partnerRepo: partnerRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest, userID string) (PaymentResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return PaymentResponse{}, validationError("invalid client_id")
	}
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return PaymentResponse{}, validationError("invalid supplier_id")
	}
	if !withholding.ServiceType(req.ServiceType).Valid() {
		return PaymentResponse{}, validationError("unknown service_type %q", req.ServiceType)
	}
	if strings.TrimSpace(req.DocumentNumber) == "" {
		return PaymentResponse{}, validationError("document_number is required")
	}
	paymentDate, err := time.Parse(dateLayout, req.PaymentDate)
	if err != nil {
		return PaymentResponse{}, validationError("invalid payment_date format (expected YYYY-MM-DD)")
	}

	payment := &model.Payment{
		ClientID:       clientID,
		SupplierID:     supplierID,
		ServiceType:    req.ServiceType,
		DocumentNumber: req.DocumentNumber,
		PaymentDate:    paymentDate,
		Notes:          req.Notes,
	}
	fields := []struct {
		name     string
		raw      string
		optional bool
		dst      *decimal.Decimal
	}{
		{"gross_amount", req.GrossAmount, false, &payment.GrossAmount},
		{"withheld_ir", req.WithheldIR, true, &payment.WithheldIR},
		{"withheld_pis", req.WithheldPIS, true, &payment.WithheldPIS},
		{"withheld_cofins", req.WithheldCOFINS, true, &payment.WithheldCOFINS},
		{"withheld_csll", req.WithheldCSLL, true, &payment.WithheldCSLL},
		{"withheld_iss", req.WithheldISS, true, &payment.WithheldISS},
		{"net_amount", req.NetAmount, false, &payment.NetAmount},
	}
	for _, f := range fields {
		v, err := parseAmount(f.name, f.raw, f.optional)
		if err != nil {
			return PaymentResponse{}, err
		}
		*f.dst = v
	}

	if !repository.ToWithholdingPayment(payment).NetConsistent(withholding.DefaultTolerance) {
		expected := payment.GrossAmount.Sub(payment.WithheldIR).Sub(payment.WithheldPIS).
			Sub(payment.WithheldCOFINS).Sub(payment.WithheldCSLL).Sub(payment.WithheldISS)
		return PaymentResponse{}, validationError("net_amount %s does not match gross minus withheld (%s)",
			payment.NetAmount.StringFixed(2), expected.StringFixed(2))
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		client, err := s.partnerRepo.FindByID(txCtx, clientID)
		if err != nil {
			return notFound("client", err)
		}
		if client.Type != model.PartnerTypeClient {
			return validationError("partner %s is not a client", clientID)
		}

		supplier, err := s.partnerRepo.FindByID(txCtx, supplierID)
		if err != nil {
			return notFound("supplier", err)
		}
		if supplier.Type != model.PartnerTypeSupplier {
			return validationError("partner %s is not a supplier", supplierID)
		}

		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		payment.Supplier = supplier
		return nil
	})
	if err != nil {
		return PaymentResponse{}, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreatePayment, payment.ID.String(), payment.DocumentNumber, req)

	return toPaymentResponse(*payment), nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (PaymentResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return PaymentResponse{}, validationError("invalid payment ID")
	}
	payment, err := s.paymentRepo.FindByID(ctx, uid)
	if err != nil {
		return PaymentResponse{}, notFound("payment", err)
	}
	return toPaymentResponse(*payment), nil
}

func (s *paymentService) GetPayments(ctx context.Context, req PaymentFilterRequest, page, limit int) ([]PaymentResponse, int64, error) {
	filter, err := parsePaymentFilter(req)
	if err != nil {
		return nil, 0, err
	}

	pg := pagination.Normalize(page, limit)
	payments, total, err := s.paymentRepo.List(ctx, filter, pg.Page, pg.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	res := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		res = append(res, toPaymentResponse(p))
	}
	return res, total, nil
}

// --- Helpers ---

func parseAmount(field, raw string, optional bool) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, validationError("%s is required", field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, validationError("invalid %s value %q", field, raw)
	}
	if v.IsNegative() {
		return decimal.Zero, validationError("%s cannot be negative", field)
	}
	return v, nil
}

func parsePaymentFilter(req PaymentFilterRequest) (repository.PaymentFilter, error) {
	var filter repository.PaymentFilter
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			return filter, validationError("invalid client_id")
		}
		filter.ClientID = &id
	}
	if req.SupplierID != "" {
		id, err := uuid.Parse(req.SupplierID)
		if err != nil {
			return filter, validationError("invalid supplier_id")
		}
		filter.SupplierID = &id
	}
	filter.ServiceType = req.ServiceType
	if req.From != "" {
		t, err := time.Parse(dateLayout, req.From)
		if err != nil {
			return filter, validationError("invalid from date (expected YYYY-MM-DD)")
		}
		filter.From = &t
	}
	if req.To != "" {
		t, err := time.Parse(dateLayout, req.To)
		if err != nil {
			return filter, validationError("invalid to date (expected YYYY-MM-DD)")
		}
		filter.To = &t
	}
	return filter, nil
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:             p.ID.String(),
		ClientID:       p.ClientID.String(),
		SupplierID:     p.SupplierID.String(),
		ServiceType:    p.ServiceType,
		DocumentNumber: p.DocumentNumber,
		PaymentDate:    p.PaymentDate.Format(dateLayout),
		GrossAmount:    p.GrossAmount.StringFixed(2),
		WithheldIR:     p.WithheldIR.StringFixed(2),
		WithheldPIS:    p.WithheldPIS.StringFixed(2),
		WithheldCOFINS: p.WithheldCOFINS.StringFixed(2),
		WithheldCSLL:   p.WithheldCSLL.StringFixed(2),
		WithheldISS:    p.WithheldISS.StringFixed(2),
		NetAmount:      p.NetAmount.StringFixed(2),
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if p.Supplier != nil {
		resp.SupplierName = p.Supplier.Name
		resp.SupplierRegime = p.Supplier.Regime
	}
	return resp
}

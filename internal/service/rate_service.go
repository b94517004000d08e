package service

import (
	"context"
	"fmt"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/internal/withholding"
	"taxaudit/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type WithholdingRateRequest struct {
	ServiceType    string `json:"service_type" binding:"required"`
	Regime         string `json:"regime" binding:"required"`
	TaxKind        string `json:"tax_kind" binding:"required,oneof=IR PIS COFINS CSLL ISS"`
	Rate           string `json:"rate" binding:"required"` // Decimal string, e.g. "0.015"
	MinimumTaxable string `json:"minimum_taxable"`
	Applicable     *bool  `json:"applicable"` // defaults to true
	Description    string `json:"description"`
}

type WithholdingRateResponse struct {
	ID             string `json:"id"`
	ServiceType    string `json:"service_type"`
	Regime         string `json:"regime"`
	TaxKind        string `json:"tax_kind"`
	Rate           string `json:"rate"`
	MinimumTaxable string `json:"minimum_taxable"`
	Applicable     bool   `json:"applicable"`
	Description    string `json:"description"`
	CreatedAt      string `json:"created_at"`
}

// SeedRatesRequest seeds the given rows, or the reference table when Rates is empty.
type SeedRatesRequest struct {
	Replace bool                     `json:"replace"`
	Rates   []WithholdingRateRequest `json:"rates"`
}

type SeedRatesResponse struct {
	Inserted int  `json:"inserted"`
	Replaced bool `json:"replaced"`
}

// --- Interface ---

type RateService interface {
	GetRates(ctx context.Context, serviceType, regime string, page, limit int) ([]WithholdingRateResponse, int64, error)
	CreateRate(ctx context.Context, req WithholdingRateRequest, userID string) (WithholdingRateResponse, error)
	UpdateRate(ctx context.Context, id string, req WithholdingRateRequest, userID string) (WithholdingRateResponse, error)
	DeleteRate(ctx context.Context, id string, userID string) error
	// SeedRates loads entries into an empty table, or replaces the table when replace is set.
	SeedRates(ctx context.Context, entries []withholding.RateEntry, replace bool, userID string) (SeedRatesResponse, error)
	// RateTable builds the resolver from the stored rows.
	RateTable(ctx context.Context) (*withholding.RateTable, error)
}

type rateService struct {
	rateRepo  repository.WithholdingRateRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewRateService(rateRepo repository.WithholdingRateRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) RateService {
	return &rateService{rateRepo: rateRepo, auditRepo: auditRepo, txManager: txManager}
}

// --- Implementation ---

func (s *rateService) GetRates(ctx context.Context, serviceType, regime string, page, limit int) ([]WithholdingRateResponse, int64, error) {
	pg := pagination.Normalize(page, limit)
	rates, total, err := s.rateRepo.List(ctx, serviceType, regime, pg.Page, pg.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch withholding rates: %w", err)
	}

	res := make([]WithholdingRateResponse, 0, len(rates))
	for _, r := range rates {
		res = append(res, toRateResponse(r))
	}
	return res, total, nil
}

func (s *rateService) CreateRate(ctx context.Context, req WithholdingRateRequest, userID string) (WithholdingRateResponse, error) {
	entry, err := ToRateEntry(req)
	if err != nil {
		return WithholdingRateResponse{}, err
	}

	if err := s.checkDuplicate(ctx, entry, nil); err != nil {
		return WithholdingRateResponse{}, err
	}

	rate := toRateModel(entry, req.Description)
	if err := s.rateRepo.Create(ctx, &rate); err != nil {
		return WithholdingRateResponse{}, fmt.Errorf("failed to create withholding rate: %w", err)
	}

	s.audit(ctx, userID, model.ActionCreateWithholdingRate, rate, req)

	return toRateResponse(rate), nil
}

func (s *rateService) UpdateRate(ctx context.Context, id string, req WithholdingRateRequest, userID string) (WithholdingRateResponse, error) {
	rateID, err := uuid.Parse(id)
	if err != nil {
		return WithholdingRateResponse{}, validationError("invalid withholding rate id")
	}

	rate, err := s.rateRepo.FindByID(ctx, rateID)
	if err != nil {
		return WithholdingRateResponse{}, notFound("withholding rate", err)
	}

	entry, err := ToRateEntry(req)
	if err != nil {
		return WithholdingRateResponse{}, err
	}

	// exclude self
	if err := s.checkDuplicate(ctx, entry, &rateID); err != nil {
		return WithholdingRateResponse{}, err
	}

	rate.ServiceType = string(entry.ServiceType)
	rate.Regime = string(entry.Regime)
	rate.TaxKind = string(entry.Kind)
	rate.Rate = entry.Rate
	rate.MinimumTaxable = entry.MinimumTaxable
	rate.Applicable = entry.Applicable
	rate.Description = req.Description

	if err := s.rateRepo.Update(ctx, rate); err != nil {
		return WithholdingRateResponse{}, fmt.Errorf("failed to update withholding rate: %w", err)
	}

	s.audit(ctx, userID, model.ActionUpdateWithholdingRate, *rate, req)

	return toRateResponse(*rate), nil
}

func (s *rateService) DeleteRate(ctx context.Context, id string, userID string) error {
	rateID, err := uuid.Parse(id)
	if err != nil {
		return validationError("invalid withholding rate id")
	}

	rate, err := s.rateRepo.FindByID(ctx, rateID)
	if err != nil {
		return notFound("withholding rate", err)
	}

	if err := s.rateRepo.Delete(ctx, rateID); err != nil {
		return fmt.Errorf("failed to delete withholding rate: %w", err)
	}

	s.audit(ctx, userID, model.ActionDeleteWithholdingRate, *rate, map[string]string{"deleted_id": id})
	return nil
}

func (s *rateService) SeedRates(ctx context.Context, entries []withholding.RateEntry, replace bool, userID string) (SeedRatesResponse, error) {
	if len(entries) == 0 {
		return SeedRatesResponse{}, validationError("no rates to seed")
	}
	// NewRateTable rejects malformed and duplicate rows before anything is written.
	if _, err := withholding.NewRateTable(entries); err != nil {
		return SeedRatesResponse{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rows := make([]model.WithholdingRate, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toRateModel(e, ""))
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		count, err := s.rateRepo.Count(txCtx)
		if err != nil {
			return fmt.Errorf("failed to count withholding rates: %w", err)
		}
		if count > 0 {
			if !replace {
				return fmt.Errorf("%w: withholding rate table already has %d rows", ErrConflict, count)
			}
			if err := s.rateRepo.DeleteAll(txCtx); err != nil {
				return fmt.Errorf("failed to clear withholding rates: %w", err)
			}
		}
		if err := s.rateRepo.CreateBatch(txCtx, rows); err != nil {
			return fmt.Errorf("failed to seed withholding rates: %w", err)
		}
		return nil
	})
	if err != nil {
		return SeedRatesResponse{}, err
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionSeedWithholdingRates, "", fmt.Sprintf("%d rates", len(rows)),
		map[string]interface{}{"inserted": len(rows), "replace": replace})

	return SeedRatesResponse{Inserted: len(rows), Replaced: replace}, nil
}

func (s *rateService) RateTable(ctx context.Context) (*withholding.RateTable, error) {
	rows, err := s.rateRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load withholding rates: %w", err)
	}

	entries := make([]withholding.RateEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, withholding.RateEntry{
			ServiceType:    withholding.ServiceType(r.ServiceType),
			Regime:         withholding.Regime(r.Regime),
			Kind:           withholding.TaxKind(r.TaxKind),
			Rate:           r.Rate,
			MinimumTaxable: r.MinimumTaxable,
			Applicable:     r.Applicable,
		})
	}

	table, err := withholding.NewRateTable(entries)
	if err != nil {
		return nil, fmt.Errorf("stored withholding rates are inconsistent: %w", err)
	}
	return table, nil
}

// --- Helpers ---

// ToRateEntry parses and validates a rate payload.
func ToRateEntry(req WithholdingRateRequest) (withholding.RateEntry, error) {
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		return withholding.RateEntry{}, validationError("invalid rate value %q", req.Rate)
	}

	minimum := decimal.Zero
	if req.MinimumTaxable != "" {
		minimum, err = decimal.NewFromString(req.MinimumTaxable)
		if err != nil {
			return withholding.RateEntry{}, validationError("invalid minimum_taxable value %q", req.MinimumTaxable)
		}
	}

	applicable := true
	if req.Applicable != nil {
		applicable = *req.Applicable
	}

	entry := withholding.RateEntry{
		ServiceType:    withholding.ServiceType(req.ServiceType),
		Regime:         withholding.Regime(req.Regime),
		Kind:           withholding.TaxKind(req.TaxKind),
		Rate:           rate,
		MinimumTaxable: minimum,
		Applicable:     applicable,
	}
	// A one-row table runs the same checks the resolver applies.
	if _, err := withholding.NewRateTable([]withholding.RateEntry{entry}); err != nil {
		return withholding.RateEntry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return entry, nil
}

func (s *rateService) checkDuplicate(ctx context.Context, e withholding.RateEntry, excludeID *uuid.UUID) error {
	count, err := s.rateRepo.CountByKey(ctx, string(e.ServiceType), string(e.Regime), string(e.Kind), excludeID)
	if err != nil {
		return fmt.Errorf("failed to check duplicate rate: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: a %s rate for %s/%s already exists", ErrConflict, e.Kind, e.ServiceType, e.Regime)
	}
	return nil
}

func (s *rateService) audit(ctx context.Context, userID, action string, r model.WithholdingRate, details interface{}) {
	name := fmt.Sprintf("%s/%s/%s %s", r.ServiceType, r.Regime, r.TaxKind, r.Rate.StringFixed(4))
	writeAuditLog(ctx, s.auditRepo, userID, action, r.ID.String(), name, details)
}

func toRateModel(e withholding.RateEntry, description string) model.WithholdingRate {
	return model.WithholdingRate{
		ServiceType:    string(e.ServiceType),
		Regime:         string(e.Regime),
		TaxKind:        string(e.Kind),
		Rate:           e.Rate,
		MinimumTaxable: e.MinimumTaxable,
		Applicable:     e.Applicable,
		Description:    description,
	}
}

func toRateResponse(r model.WithholdingRate) WithholdingRateResponse {
	return WithholdingRateResponse{
		ID:             r.ID.String(),
		ServiceType:    r.ServiceType,
		Regime:         r.Regime,
		TaxKind:        r.TaxKind,
		Rate:           r.Rate.String(),
		MinimumTaxable: r.MinimumTaxable.StringFixed(2),
		Applicable:     r.Applicable,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

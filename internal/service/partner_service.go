package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/internal/withholding"
	"taxaudit/pkg/pagination"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreatePartnerRequest struct {
	Name    string `json:"name" binding:"required"`
	Type    string `json:"type" binding:"required"`
	TaxCode string `json:"tax_code" binding:"required"`
	Regime  string `json:"regime"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type UpdatePartnerRequest struct {
	Name     *string `json:"name"`
	TaxCode  *string `json:"tax_code"`
	Regime   *string `json:"regime"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"is_active"`
}

type PartnerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	TaxCode   string    `json:"tax_code"`
	Regime    string    `json:"regime,omitempty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Interface ---

type PartnerService interface {
	CreatePartner(ctx context.Context, req CreatePartnerRequest, userID string) (PartnerResponse, error)
	UpdatePartner(ctx context.Context, id string, req UpdatePartnerRequest, userID string) (PartnerResponse, error)
	DeletePartner(ctx context.Context, id string, userID string) error
	GetPartner(ctx context.Context, id string) (PartnerResponse, error)
	GetPartners(ctx context.Context, partnerType, search string, page, limit int) ([]PartnerResponse, int64, error)
}

// --- Implementation ---

type partnerService struct {
	partnerRepo repository.PartnerRepository
	auditRepo   repository.AuditRepository
}

func NewPartnerService(partnerRepo repository.PartnerRepository, auditRepo repository.AuditRepository) PartnerService {
	return &partnerService{partnerRepo: partnerRepo, auditRepo: auditRepo}
}

var validPartnerTypes = map[string]bool{
	model.PartnerTypeClient:   true,
	model.PartnerTypeSupplier: true,
}

func (s *partnerService) CreatePartner(ctx context.Context, req CreatePartnerRequest, userID string) (PartnerResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return PartnerResponse{}, validationError("name is required")
	}
	if !validPartnerTypes[req.Type] {
		return PartnerResponse{}, validationError("type must be one of: CLIENT, SUPPLIER")
	}
	if strings.TrimSpace(req.TaxCode) == "" {
		return PartnerResponse{}, validationError("tax_code is required")
	}
	if err := validateRegime(req.Type, req.Regime); err != nil {
		return PartnerResponse{}, err
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return PartnerResponse{}, validationError("invalid email format")
		}
	}
	if err := s.checkTaxCode(ctx, req.TaxCode, nil); err != nil {
		return PartnerResponse{}, err
	}

	partner := &model.Partner{
		Name:     req.Name,
		Type:     req.Type,
		TaxCode:  req.TaxCode,
		Regime:   req.Regime,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: true,
	}
	if err := s.partnerRepo.Create(ctx, partner); err != nil {
		return PartnerResponse{}, fmt.Errorf("failed to create partner: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionCreatePartner, partner.ID.String(), partner.Name, req)

	return toPartnerResponse(*partner), nil
}

func (s *partnerService) UpdatePartner(ctx context.Context, id string, req UpdatePartnerRequest, userID string) (PartnerResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return PartnerResponse{}, validationError("invalid partner ID")
	}

	partner, err := s.partnerRepo.FindByID(ctx, uid)
	if err != nil {
		return PartnerResponse{}, notFound("partner", err)
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return PartnerResponse{}, validationError("name cannot be empty")
		}
		partner.Name = *req.Name
	}
	if req.Regime != nil {
		if err := validateRegime(partner.Type, *req.Regime); err != nil {
			return PartnerResponse{}, err
		}
		partner.Regime = *req.Regime
	}
	if req.Email != nil && *req.Email != "" {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return PartnerResponse{}, validationError("invalid email format")
		}
		partner.Email = *req.Email
	} else if req.Email != nil {
		partner.Email = ""
	}
	if req.TaxCode != nil {
		if strings.TrimSpace(*req.TaxCode) == "" {
			return PartnerResponse{}, validationError("tax_code cannot be empty")
		}
		if err := s.checkTaxCode(ctx, *req.TaxCode, &uid); err != nil {
			return PartnerResponse{}, err
		}
		partner.TaxCode = *req.TaxCode
	}
	if req.Phone != nil {
		partner.Phone = *req.Phone
	}
	if req.IsActive != nil {
		partner.IsActive = *req.IsActive
	}

	if err := s.partnerRepo.Update(ctx, partner); err != nil {
		return PartnerResponse{}, fmt.Errorf("failed to update partner: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionUpdatePartner, partner.ID.String(), partner.Name, req)

	return toPartnerResponse(*partner), nil
}

func (s *partnerService) DeletePartner(ctx context.Context, id string, userID string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return validationError("invalid partner ID")
	}

	partner, err := s.partnerRepo.FindByID(ctx, uid)
	if err != nil {
		return notFound("partner", err)
	}

	if err := s.partnerRepo.Delete(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete partner: %w", err)
	}

	writeAuditLog(ctx, s.auditRepo, userID, model.ActionDeletePartner, id, partner.Name, map[string]string{"deleted_id": id})
	return nil
}

func (s *partnerService) GetPartner(ctx context.Context, id string) (PartnerResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return PartnerResponse{}, validationError("invalid partner ID")
	}
	partner, err := s.partnerRepo.FindByID(ctx, uid)
	if err != nil {
		return PartnerResponse{}, notFound("partner", err)
	}
	return toPartnerResponse(*partner), nil
}

func (s *partnerService) GetPartners(ctx context.Context, partnerType, search string, page, limit int) ([]PartnerResponse, int64, error) {
	if partnerType != "" && !validPartnerTypes[partnerType] {
		return nil, 0, validationError("type must be one of: CLIENT, SUPPLIER")
	}

	pg := pagination.Normalize(page, limit)
	partners, total, err := s.partnerRepo.List(ctx, partnerType, search, pg.Page, pg.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list partners: %w", err)
	}

	res := make([]PartnerResponse, 0, len(partners))
	for _, p := range partners {
		res = append(res, toPartnerResponse(p))
	}
	return res, total, nil
}

// --- Helpers ---

// validateRegime requires a known regime for suppliers; clients carry none.
func validateRegime(partnerType, regime string) error {
	if partnerType != model.PartnerTypeSupplier {
		if regime != "" {
			return validationError("regime applies to suppliers only")
		}
		return nil
	}
	if !withholding.Regime(regime).Valid() {
		return validationError("unknown regime %q", regime)
	}
	return nil
}

func (s *partnerService) checkTaxCode(ctx context.Context, taxCode string, excludeID *uuid.UUID) error {
	count, err := s.partnerRepo.CountByTaxCode(ctx, taxCode, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check tax code: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: tax code %s is already registered", ErrConflict, taxCode)
	}
	return nil
}

func toPartnerResponse(p model.Partner) PartnerResponse {
	return PartnerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Type:      p.Type,
		TaxCode:   p.TaxCode,
		Regime:    p.Regime,
		Email:     p.Email,
		Phone:     p.Phone,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

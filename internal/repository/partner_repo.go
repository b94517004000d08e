package repository

import (
	"context"
	"strings"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PartnerRepository interface {
	Create(ctx context.Context, partner *model.Partner) error
	Update(ctx context.Context, partner *model.Partner) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error)
	CountByTaxCode(ctx context.Context, taxCode string, excludeID *uuid.UUID) (int64, error)
	List(ctx context.Context, partnerType, search string, page, limit int) ([]model.Partner, int64, error)
}

type partnerRepository struct {
	db *gorm.DB
}

func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

func (r *partnerRepository) Create(ctx context.Context, partner *model.Partner) error {
	return GetDB(ctx, r.db).Create(partner).Error
}

func (r *partnerRepository) Update(ctx context.Context, partner *model.Partner) error {
	return GetDB(ctx, r.db).Save(partner).Error
}

func (r *partnerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Partner{}).Error
}

func (r *partnerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	var partner model.Partner
	if err := GetDB(ctx, r.db).First(&partner, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *partnerRepository) CountByTaxCode(ctx context.Context, taxCode string, excludeID *uuid.UUID) (int64, error) {
	var count int64
	// deleted partners keep their tax code in the unique index
	query := GetDB(ctx, r.db).Unscoped().Model(&model.Partner{}).Where("tax_code = ?", taxCode)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *partnerRepository) List(ctx context.Context, partnerType, search string, page, limit int) ([]model.Partner, int64, error) {
	var partners []model.Partner
	var total int64

	filter := func(q *gorm.DB) *gorm.DB {
		if partnerType != "" {
			q = q.Where("type = ?", partnerType)
		}
		if search != "" {
			// LOWER/LIKE instead of ILIKE so the query also runs on SQLite.
			like := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR tax_code LIKE ? OR LOWER(email) LIKE ?", like, like, like)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := filter(db.Model(&model.Partner{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := filter(db.Model(&model.Partner{})).Order("name ASC").Offset(offset).Limit(limit).Find(&partners).Error; err != nil {
		return nil, 0, err
	}

	return partners, total, nil
}

package repository

import (
	"context"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WithholdingRateRepository interface {
	Create(ctx context.Context, rate *model.WithholdingRate) error
	CreateBatch(ctx context.Context, rates []model.WithholdingRate) error
	Update(ctx context.Context, rate *model.WithholdingRate) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.WithholdingRate, error)
	List(ctx context.Context, serviceType, regime string, page, limit int) ([]model.WithholdingRate, int64, error)
	ListAll(ctx context.Context) ([]model.WithholdingRate, error)
	Count(ctx context.Context) (int64, error)
	// CountByKey counts rows sharing the (service type, regime, kind) key,
	// optionally ignoring excludeID.
	CountByKey(ctx context.Context, serviceType, regime, taxKind string, excludeID *uuid.UUID) (int64, error)
}

type withholdingRateRepository struct {
	db *gorm.DB
}

func NewWithholdingRateRepository(db *gorm.DB) WithholdingRateRepository {
	return &withholdingRateRepository{db: db}
}

func (r *withholdingRateRepository) Create(ctx context.Context, rate *model.WithholdingRate) error {
	return GetDB(ctx, r.db).Create(rate).Error
}

func (r *withholdingRateRepository) CreateBatch(ctx context.Context, rates []model.WithholdingRate) error {
	if len(rates) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).CreateInBatches(&rates, 100).Error
}

func (r *withholdingRateRepository) Update(ctx context.Context, rate *model.WithholdingRate) error {
	return GetDB(ctx, r.db).Save(rate).Error
}

func (r *withholdingRateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.WithholdingRate{}).Error
}

func (r *withholdingRateRepository) DeleteAll(ctx context.Context) error {
	return GetDB(ctx, r.db).Where("1 = 1").Delete(&model.WithholdingRate{}).Error
}

func (r *withholdingRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.WithholdingRate, error) {
	var rate model.WithholdingRate
	if err := GetDB(ctx, r.db).First(&rate, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *withholdingRateRepository) List(ctx context.Context, serviceType, regime string, page, limit int) ([]model.WithholdingRate, int64, error) {
	var rates []model.WithholdingRate
	var total int64

	filter := func(q *gorm.DB) *gorm.DB {
		if serviceType != "" {
			q = q.Where("service_type = ?", serviceType)
		}
		if regime != "" {
			q = q.Where("regime = ?", regime)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := filter(db.Model(&model.WithholdingRate{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := filter(db.Model(&model.WithholdingRate{})).
		Order("service_type ASC, regime ASC, tax_kind ASC").
		Offset(offset).Limit(limit).Find(&rates).Error; err != nil {
		return nil, 0, err
	}

	return rates, total, nil
}

func (r *withholdingRateRepository) ListAll(ctx context.Context) ([]model.WithholdingRate, error) {
	var rates []model.WithholdingRate
	if err := GetDB(ctx, r.db).Order("service_type ASC, regime ASC, tax_kind ASC").Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *withholdingRateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.WithholdingRate{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *withholdingRateRepository) CountByKey(ctx context.Context, serviceType, regime, taxKind string, excludeID *uuid.UUID) (int64, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(&model.WithholdingRate{}).
		Where("service_type = ? AND regime = ? AND tax_kind = ?", serviceType, regime, taxKind)

	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

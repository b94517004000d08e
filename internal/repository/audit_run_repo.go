package repository

import (
	"context"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRunRepository interface {
	Create(ctx context.Context, run *model.AuditRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AuditRun, error)
	List(ctx context.Context, clientID *uuid.UUID, page, limit int) ([]model.AuditRun, int64, error)
}

type auditRunRepository struct {
	db *gorm.DB
}

func NewAuditRunRepository(db *gorm.DB) AuditRunRepository {
	return &auditRunRepository{db: db}
}

func (r *auditRunRepository) Create(ctx context.Context, run *model.AuditRun) error {
	return GetDB(ctx, r.db).Create(run).Error
}

func (r *auditRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AuditRun, error) {
	var run model.AuditRun
	if err := GetDB(ctx, r.db).Preload("Client").First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List omits the Details column; fetch a single run for its records.
func (r *auditRunRepository) List(ctx context.Context, clientID *uuid.UUID, page, limit int) ([]model.AuditRun, int64, error) {
	var runs []model.AuditRun
	var total int64

	filter := func(q *gorm.DB) *gorm.DB {
		if clientID != nil {
			q = q.Where("client_id = ?", *clientID)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := filter(db.Model(&model.AuditRun{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := filter(db.Model(&model.AuditRun{})).Omit("details").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StatisticsRepository interface {
	// PaymentsInRange returns payments dated within [start, end] with their supplier.
	PaymentsInRange(ctx context.Context, clientID *uuid.UUID, start, end time.Time) ([]model.Payment, error)
	GetRunSummary(ctx context.Context, clientID *uuid.UUID, start, end time.Time) (model.RunSummary, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) PaymentsInRange(ctx context.Context, clientID *uuid.UUID, start, end time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	q := GetDB(ctx, r.db).Preload("Supplier").
		Where("payment_date >= ? AND payment_date <= ?", start, end)
	if clientID != nil {
		q = q.Where("client_id = ?", *clientID)
	}
	if err := q.Order("payment_date ASC, document_number ASC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	return payments, nil
}

func (r *statisticsRepository) GetRunSummary(ctx context.Context, clientID *uuid.UUID, start, end time.Time) (model.RunSummary, error) {
	var summary model.RunSummary
	q := GetDB(ctx, r.db).Model(&model.AuditRun{}).
		Select("COUNT(*) AS runs, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed_runs, "+
			"COALESCE(SUM(non_compliant_count), 0) AS non_compliant", model.AuditRunStatusFailed).
		Where("created_at >= ? AND created_at <= ?", start, end)
	if clientID != nil {
		q = q.Where("client_id = ?", *clientID)
	}
	if err := q.Scan(&summary).Error; err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to summarize audit runs: %w", err)
	}
	return summary, nil
}

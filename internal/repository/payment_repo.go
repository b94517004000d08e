package repository

import (
	"context"
	"time"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentFilter narrows List. Zero fields are ignored.
type PaymentFilter struct {
	ClientID    *uuid.UUID
	SupplierID  *uuid.UUID
	ServiceType string
	From        *time.Time
	To          *time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	List(ctx context.Context, filter PaymentFilter, page, limit int) ([]model.Payment, int64, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Preload("Client").Preload("Supplier").First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter, page, limit int) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.ClientID != nil {
			q = q.Where("client_id = ?", *filter.ClientID)
		}
		if filter.SupplierID != nil {
			q = q.Where("supplier_id = ?", *filter.SupplierID)
		}
		if filter.ServiceType != "" {
			q = q.Where("service_type = ?", filter.ServiceType)
		}
		if filter.From != nil {
			q = q.Where("payment_date >= ?", *filter.From)
		}
		if filter.To != nil {
			q = q.Where("payment_date <= ?", *filter.To)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := apply(db.Model(&model.Payment{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := apply(db.Model(&model.Payment{})).Preload("Supplier").
		Order("payment_date DESC, document_number ASC").
		Offset(offset).Limit(limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// ListByClient returns every payment of a client with its supplier loaded, in
// a stable order so repeated audits list records identically.
func (r *paymentRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).Preload("Supplier").
		Where("client_id = ?", clientID).
		Order("payment_date ASC, document_number ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

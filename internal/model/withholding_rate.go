package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithholdingRate is one row of the stored rate table. A (service type,
// regime, tax kind) triple appears at most once.
type WithholdingRate struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceType    string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_rate_key" json:"service_type"`
	Regime         string          `gorm:"type:varchar(30);not null;uniqueIndex:idx_rate_key" json:"regime"`
	TaxKind        string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_rate_key" json:"tax_kind"` // IR, PIS, COFINS, CSLL, ISS
	Rate           decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"rate"`                            // e.g. 0.015 = 1.5%
	MinimumTaxable decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"minimum_taxable"`
	Applicable     bool            `gorm:"not null" json:"applicable"`
	Description    string          `gorm:"type:text" json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (r *WithholdingRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

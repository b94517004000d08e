package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is a client's disbursement to a supplier with the retentions the
// client recorded on it.
type Payment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client         *Partner        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	SupplierID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier       *Partner        `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	ServiceType    string          `gorm:"type:varchar(50);not null" json:"service_type"`
	DocumentNumber string          `gorm:"type:varchar(50);not null;index" json:"document_number"`
	PaymentDate    time.Time       `gorm:"type:date;not null;index" json:"payment_date"`
	GrossAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gross_amount"`
	WithheldIR     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"withheld_ir"`
	WithheldPIS    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"withheld_pis"`
	WithheldCOFINS decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"withheld_cofins"`
	WithheldCSLL   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"withheld_csll"`
	WithheldISS    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"withheld_iss"`
	NetAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_amount"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

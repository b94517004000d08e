package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartnerType enum constants
const (
	PartnerTypeClient   = "CLIENT"
	PartnerTypeSupplier = "SUPPLIER"
)

// Partner is an audited client of the office or one of that client's suppliers.
type Partner struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Type      string         `gorm:"type:varchar(20);not null;index" json:"type"` // CLIENT, SUPPLIER
	TaxCode   string         `gorm:"type:varchar(20);uniqueIndex" json:"tax_code"` // CNPJ
	Regime    string         `gorm:"type:varchar(30)" json:"regime,omitempty"`     // suppliers only
	Email     string         `gorm:"type:varchar(255)" json:"email"`
	Phone     string         `gorm:"type:varchar(50)" json:"phone"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuditRun status constants
const (
	AuditRunStatusCompleted = "COMPLETED"
	AuditRunStatusPartial   = "PARTIAL"
	AuditRunStatusFailed    = "FAILED"
)

// AuditRun stores the outcome of one withholding audit of a client. Details
// holds the serialized records, failures and aggregate so a report can be
// reproduced without re-running it.
type AuditRun struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client            *Partner        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Status            string          `gorm:"type:varchar(20);not null;index" json:"status"`
	TriggeredBy       string          `gorm:"type:varchar(100)" json:"triggered_by"`
	PaymentCount      int             `gorm:"not null;default:0" json:"payment_count"`
	NonCompliantCount int             `gorm:"not null;default:0" json:"non_compliant_count"`
	FailureCount      int             `gorm:"not null;default:0" json:"failure_count"`
	TotalGross        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_gross"`
	TotalExpected     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_expected"`
	TotalActual       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_actual"`
	TotalDelta        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_delta"`
	Tolerance         decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"tolerance"`
	Details           string          `gorm:"type:jsonb" json:"-"`
	ErrorMessage      string          `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt         time.Time       `gorm:"not null" json:"started_at"`
	FinishedAt        time.Time       `gorm:"not null" json:"finished_at"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
}

func (r *AuditRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

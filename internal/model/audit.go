package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreatePartner = "CREATE_PARTNER"
	ActionUpdatePartner = "UPDATE_PARTNER"
	ActionDeletePartner = "DELETE_PARTNER"

	ActionCreatePayment = "CREATE_PAYMENT"

	ActionCreateWithholdingRate = "CREATE_WITHHOLDING_RATE"
	ActionUpdateWithholdingRate = "UPDATE_WITHHOLDING_RATE"
	ActionDeleteWithholdingRate = "DELETE_WITHHOLDING_RATE"
	ActionSeedWithholdingRates  = "SEED_WITHHOLDING_RATES"

	ActionRunAudit = "RUN_AUDIT"

	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"
	ActionLogin      = "LOGIN"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(100);index" json:"user_id"` // token subject, empty if automated
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string    `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

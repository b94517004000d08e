package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"taxaudit/internal/logger"
	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"gorm.io/gorm"
)

// Sentinels the handlers map to HTTP status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}

// writeAuditLog is best-effort: the operation already succeeded.
func writeAuditLog(ctx context.Context, repo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}

	if err := repo.Log(ctx, &entry); err != nil {
		log := logger.WithComponent("audit-log")
		log.Warn().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}

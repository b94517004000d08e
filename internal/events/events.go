package events

import (
	"context"
	"errors"
	"time"
)

const TypeAuditCompleted = "audit.completed"

// AuditCompleted is emitted after an audit run has been stored.
type AuditCompleted struct {
	Type              string    `json:"type"`
	RunID             string    `json:"run_id"`
	ClientID          string    `json:"client_id"`
	Status            string    `json:"status"`
	PaymentCount      int       `json:"payment_count"`
	NonCompliantCount int       `json:"non_compliant_count"`
	FailureCount      int       `json:"failure_count"`
	TotalDelta        string    `json:"total_delta"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Publisher delivers audit events to listeners.
type Publisher interface {
	PublishAuditCompleted(ctx context.Context, evt AuditCompleted) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) PublishAuditCompleted(ctx context.Context, evt AuditCompleted) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishAuditCompleted(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishAuditCompleted(context.Context, AuditCompleted) error { return nil }

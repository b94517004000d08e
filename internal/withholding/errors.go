package withholding

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownRule is matched by UnknownRuleError.
	ErrUnknownRule = errors.New("no withholding rule for service type and regime")

	// ErrInvalidAmount is matched by InvalidAmountError.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrSourceUnavailable is matched by SourceUnavailableError.
	ErrSourceUnavailable = errors.New("payment source unavailable")

	// ErrInvalidRateEntry is returned by NewRateTable for malformed rows.
	ErrInvalidRateEntry = errors.New("invalid rate entry")
)

// UnknownRuleError is returned when the rate table has no entry for a
// (service type, regime) pair.
type UnknownRuleError struct {
	ServiceType ServiceType
	Regime      Regime
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("withholding: no rule for service type %q and regime %q", e.ServiceType, e.Regime)
}

func (e *UnknownRuleError) Is(target error) bool {
	return target == ErrUnknownRule
}

// InvalidAmountError is returned for a negative gross amount.
type InvalidAmountError struct {
	PaymentID string
	Amount    decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("withholding: payment %s has invalid gross amount %s", e.PaymentID, e.Amount.String())
}

func (e *InvalidAmountError) Is(target error) bool {
	return target == ErrInvalidAmount
}

// SourceUnavailableError wraps a failure to list a client's payments.
type SourceUnavailableError struct {
	ClientID string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("withholding: payments for client %s unavailable: %v", e.ClientID, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// failureFor converts a per-payment error into a failed entry.
func failureFor(p Payment, err error) FailedEntry {
	kind := FailureOther
	switch {
	case errors.Is(err, ErrUnknownRule):
		kind = FailureUnknownRule
	case errors.Is(err, ErrInvalidAmount):
		kind = FailureInvalidAmount
	}
	return FailedEntry{
		PaymentID:      p.ID,
		DocumentNumber: p.DocumentNumber,
		Kind:           kind,
		Message:        err.Error(),
	}
}

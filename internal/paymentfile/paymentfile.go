// Package paymentfile reads payment exports for offline audits.
//
// An export is a JSON document with a top-level "payments" array, or the bare
// array itself. Each element uses the field names of withholding.Payment;
// amounts may be JSON numbers or strings.
package paymentfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"taxaudit/internal/withholding"
)

type document struct {
	Payments []withholding.Payment `json:"payments"`
}

// Source serves payments loaded from an export.
type Source struct {
	payments []withholding.Payment
}

var _ withholding.PaymentSource = (*Source)(nil)

// Open reads the export at path.
func Open(path string) (*Source, error) {
	const op = "paymentfile.Open"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	src, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return src, nil
}

// Read decodes an export from r.
func Read(r io.Reader) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payment export")
	}

	var payments []withholding.Payment
	if data[0] == '[' {
		err = json.Unmarshal(data, &payments)
	} else {
		var doc document
		err = json.Unmarshal(data, &doc)
		payments = doc.Payments
	}
	if err != nil {
		return nil, fmt.Errorf("decode payment export: %w", err)
	}
	return &Source{payments: payments}, nil
}

// ListPayments returns the payments of clientID in file order.
func (s *Source) ListPayments(ctx context.Context, clientID string) ([]withholding.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]withholding.Payment, 0)
	for _, p := range s.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out, nil
}

// All returns every payment in file order.
func (s *Source) All() []withholding.Payment {
	return append([]withholding.Payment(nil), s.payments...)
}

// Clients returns the distinct client ids in order of first appearance.
func (s *Source) Clients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.payments {
		if !seen[p.ClientID] {
			seen[p.ClientID] = true
			out = append(out, p.ClientID)
		}
	}
	return out
}

package withholding

import (
	"context"
	"errors"
	"runtime"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PaymentSource lists the payments of a client.
type PaymentSource interface {
	ListPayments(ctx context.Context, clientID string) ([]Payment, error)
}

// PaymentSourceFunc adapts a function to PaymentSource.
type PaymentSourceFunc func(ctx context.Context, clientID string) ([]Payment, error)

func (f PaymentSourceFunc) ListPayments(ctx context.Context, clientID string) ([]Payment, error) {
	return f(ctx, clientID)
}

var errNoSource = errors.New("no payment source configured")

// Engine reconciles payments against a rate table. It holds no per-run state
// and may be shared by concurrent audits.
type Engine struct {
	resolver  Resolver
	source    PaymentSource
	tolerance decimal.Decimal
	workers   int
}

type Option func(*Engine)

// WithTolerance sets the absolute per-kind delta still considered compliant.
func WithTolerance(tol decimal.Decimal) Option {
	return func(e *Engine) {
		e.tolerance = tol.Abs()
	}
}

// WithWorkers bounds the number of payments reconciled concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithSource(src PaymentSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

func NewEngine(resolver Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:  resolver,
		tolerance: DefaultTolerance,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Tolerance() decimal.Decimal { return e.tolerance }

// Reconcile resolves the rule for p, computes the expected withholding and
// classifies the difference. Resolver and calculator errors are returned as is.
func (e *Engine) Reconcile(p Payment) (AuditRecord, error) {
	rule, err := e.resolver.Resolve(p.ServiceType, p.SupplierRegime)
	if err != nil {
		return AuditRecord{}, err
	}
	return reconcile(p, rule, e.tolerance)
}

type runConfig struct {
	allowPartial bool
}

type RunOption func(*runConfig)

// AllowPartial makes a cancelled run return the entries completed so far,
// flagged Partial, together with the context error.
func AllowPartial() RunOption {
	return func(c *runConfig) {
		c.allowPartial = true
	}
}

// RunAudit fetches the payments of clientID once and reconciles them. A fetch
// failure aborts the run with a *SourceUnavailableError.
func (e *Engine) RunAudit(ctx context.Context, clientID string, opts ...RunOption) (*AuditResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.source == nil {
		return nil, &SourceUnavailableError{ClientID: clientID, Err: errNoSource}
	}

	payments, err := e.source.ListPayments(ctx, clientID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &SourceUnavailableError{ClientID: clientID, Err: err}
	}

	res, err := e.ReconcileAll(ctx, payments, opts...)
	if res != nil {
		res.ClientID = clientID
	}
	return res, err
}

type outcome struct {
	record AuditRecord
	err    error
	done   bool
}

// ReconcileAll reconciles payments on a bounded pool. Records and failures
// keep the input order. Cancellation stops dispatching new payments and lets
// in-flight ones finish.
func (e *Engine) ReconcileAll(ctx context.Context, payments []Payment, opts ...RunOption) (*AuditResult, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	outcomes := make([]outcome, len(payments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range payments {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := e.Reconcile(payments[i])
			outcomes[i] = outcome{record: rec, err: err, done: true}
			return nil
		})
	}
	// Per-payment errors are carried in outcomes; the group never fails.
	_ = g.Wait()

	ctxErr := ctx.Err()
	if ctxErr != nil && !cfg.allowPartial {
		return nil, ctxErr
	}

	res := &AuditResult{
		Records:  make([]AuditRecord, 0, len(payments)),
		Failures: []FailedEntry{},
		Partial:  ctxErr != nil,
	}
	for i, o := range outcomes {
		switch {
		case !o.done:
			continue
		case o.err != nil:
			res.Failures = append(res.Failures, failureFor(payments[i], o.err))
		default:
			res.Records = append(res.Records, o.record)
		}
	}
	res.FailureCount = len(res.Failures)
	res.Aggregate = Aggregate(res.Records)

	return res, ctxErr
}

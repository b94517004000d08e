package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxaudit/internal/events"
	"taxaudit/internal/logger"
	"taxaudit/internal/metrics"
	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/internal/withholding"
	"taxaudit/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type AuditRunResponse struct {
	ID                string `json:"id"`
	ClientID          string `json:"client_id"`
	ClientName        string `json:"client_name,omitempty"`
	Status            string `json:"status"`
	TriggeredBy       string `json:"triggered_by"`
	PaymentCount      int    `json:"payment_count"`
	NonCompliantCount int    `json:"non_compliant_count"`
	FailureCount      int    `json:"failure_count"`
	TotalGross        string `json:"total_gross"`
	TotalExpected     string `json:"total_expected"`
	TotalActual       string `json:"total_actual"`
	TotalDelta        string `json:"total_delta"`
	Tolerance         string `json:"tolerance"`
	ErrorMessage      string `json:"error_message,omitempty"`
	StartedAt         string `json:"started_at"`
	FinishedAt        string `json:"finished_at"`
}

// AuditRunDetailResponse is a run with its per-payment records.
type AuditRunDetailResponse struct {
	AuditRunResponse
	Records   []withholding.AuditRecord  `json:"records"`
	Failures  []withholding.FailedEntry  `json:"failures"`
	Aggregate withholding.AuditAggregate `json:"aggregate"`
}

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditSettings tune every engine the service builds. A zero Tolerance
// requires exact matches.
type AuditSettings struct {
	Workers   int
	Tolerance decimal.Decimal
}

// runDetails is the JSON stored in audit_runs.details.
type runDetails struct {
	Records   []withholding.AuditRecord  `json:"records"`
	Failures  []withholding.FailedEntry  `json:"failures"`
	Aggregate withholding.AuditAggregate `json:"aggregate"`
}

// --- Interface ---

type AuditService interface {
	// RunClientAudit reconciles every stored payment of a client against the
	// current rate table and stores the run.
	RunClientAudit(ctx context.Context, clientID string, allowPartial bool, userID string) (AuditRunDetailResponse, error)
	// ReconcilePayment previews the audit record of one stored payment.
	ReconcilePayment(ctx context.Context, paymentID string) (withholding.AuditRecord, error)
	GetRuns(ctx context.Context, clientID string, page, limit int) ([]AuditRunResponse, int64, error)
	GetRun(ctx context.Context, id string) (AuditRunDetailResponse, error)
	GetAuditLogs(ctx context.Context, action, entityID string, page, limit int) ([]AuditLogResponse, int64, error)
}

// --- Implementation ---

type auditService struct {
	runRepo     repository.AuditRunRepository
	auditRepo   repository.AuditRepository
	partnerRepo repository.PartnerRepository
	paymentRepo repository.PaymentRepository
	rates       RateService
	source      withholding.PaymentSource
	publisher   events.Publisher
	metrics     *metrics.AuditMetrics
	settings    AuditSettings
}

// NewAuditService creates a new AuditService instance. publisher and m may be nil.
func NewAuditService(
	runRepo repository.AuditRunRepository,
	auditRepo repository.AuditRepository,
	partnerRepo repository.PartnerRepository,
	paymentRepo repository.PaymentRepository,
	rates RateService,
	publisher events.Publisher,
	m *metrics.AuditMetrics,
	settings AuditSettings,
) AuditService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &auditService{
		runRepo:     runRepo,
		auditRepo:   auditRepo,
		partnerRepo: partnerRepo,
		paymentRepo: paymentRepo,
		rates:       rates,
		source:      repository.NewPaymentSource(paymentRepo),
		publisher:   publisher,
		metrics:     m,
		settings:    settings,
	}
}

func (s *auditService) RunClientAudit(ctx context.Context, clientID string, allowPartial bool, userID string) (AuditRunDetailResponse, error) {
	log := logger.WithComponent("audit")

	cid, err := uuid.Parse(clientID)
	if err != nil {
		return AuditRunDetailResponse{}, validationError("invalid client ID")
	}
	client, err := s.partnerRepo.FindByID(ctx, cid)
	if err != nil {
		return AuditRunDetailResponse{}, notFound("client", err)
	}
	if client.Type != model.PartnerTypeClient {
		return AuditRunDetailResponse{}, validationError("partner %s is not a client", clientID)
	}

	engine, err := s.engine(ctx)
	if err != nil {
		return AuditRunDetailResponse{}, err
	}

	var opts []withholding.RunOption
	if allowPartial {
		opts = append(opts, withholding.AllowPartial())
	}

	started := time.Now()
	log.Info().Str("client_id", clientID).Int("workers", s.settings.Workers).Msg("audit run started")

	res, runErr := engine.RunAudit(ctx, cid.String(), opts...)
	finished := time.Now()

	// The request context may already be cancelled; the outcome is still stored.
	storeCtx := context.WithoutCancel(ctx)

	partial := res != nil && res.Partial
	if runErr != nil && !partial {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			s.metrics.ObserveRun(metrics.OutcomeCancelled, nil, finished.Sub(started))
			log.Warn().Err(runErr).Str("client_id", clientID).Msg("audit run cancelled")
			return AuditRunDetailResponse{}, fmt.Errorf("audit run cancelled: %w", runErr)
		}

		s.metrics.ObserveRun(metrics.OutcomeFailed, nil, finished.Sub(started))
		log.Error().Err(runErr).Str("client_id", clientID).Msg("audit run failed")

		run := &model.AuditRun{
			ClientID:     cid,
			Status:       model.AuditRunStatusFailed,
			TriggeredBy:  userID,
			Tolerance:    engine.Tolerance(),
			ErrorMessage: runErr.Error(),
			Details:      "{}",
			StartedAt:    started,
			FinishedAt:   finished,
		}
		if err := s.runRepo.Create(storeCtx, run); err != nil {
			log.Error().Err(err).Msg("failed to store failed audit run")
		}
		return AuditRunDetailResponse{}, fmt.Errorf("audit run failed: %w", runErr)
	}

	status, outcome := model.AuditRunStatusCompleted, metrics.OutcomeCompleted
	if partial {
		status, outcome = model.AuditRunStatusPartial, metrics.OutcomePartial
		log.Warn().Err(runErr).Str("client_id", clientID).Int("records", len(res.Records)).Msg("audit run interrupted, keeping partial result")
	}

	details, err := json.Marshal(runDetails{Records: res.Records, Failures: res.Failures, Aggregate: res.Aggregate})
	if err != nil {
		return AuditRunDetailResponse{}, fmt.Errorf("failed to encode audit details: %w", err)
	}

	agg := res.Aggregate
	run := &model.AuditRun{
		ClientID:          cid,
		Status:            status,
		TriggeredBy:       userID,
		PaymentCount:      agg.PaymentCount,
		NonCompliantCount: agg.NonCompliantCount,
		FailureCount:      res.FailureCount,
		TotalGross:        agg.TotalGross,
		TotalExpected:     agg.TotalExpected.Sum(),
		TotalActual:       agg.TotalActual.Sum(),
		TotalDelta:        agg.TotalDelta.Sum(),
		Tolerance:         engine.Tolerance(),
		Details:           string(details),
		StartedAt:         started,
		FinishedAt:        finished,
	}
	if err := s.runRepo.Create(storeCtx, run); err != nil {
		return AuditRunDetailResponse{}, fmt.Errorf("failed to store audit run: %w", err)
	}
	run.Client = client

	s.metrics.ObserveRun(outcome, res, finished.Sub(started))

	evt := events.AuditCompleted{
		Type:              events.TypeAuditCompleted,
		RunID:             run.ID.String(),
		ClientID:          cid.String(),
		Status:            status,
		PaymentCount:      agg.PaymentCount,
		NonCompliantCount: agg.NonCompliantCount,
		FailureCount:      res.FailureCount,
		TotalDelta:        run.TotalDelta.StringFixed(2),
		FinishedAt:        finished,
	}
	if err := s.publisher.PublishAuditCompleted(storeCtx, evt); err != nil {
		log.Warn().Err(err).Str("run_id", evt.RunID).Msg("failed to publish audit event")
	}

	writeAuditLog(storeCtx, s.auditRepo, userID, model.ActionRunAudit, run.ID.String(), client.Name, map[string]interface{}{
		"client_id":           cid.String(),
		"status":              status,
		"payment_count":       agg.PaymentCount,
		"non_compliant_count": agg.NonCompliantCount,
		"failure_count":       res.FailureCount,
	})

	log.Info().
		Str("client_id", clientID).
		Str("run_id", evt.RunID).
		Str("status", status).
		Int("payments", agg.PaymentCount).
		Int("non_compliant", agg.NonCompliantCount).
		Int("failures", res.FailureCount).
		Dur("elapsed", finished.Sub(started)).
		Msg("audit run finished")

	return AuditRunDetailResponse{
		AuditRunResponse: toAuditRunResponse(*run),
		Records:          res.Records,
		Failures:         res.Failures,
		Aggregate:        agg,
	}, nil
}

func (s *auditService) ReconcilePayment(ctx context.Context, paymentID string) (withholding.AuditRecord, error) {
	pid, err := uuid.Parse(paymentID)
	if err != nil {
		return withholding.AuditRecord{}, validationError("invalid payment ID")
	}
	payment, err := s.paymentRepo.FindByID(ctx, pid)
	if err != nil {
		return withholding.AuditRecord{}, notFound("payment", err)
	}

	engine, err := s.engine(ctx)
	if err != nil {
		return withholding.AuditRecord{}, err
	}
	return engine.Reconcile(repository.ToWithholdingPayment(payment))
}

func (s *auditService) GetRuns(ctx context.Context, clientID string, page, limit int) ([]AuditRunResponse, int64, error) {
	var filter *uuid.UUID
	if clientID != "" {
		cid, err := uuid.Parse(clientID)
		if err != nil {
			return nil, 0, validationError("invalid client ID")
		}
		filter = &cid
	}

	pg := pagination.Normalize(page, limit)
	runs, total, err := s.runRepo.List(ctx, filter, pg.Page, pg.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit runs: %w", err)
	}

	res := make([]AuditRunResponse, 0, len(runs))
	for _, r := range runs {
		res = append(res, toAuditRunResponse(r))
	}
	return res, total, nil
}

func (s *auditService) GetRun(ctx context.Context, id string) (AuditRunDetailResponse, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return AuditRunDetailResponse{}, validationError("invalid audit run ID")
	}
	run, err := s.runRepo.FindByID(ctx, rid)
	if err != nil {
		return AuditRunDetailResponse{}, notFound("audit run", err)
	}

	resp := AuditRunDetailResponse{
		AuditRunResponse: toAuditRunResponse(*run),
		Records:          []withholding.AuditRecord{},
		Failures:         []withholding.FailedEntry{},
	}
	if run.Details != "" {
		var d runDetails
		if err := json.Unmarshal([]byte(run.Details), &d); err != nil {
			return AuditRunDetailResponse{}, fmt.Errorf("failed to decode audit details: %w", err)
		}
		if d.Records != nil {
			resp.Records = d.Records
		}
		if d.Failures != nil {
			resp.Failures = d.Failures
		}
		resp.Aggregate = d.Aggregate
	}
	return resp, nil
}

// GetAuditLogs lists change-log entries newest first.
func (s *auditService) GetAuditLogs(ctx context.Context, action, entityID string, page, limit int) ([]AuditLogResponse, int64, error) {
	pg := pagination.Normalize(page, limit)
	logs, total, err := s.auditRepo.List(ctx, action, entityID, pg.Page, pg.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     l.UserID,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res, total, nil
}

// --- Helpers ---

// engine is built per call so rate edits apply to the next run.
func (s *auditService) engine(ctx context.Context) (*withholding.Engine, error) {
	table, err := s.rates.RateTable(ctx)
	if err != nil {
		return nil, err
	}
	return withholding.NewEngine(table,
		withholding.WithTolerance(s.settings.Tolerance),
		withholding.WithWorkers(s.settings.Workers),
		withholding.WithSource(s.source),
	), nil
}

func toAuditRunResponse(r model.AuditRun) AuditRunResponse {
	resp := AuditRunResponse{
		ID:                r.ID.String(),
		ClientID:          r.ClientID.String(),
		Status:            r.Status,
		TriggeredBy:       r.TriggeredBy,
		PaymentCount:      r.PaymentCount,
		NonCompliantCount: r.NonCompliantCount,
		FailureCount:      r.FailureCount,
		TotalGross:        r.TotalGross.StringFixed(2),
		TotalExpected:     r.TotalExpected.StringFixed(2),
		TotalActual:       r.TotalActual.StringFixed(2),
		TotalDelta:        r.TotalDelta.StringFixed(2),
		Tolerance:         r.Tolerance.String(),
		ErrorMessage:      r.ErrorMessage,
		StartedAt:         r.StartedAt.Format(time.RFC3339),
		FinishedAt:        r.FinishedAt.Format(time.RFC3339),
	}
	if r.Client != nil {
		resp.ClientName = r.Client.Name
	}
	return resp
}

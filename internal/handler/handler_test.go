package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taxaudit/internal/database"
	"taxaudit/internal/middleware"
	"taxaudit/internal/repository"
	"taxaudit/internal/service"
	"taxaudit/internal/withholding"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Meta       *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
	Error string `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetJWTSecret(testSecret)

	db, err := database.NewSQLiteConnection("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	partnerRepo := repository.NewPartnerRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	rates := service.NewRateService(repository.NewWithholdingRateRepository(db), auditRepo, txManager)
	_, err = rates.SeedRates(context.Background(), withholding.DefaultRateEntries(), false, "")
	require.NoError(t, err)

	audits := service.NewAuditService(repository.NewAuditRunRepository(db), auditRepo, partnerRepo, paymentRepo,
		rates, nil, nil, service.AuditSettings{Workers: 2, Tolerance: withholding.DefaultTolerance})

	r := gin.New()
	api := r.Group("")
	NewPartnerHandler(service.NewPartnerService(partnerRepo, auditRepo)).RegisterRoutes(api)
	NewPaymentHandler(service.NewPaymentService(paymentRepo, partnerRepo, auditRepo, txManager), audits).RegisterRoutes(api)
	NewRateHandler(rates).RegisterRoutes(api)
	NewAuditHandler(audits).RegisterRoutes(api)
	NewUserHandler(service.NewUserService(repository.NewUserRepository(db), auditRepo, time.Hour)).RegisterRoutes(api)
	NewStatisticsHandler(service.NewStatisticsService(repository.NewStatisticsRepository(db))).RegisterRoutes(api)
	return r
}

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  role + "-user",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, r *gin.Engine, method, path, role string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestAuditFlow(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/partners", middleware.RoleAuditor, service.CreatePartnerRequest{
		Name: "Padaria Central", Type: "CLIENT", TaxCode: "11.111.111/0001-11",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var client service.PartnerResponse
	require.NoError(t, json.Unmarshal(env.Data, &client))

	code, env = do(t, r, http.MethodPost, "/api/partners", middleware.RoleAuditor, service.CreatePartnerRequest{
		Name: "Consultoria Alfa", Type: "SUPPLIER", TaxCode: "22.222.222/0001-22", Regime: "lucro_real",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var supplier service.PartnerResponse
	require.NoError(t, json.Unmarshal(env.Data, &supplier))

	payment := service.CreatePaymentRequest{
		ClientID: client.ID.String(), SupplierID: supplier.ID.String(), ServiceType: "consultoria",
		DocumentNumber: "NF-1", PaymentDate: "2024-03-15", GrossAmount: "10000.00",
		WithheldPIS: "65.00", WithheldCOFINS: "300.00", WithheldCSLL: "100.00", WithheldISS: "500.00",
		NetAmount: "9035.00",
	}
	code, env = do(t, r, http.MethodPost, "/api/payments", middleware.RoleAuditor, payment)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var created service.PaymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = do(t, r, http.MethodGet, "/api/payments/"+created.ID+"/reconciliation", middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var record withholding.AuditRecord
	require.NoError(t, json.Unmarshal(env.Data, &record))
	assert.Equal(t, withholding.UnderWithheld, record.Classification)

	// viewers read, they do not run audits
	code, _ = do(t, r, http.MethodPost, "/api/audits/clients/"+client.ID.String()+"/run", middleware.RoleViewer, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = do(t, r, http.MethodPost, "/api/audits/clients/"+client.ID.String()+"/run", middleware.RoleAuditor, nil)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var run service.AuditRunDetailResponse
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, 1, run.PaymentCount)
	assert.Equal(t, 1, run.NonCompliantCount)
	assert.Equal(t, "auditor-user", run.TriggeredBy)

	code, env = do(t, r, http.MethodGet, "/api/audits/runs?client_id="+client.ID.String(), middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.EqualValues(t, 1, env.Meta.Total)

	code, env = do(t, r, http.MethodGet, "/api/audits/runs/"+run.ID, middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, code)
	var stored service.AuditRunDetailResponse
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Len(t, stored.Records, 1)

	code, env = do(t, r, http.MethodGet, "/api/statistics?from=2024-01-01&to=2024-12-31&client_id="+client.ID.String(), middleware.RoleViewer, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var stats service.StatisticsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Len(t, stats.Periods, 1)
	assert.Equal(t, "2024-03", stats.Periods[0].Period)
	require.Len(t, stats.TopSuppliers, 1)
	assert.Equal(t, "Consultoria Alfa", stats.TopSuppliers[0].SupplierName)

	code, _ = do(t, r, http.MethodGet, "/api/audit-logs?action=RUN_AUDIT", middleware.RoleAuditor, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, env = do(t, r, http.MethodGet, "/api/audit-logs?action=RUN_AUDIT", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Meta.Total)
}

func TestErrorStatuses(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodGet, "/api/partners", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, r, http.MethodPost, "/api/audits/clients/"+uuid.NewString()+"/run", middleware.RoleAuditor, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPost, "/api/audits/clients/not-a-uuid/run", middleware.RoleAuditor, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/api/withholding-rates/seed", middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env := do(t, r, http.MethodPost, "/api/withholding-rates/seed", middleware.RoleAdmin, service.SeedRatesRequest{Replace: true})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, _ = do(t, r, http.MethodPost, "/api/withholding-rates", middleware.RoleAdmin, service.WithholdingRateRequest{
		ServiceType: "consultoria", Regime: "lucro_real", TaxKind: "IR", Rate: "0.015",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodPost, "/api/payments", middleware.RoleAuditor, map[string]string{"client_id": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", service.ErrConflict), http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{&withholding.UnknownRuleError{ServiceType: "x"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("audit run failed: %w", &withholding.SourceUnavailableError{ClientID: "c", Err: errors.New("down")}), http.StatusServiceUnavailable},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestWriteError_LogsServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	for _, err := range []error{fmt.Errorf("x: %w", service.ErrNotFound), errors.New("boom")} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, err)
		assert.Equal(t, statusFor(err), w.Code)
	}

	// only the 500 is logged
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "http", entry["component"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoginFlow(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/users", middleware.RoleAdmin, service.CreateUserRequest{
		Username: "ana", Email: "ana@example.com", Password: "s3cret-pass", Role: middleware.RoleAuditor,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var user service.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &user))

	code, _ = do(t, r, http.MethodPost, "/api/auth/login", "", service.LoginUserRequest{Email: "ana@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = do(t, r, http.MethodPost, "/api/auth/login", "", service.LoginUserRequest{Email: "ana@example.com", Password: "s3cret-pass"})
	require.Equal(t, http.StatusOK, code, env.Error)
	var tok service.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	assert.Equal(t, middleware.RoleAuditor, tok.Role)

	// the issued token is accepted by the role middleware
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), user.ID.String())

	code, _ = do(t, r, http.MethodGet, "/api/users", middleware.RoleAuditor, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

package handler

import (
	"net/http"

	"taxaudit/internal/middleware"
	"taxaudit/internal/service"
	"taxaudit/pkg/pagination"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
	auditService   service.AuditService
}

func NewPaymentHandler(paymentService service.PaymentService, auditService service.AuditService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, auditService: auditService}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/api/payments")
	payments.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor, middleware.RoleViewer))
	{
		payments.GET("", h.ListPayments)
		payments.GET("/:id", h.GetPayment)
		payments.GET("/:id/reconciliation", h.ReconcilePayment)
		payments.POST("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor), h.CreatePayment)
	}
}

// ListPayments returns paginated payments
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        page          query  int     false  "Page number (default: 1)"
// @Param        limit         query  int     false  "Items per page (default: 20)"
// @Param        client_id     query  string  false  "Filter by client"
// @Param        supplier_id   query  string  false  "Filter by supplier"
// @Param        service_type  query  string  false  "Filter by service type"
// @Param        from          query  string  false  "Payment date from (YYYY-MM-DD)"
// @Param        to            query  string  false  "Payment date to (YYYY-MM-DD)"
// @Success      200  {object}  response.Response
// @Router       /api/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.PaymentFilterRequest{
		ClientID:    c.Query("client_id"),
		SupplierID:  c.Query("supplier_id"),
		ServiceType: c.Query("service_type"),
		From:        c.Query("from"),
		To:          c.Query("to"),
	}

	payments, total, err := h.paymentService.GetPayments(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, payments, p.Page, p.Limit, total))
}

// GetPayment returns one payment
// @Summary      Get payment
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}

// CreatePayment records a payment with its withheld amounts
// @Summary      Create payment
// @Description  Net amount must equal gross minus the withheld amounts.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreatePaymentRequest  true  "Payment payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// ReconcilePayment previews the audit record of one payment without storing a run
// @Summary      Reconcile payment
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  response.Response{data=withholding.AuditRecord}
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/payments/{id}/reconciliation [get]
func (h *PaymentHandler) ReconcilePayment(c *gin.Context) {
	record, err := h.auditService.ReconcilePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

package handler

import (
	"net/http"
	"strconv"

	"taxaudit/internal/middleware"
	"taxaudit/internal/service"
	"taxaudit/pkg/pagination"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audits := router.Group("/api/audits")
	{
		audits.POST("/clients/:clientId/run", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor), h.RunClientAudit)
		audits.GET("/runs", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor, middleware.RoleViewer), h.GetRuns)
		audits.GET("/runs/:id", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor, middleware.RoleViewer), h.GetRun)
	}

	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(middleware.RoleAdmin)) // Protect history logs
	{
		group.GET("", h.GetAuditLogs)
	}
}

// RunClientAudit reconciles every payment of a client and stores the run
// @Summary      Run withholding audit
// @Description  Per-payment failures are listed in the result; an unreachable payment store fails the whole run with 503.
// @Tags         audits
// @Security     BearerAuth
// @Produce      json
// @Param        clientId  path   string  true   "Client ID"
// @Param        partial   query  bool    false  "Return the records finished so far if the request is cancelled"
// @Success      201  {object}  response.Response{data=service.AuditRunDetailResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /api/audits/clients/{clientId}/run [post]
func (h *AuditHandler) RunClientAudit(c *gin.Context) {
	partial, _ := strconv.ParseBool(c.DefaultQuery("partial", "false"))

	run, err := h.auditService.RunClientAudit(c.Request.Context(), c.Param("clientId"), partial, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, run))
}

// GetRuns lists stored audit runs, newest first
// @Summary      List audit runs
// @Tags         audits
// @Security     BearerAuth
// @Produce      json
// @Param        page       query  int     false  "Page number (default: 1)"
// @Param        limit      query  int     false  "Items per page (default: 20)"
// @Param        client_id  query  string  false  "Filter by client"
// @Success      200  {object}  response.Response
// @Router       /api/audits/runs [get]
func (h *AuditHandler) GetRuns(c *gin.Context) {
	p := pagination.Parse(c)

	runs, total, err := h.auditService.GetRuns(c.Request.Context(), c.Query("client_id"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, runs, p.Page, p.Limit, total))
}

// GetRun returns one stored run with its records and failures
// @Summary      Get audit run
// @Tags         audits
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Run ID"
// @Success      200  {object}  response.Response{data=service.AuditRunDetailResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/audits/runs/{id} [get]
func (h *AuditHandler) GetRun(c *gin.Context) {
	run, err := h.auditService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, run))
}

// GetAuditLogs retrieves paginated change-log entries
// @Summary      Get audit logs
// @Description  Lists who changed partners, payments and rates, and who ran audits
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Param        action     query     string  false  "Filter by action, e.g. RUN_AUDIT"
// @Param        entity_id  query     string  false  "Filter by entity"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), c.Query("entity_id"), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, p.Page, p.Limit, total))
}

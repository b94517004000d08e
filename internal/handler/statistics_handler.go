package handler

import (
	"net/http"

	"taxaudit/internal/middleware"
	"taxaudit/internal/service"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor, middleware.RoleViewer), h.GetStatistics)
	}
}

// GetStatistics returns withholding totals per period
// @Summary      Get withholding statistics
// @Description  Gross and recorded retentions per period, the largest suppliers and the audit runs in the range. Defaults to the current month.
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query  string  false  "Filter by client"
// @Param        from       query  string  false  "First day (YYYY-MM-DD)"
// @Param        to         query  string  false  "Last day (YYYY-MM-DD)"
// @Param        group_by   query  string  false  "week, month, quarter or year (default: month)"
// @Success      200  {object}  response.Response{data=service.StatisticsResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), service.StatisticsFilter{
		ClientID: c.Query("client_id"),
		From:     c.Query("from"),
		To:       c.Query("to"),
		GroupBy:  c.Query("group_by"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

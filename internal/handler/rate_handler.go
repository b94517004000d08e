package handler

import (
	"errors"
	"io"
	"net/http"

	"taxaudit/internal/middleware"
	"taxaudit/internal/service"
	"taxaudit/internal/withholding"
	"taxaudit/pkg/pagination"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
)

type RateHandler struct {
	rateService service.RateService
}

func NewRateHandler(rateService service.RateService) *RateHandler {
	return &RateHandler{rateService: rateService}
}

func (h *RateHandler) RegisterRoutes(router *gin.RouterGroup) {
	rates := router.Group("/api/withholding-rates")
	{
		rates.GET("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAuditor, middleware.RoleViewer), h.GetRates)

		admin := rates.Group("")
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		admin.POST("", h.CreateRate)
		admin.POST("/seed", h.SeedRates)
		admin.PUT("/:id", h.UpdateRate)
		admin.DELETE("/:id", h.DeleteRate)
	}
}

// GetRates returns the stored rate table, one row per tax kind
// @Summary      List withholding rates
// @Tags         withholding-rates
// @Security     BearerAuth
// @Produce      json
// @Param        page          query  int     false  "Page number (default: 1)"
// @Param        limit         query  int     false  "Items per page (default: 20)"
// @Param        service_type  query  string  false  "Filter by service type"
// @Param        regime        query  string  false  "Filter by supplier regime"
// @Success      200  {object}  response.Response
// @Router       /api/withholding-rates [get]
func (h *RateHandler) GetRates(c *gin.Context) {
	p := pagination.Parse(c)

	rates, total, err := h.rateService.GetRates(c.Request.Context(), c.Query("service_type"), c.Query("regime"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, rates, p.Page, p.Limit, total))
}

// CreateRate adds one rate row
// @Summary      Create withholding rate
// @Tags         withholding-rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.WithholdingRateRequest  true  "Rate payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/withholding-rates [post]
func (h *RateHandler) CreateRate(c *gin.Context) {
	var req service.WithholdingRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	rate, err := h.rateService.CreateRate(c.Request.Context(), req, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rate))
}

// UpdateRate replaces one rate row
// @Summary      Update withholding rate
// @Tags         withholding-rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                          true  "Rate ID"
// @Param        payload  body  service.WithholdingRateRequest  true  "Rate payload"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/withholding-rates/{id} [put]
func (h *RateHandler) UpdateRate(c *gin.Context) {
	var req service.WithholdingRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	rate, err := h.rateService.UpdateRate(c.Request.Context(), c.Param("id"), req, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rate))
}

// DeleteRate removes one rate row
// @Summary      Delete withholding rate
// @Tags         withholding-rates
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Rate ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/withholding-rates/{id} [delete]
func (h *RateHandler) DeleteRate(c *gin.Context) {
	if err := h.rateService.DeleteRate(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Withholding rate deleted successfully"))
}

// SeedRates loads the given rows, or the reference table when none are sent
// @Summary      Seed withholding rates
// @Description  Fails with 409 when rates exist unless replace is set.
// @Tags         withholding-rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.SeedRatesRequest  false  "Rows to seed"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/withholding-rates/seed [post]
func (h *RateHandler) SeedRates(c *gin.Context) {
	var req service.SeedRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	entries := withholding.DefaultRateEntries()
	if len(req.Rates) > 0 {
		entries = make([]withholding.RateEntry, 0, len(req.Rates))
		for _, r := range req.Rates {
			e, err := service.ToRateEntry(r)
			if err != nil {
				writeError(c, err)
				return
			}
			entries = append(entries, e)
		}
	}

	res, err := h.rateService.SeedRates(c.Request.Context(), entries, req.Replace, middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

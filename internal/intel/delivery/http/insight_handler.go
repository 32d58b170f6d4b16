package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/service"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

// InsightHandler handles HTTP requests for strategic insights.
type InsightHandler struct {
	orchestrator *service.Orchestrator
	store        *store.Store
	logger       *logger.Logger
}

// NewInsightHandler creates a new InsightHandler.
func NewInsightHandler(orch *service.Orchestrator, st *store.Store, logger *logger.Logger) *InsightHandler {
	return &InsightHandler{orchestrator: orch, store: st, logger: logger}
}

// RegisterRoutes registers the insight routes to the Echo group.
func (h *InsightHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/insights/company/:id", h.GetInsights)
	g.POST("/insights/company/:id/refresh", h.RefreshInsights)
}

// GetInsights returns the company's current insight set.
func (h *InsightHandler) GetInsights(c echo.Context) error {
	company, err := h.store.GetCompany(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
	}
	insights, err := h.store.ListInsights(company.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, dto.CompanyInsightsResponse{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Insights:    insights,
	})
}

// RefreshInsights regenerates the insight set synchronously and returns
// the new set. A refresh already in flight for the company yields 409.
func (h *InsightHandler) RefreshInsights(c echo.Context) error {
	companyID := c.Param("id")
	company, err := h.store.GetCompany(companyID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
	}

	insights, err := h.orchestrator.RefreshInsights(c.Request().Context(), companyID)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInFlight) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, dto.CompanyInsightsResponse{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Insights:    insights,
	})
}

package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

// NewsHandler handles HTTP requests for collected news.
type NewsHandler struct {
	store  *store.Store
	logger *logger.Logger
}

// NewNewsHandler creates a new NewsHandler.
func NewNewsHandler(st *store.Store, logger *logger.Logger) *NewsHandler {
	return &NewsHandler{store: st, logger: logger}
}

// RegisterRoutes registers the news routes to the Echo group.
func (h *NewsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/news/company/:id", h.GetCompanyNews)
	g.GET("/news/competitor/:id", h.GetCompetitorNews)
}

// GetCompanyNews lists every article collected for the company, covering
// the company itself and all of its competitors, newest first.
func (h *NewsHandler) GetCompanyNews(c echo.Context) error {
	companyID := c.Param("id")
	if _, err := h.store.GetCompany(companyID); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
	}
	articles, err := h.store.ListNewsByCompany(companyID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, dto.CompanyNewsResponse{
		CompanyID: companyID,
		Articles:  articles,
	})
}

// GetCompetitorNews lists the articles collected for one competitor.
func (h *NewsHandler) GetCompetitorNews(c echo.Context) error {
	competitorID := c.Param("id")
	comp, err := h.store.GetCompetitor(competitorID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Competitor not found"})
	}
	articles, err := h.store.ListNewsByCompetitor(competitorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, dto.CompetitorNewsResponse{
		CompetitorID:   comp.ID,
		CompetitorName: comp.Name,
		Articles:       articles,
	})
}

package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/service"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

// CompanyHandler handles HTTP requests for companies and their competitors.
type CompanyHandler struct {
	orchestrator *service.Orchestrator
	store        *store.Store
	logger       *logger.Logger
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(orch *service.Orchestrator, st *store.Store, logger *logger.Logger) *CompanyHandler {
	return &CompanyHandler{orchestrator: orch, store: st, logger: logger}
}

// RegisterRoutes registers the company routes to the Echo group.
func (h *CompanyHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/company", h.CreateCompany)
	g.GET("/company/:id", h.GetCompany)
	g.GET("/company/:id/competitors", h.GetCompetitors)
}

// CreateCompany registers a company and starts its analysis pipeline. The
// response returns before any stage has run; clients poll the read
// endpoints for progress.
func (h *CompanyHandler) CreateCompany(c echo.Context) error {
	var req dto.CreateCompanyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	company, err := h.orchestrator.StartAnalysis(c.Request().Context(), req.Name)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCompanyName) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, toCompanyResponse(company))
}

// GetCompany returns the company read model including per-stage progress.
func (h *CompanyHandler) GetCompany(c echo.Context) error {
	company, err := h.store.GetCompany(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
	}
	return c.JSON(http.StatusOK, toCompanyResponse(company))
}

// GetCompetitors lists the company's competitors, including each one's
// deep-research status.
func (h *CompanyHandler) GetCompetitors(c echo.Context) error {
	company, err := h.store.GetCompany(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
	}
	competitors, err := h.store.ListCompetitors(company.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, dto.CompetitorsListResponse{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Competitors: competitors,
	})
}

func toCompanyResponse(company entity.Company) dto.CompanyResponse {
	return dto.CompanyResponse{
		ID:             company.ID,
		Name:           company.Name,
		Description:    company.Description,
		Industry:       company.Industry,
		WelcomeMessage: company.WelcomeMessage,
		Pipeline:       company.Pipeline,
		CreatedAt:      company.CreatedAt,
	}
}

package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/service"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

// ResearchHandler handles HTTP requests for deep-research jobs and their
// rendered documents.
type ResearchHandler struct {
	manager *service.ResearchManager
	store   *store.Store
	logger  *logger.Logger
}

// NewResearchHandler creates a new ResearchHandler.
func NewResearchHandler(mgr *service.ResearchManager, st *store.Store, logger *logger.Logger) *ResearchHandler {
	return &ResearchHandler{manager: mgr, store: st, logger: logger}
}

// RegisterRoutes registers the research routes to the Echo group.
func (h *ResearchHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/competitor/:id/deep-research", h.TriggerResearch)
	g.POST("/competitor/deep-research/multiple", h.TriggerBatch)
	g.GET("/competitor/:id/deep-research/download", h.DownloadDocument)
	g.GET("/company/:id/deep-research/download", h.DownloadCombined)
}

// TriggerResearch starts (or with ?regenerate=true, redoes) the
// deep-research job for one competitor. The job runs in the background;
// the response reports the status the competitor is now in. Triggering
// while a job is pending, or re-triggering a completed report without
// regenerate, yields 409.
func (h *ResearchHandler) TriggerResearch(c echo.Context) error {
	competitorID := c.Param("id")
	regenerate := c.QueryParam("regenerate") == "true"

	status, err := h.manager.Trigger(c.Request().Context(), competitorID, regenerate)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Competitor not found"})
		case errors.Is(err, service.ErrResearchPending), errors.Is(err, service.ErrResearchCompleted):
			return c.JSON(http.StatusConflict, dto.ResearchTriggerResult{
				CompetitorID: competitorID, Status: status, Error: err.Error(),
			})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusAccepted, dto.ResearchTriggerResult{
		CompetitorID: competitorID, Status: status,
	})
}

// TriggerBatch starts deep research for several competitors of a company.
// The batch never fails as a whole; each entry reports its own outcome.
func (h *ResearchHandler) TriggerBatch(c echo.Context) error {
	var req dto.BatchResearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if req.CompanyID == "" || len(req.CompetitorIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company_id and competitor_ids are required"})
	}

	results, err := h.manager.TriggerBatch(c.Request().Context(), req.CompanyID, req.CompetitorIDs, req.Regenerate)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, dto.BatchResearchResponse{Results: results})
}

// DownloadDocument serves the rendered report for one competitor. Unknown
// competitors yield 404; incomplete research or a report whose rendering
// failed yields 409.
func (h *ResearchHandler) DownloadDocument(c echo.Context) error {
	artifact, comp, err := h.manager.Document(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Competitor not found"})
		case errors.Is(err, store.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": fmt.Sprintf("Research is %s", comp.DeepResearchStatus)})
		case errors.Is(err, service.ErrArtifactUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	setAttachment(c, fmt.Sprintf("deep-research-%s.html", slugify(comp.Name)))
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, artifact)
}

// DownloadCombined serves one document holding the completed reports of
// the requested competitors. With no ids parameter, every completed report
// of the company is included.
func (h *ResearchHandler) DownloadCombined(c echo.Context) error {
	companyID := c.Param("id")
	var ids []string
	if raw := c.QueryParam("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	artifact, err := h.manager.CombinedDocument(companyID, ids)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
		case errors.Is(err, store.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	setAttachment(c, "deep-research-combined.html")
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, artifact)
}

func setAttachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "report"
	}
	return slug
}

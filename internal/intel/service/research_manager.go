package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/repository"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/utils"
)

var (
	// ErrResearchPending rejects a trigger while a job is already running.
	ErrResearchPending = errors.New("deep research already in progress")
	// ErrResearchCompleted rejects a plain trigger for finished research;
	// callers must ask for regeneration explicitly.
	ErrResearchCompleted = errors.New("deep research already completed")
	// ErrArtifactUnavailable marks a completed report whose document
	// rendering failed. The markdown is still served.
	ErrArtifactUnavailable = errors.New("research document unavailable")
)

// ResearchManager owns the deep-research job lifecycle for competitors.
// Status moves not_started -> pending -> completed | error; triggering is
// idempotent while pending, and a completed report is only redone when the
// caller asks for regeneration. The transition into pending is a
// compare-and-swap on the store, so concurrent triggers start one job.
type ResearchManager struct {
	store     *store.Store
	aiRepo    repository.AIRepository
	retrieval *RetrievalEngine
	renderer  *DocumentRenderer
	cfg       *config.Config
	logger    *logger.Logger
}

// NewResearchManager creates a new ResearchManager.
func NewResearchManager(
	st *store.Store,
	aiRepo repository.AIRepository,
	retrieval *RetrievalEngine,
	renderer *DocumentRenderer,
	cfg *config.Config,
	log *logger.Logger,
) *ResearchManager {
	return &ResearchManager{
		store:     st,
		aiRepo:    aiRepo,
		retrieval: retrieval,
		renderer:  renderer,
		cfg:       cfg,
		logger:    log,
	}
}

// Trigger starts a deep-research job for the competitor and returns the
// status the competitor is now in. ErrResearchPending and
// ErrResearchCompleted report why a job was not started.
func (m *ResearchManager) Trigger(ctx context.Context, competitorID string, regenerate bool) (entity.ResearchStatus, error) {
	comp, err := m.store.GetCompetitor(competitorID)
	if err != nil {
		return "", err
	}

	from := []entity.ResearchStatus{entity.ResearchNotStarted, entity.ResearchError}
	if regenerate {
		from = append(from, entity.ResearchCompleted)
	}
	current, err := m.store.TransitionResearchStatus(competitorID, from, entity.ResearchPending)
	if err != nil {
		switch current {
		case entity.ResearchPending:
			return current, ErrResearchPending
		case entity.ResearchCompleted:
			return current, ErrResearchCompleted
		default:
			return current, err
		}
	}

	company, err := m.store.GetCompany(comp.CompanyID)
	if err != nil {
		return entity.ResearchPending, err
	}

	utils.GoSafe(func() {
		m.runJob(context.WithoutCancel(ctx), company, comp)
	})
	return entity.ResearchPending, nil
}

// TriggerBatch triggers research for several competitors of one company
// and reports the per-competitor outcome instead of failing the batch.
func (m *ResearchManager) TriggerBatch(ctx context.Context, companyID string, competitorIDs []string, regenerate bool) ([]dto.ResearchTriggerResult, error) {
	if _, err := m.store.GetCompany(companyID); err != nil {
		return nil, err
	}

	results := make([]dto.ResearchTriggerResult, 0, len(competitorIDs))
	for _, id := range competitorIDs {
		comp, err := m.store.GetCompetitor(id)
		if err == nil && comp.CompanyID != companyID {
			err = store.ErrNotFound
		}
		if err != nil {
			results = append(results, dto.ResearchTriggerResult{
				CompetitorID: id, Error: err.Error(),
			})
			continue
		}

		status, err := m.Trigger(ctx, id, regenerate)
		r := dto.ResearchTriggerResult{CompetitorID: id, Status: status}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

// runJob performs the research call, renders the document, and publishes
// the terminal status. A render failure still completes the job; the
// competitor then carries the markdown and a RenderError instead of an
// artifact.
func (m *ResearchManager) runJob(ctx context.Context, company entity.Company, comp entity.Competitor) {
	m.logger.Info("Starting deep research",
		logger.StringField("competitor_id", comp.ID),
		logger.StringField("competitor", comp.Name),
	)

	jobCtx, cancel := context.WithTimeout(ctx, m.cfg.Gemini.ResearchTimeout)
	defer cancel()

	markdown, err := m.aiRepo.DeepResearch(jobCtx, comp.Name, comp.Description, company.Name)
	if err != nil || strings.TrimSpace(markdown) == "" {
		if err == nil {
			err = errors.New("empty research report")
		}
		m.logger.Error("Deep research failed",
			logger.StringField("competitor_id", comp.ID), logger.ErrorField(err))
		if serr := m.store.SetResearchResult(comp.ID, entity.ResearchError, "", nil, ""); serr != nil {
			m.logger.Error("Failed to record research error",
				logger.StringField("competitor_id", comp.ID), logger.ErrorField(serr))
		}
		return
	}

	var renderError string
	artifact, err := m.renderer.Render(company.Name, ReportSection{
		CompetitorName: comp.Name,
		Markdown:       markdown,
	})
	if err != nil {
		renderError = err.Error()
		artifact = nil
		m.logger.Warn("Research document rendering failed",
			logger.StringField("competitor_id", comp.ID), logger.ErrorField(err))
	}

	if err := m.store.SetResearchResult(comp.ID, entity.ResearchCompleted, markdown, artifact, renderError); err != nil {
		m.logger.Error("Failed to store research result",
			logger.StringField("competitor_id", comp.ID), logger.ErrorField(err))
		return
	}

	updated, err := m.store.GetCompetitor(comp.ID)
	if err == nil {
		if err := m.retrieval.IndexResearch(jobCtx, updated); err != nil {
			m.logger.Warn("Failed to index research report",
				logger.StringField("competitor_id", comp.ID), logger.ErrorField(err))
		}
	}

	m.logger.Info("Deep research completed",
		logger.StringField("competitor_id", comp.ID),
		logger.IntField("report_bytes", len(markdown)),
	)
}

// Document returns the rendered report for one competitor.
func (m *ResearchManager) Document(competitorID string) ([]byte, entity.Competitor, error) {
	comp, err := m.store.GetCompetitor(competitorID)
	if err != nil {
		return nil, entity.Competitor{}, err
	}
	if comp.DeepResearchStatus != entity.ResearchCompleted {
		return nil, comp, store.ErrConflict
	}
	if len(comp.DeepResearchArtifact) == 0 {
		return nil, comp, fmt.Errorf("%w: %s", ErrArtifactUnavailable, comp.RenderError)
	}
	return comp.DeepResearchArtifact, comp, nil
}

// CombinedDocument renders one document from the completed reports of the
// requested competitors. Competitors without a completed report are
// skipped; an empty selection is an error.
func (m *ResearchManager) CombinedDocument(companyID string, competitorIDs []string) ([]byte, error) {
	company, err := m.store.GetCompany(companyID)
	if err != nil {
		return nil, err
	}

	ids := competitorIDs
	if len(ids) == 0 {
		competitors, err := m.store.ListCompetitors(companyID)
		if err != nil {
			return nil, err
		}
		for _, c := range competitors {
			ids = append(ids, c.ID)
		}
	}

	var sections []ReportSection
	for _, id := range ids {
		comp, err := m.store.GetCompetitor(id)
		if err != nil || comp.CompanyID != companyID {
			continue
		}
		if comp.DeepResearchStatus != entity.ResearchCompleted || comp.DeepResearchMarkdown == "" {
			continue
		}
		sections = append(sections, sectionFromCompetitor(comp))
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no completed research reports", store.ErrConflict)
	}
	return m.renderer.RenderCombined(company.Name, sections)
}

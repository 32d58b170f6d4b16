package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/repository"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/telegram"
	"competitive-intel-agent/pkg/utils"
)

var (
	// ErrEmptyCompanyName rejects blank analysis requests.
	ErrEmptyCompanyName = errors.New("company name must not be empty")
	// ErrRefreshInFlight rejects a second concurrent insight refresh for
	// the same company.
	ErrRefreshInFlight = errors.New("insight refresh already in progress")
)

// Orchestrator runs the company analysis pipeline: profile, competitors,
// news, insights. StartAnalysis returns as soon as the company record
// exists; the stages run on the worker pool and publish progress through
// per-stage statuses on the company record.
type Orchestrator struct {
	store     *store.Store
	aiRepo    repository.AIRepository
	newsRepo  repository.NewsRepository
	retrieval *RetrievalEngine
	pool      *WorkerPool
	notifier  telegram.Notifier
	cfg       *config.Config
	logger    *logger.Logger

	mu         sync.Mutex
	refreshing map[string]struct{}
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	st *store.Store,
	aiRepo repository.AIRepository,
	newsRepo repository.NewsRepository,
	retrieval *RetrievalEngine,
	pool *WorkerPool,
	notifier telegram.Notifier,
	cfg *config.Config,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      st,
		aiRepo:     aiRepo,
		newsRepo:   newsRepo,
		retrieval:  retrieval,
		pool:       pool,
		notifier:   notifier,
		cfg:        cfg,
		logger:     log,
		refreshing: make(map[string]struct{}),
	}
}

// StartAnalysis registers a company and enqueues its analysis pipeline.
// It returns the company record immediately; callers poll the read
// endpoints for stage progress. A name that already exists returns the
// existing record and enqueues a news refresh instead of a fresh pipeline.
func (o *Orchestrator) StartAnalysis(ctx context.Context, name string) (entity.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.Company{}, ErrEmptyCompanyName
	}

	if existing, ok := o.store.GetCompanyByName(name); ok {
		o.logger.Info("Company already analyzed, refreshing news",
			logger.StringField("company_id", existing.ID),
			logger.StringField("name", existing.Name),
		)
		companyID := existing.ID
		if err := o.pool.Submit(func(taskCtx context.Context) {
			o.runNewsStage(taskCtx, companyID)
		}); err != nil {
			o.logger.Warn("Skipping news refresh",
				logger.StringField("company_id", companyID), logger.ErrorField(err))
		}
		return existing, nil
	}

	// placeholder until the profile stage produces the real greeting
	company, err := o.store.CreateCompany(entity.Company{
		Name:           name,
		WelcomeMessage: fmt.Sprintf("Welcome! We are analyzing the competitive landscape for %s.", name),
		Pipeline:       entity.NewPipelineStatus(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// lost a create race; treat like the existing-name path
			if existing, ok := o.store.GetCompanyByName(name); ok {
				return existing, nil
			}
		}
		return entity.Company{}, err
	}

	companyID := company.ID
	if err := o.pool.Submit(func(taskCtx context.Context) {
		o.runPipeline(taskCtx, companyID)
	}); err != nil {
		o.logger.Error("Analysis not scheduled",
			logger.StringField("company_id", companyID), logger.ErrorField(err))
	}
	return company, nil
}

// runPipeline executes the four stages in order. A failed stage is marked
// failed and later stages still run with whatever data exists, so one bad
// model response does not strand the whole analysis.
func (o *Orchestrator) runPipeline(ctx context.Context, companyID string) {
	start := time.Now()
	o.logger.Info("Starting analysis pipeline", logger.StringField("company_id", companyID))

	stages := []func(context.Context, string){
		o.runProfileStage,
		o.runCompetitorStage,
		o.runNewsStage,
		o.runInsightStage,
	}
	for _, stage := range stages {
		if !utils.ShouldContinue(ctx, o.logger) {
			return
		}
		stage(ctx, companyID)
	}

	o.logger.Info("Analysis pipeline finished",
		logger.StringField("company_id", companyID),
		logger.DurationField("duration", time.Since(start)),
	)

	o.notifyCompletion(companyID)
}

func (o *Orchestrator) notifyCompletion(companyID string) {
	company, err := o.store.GetCompany(companyID)
	if err != nil {
		return
	}
	competitors, _ := o.store.ListCompetitors(companyID)
	insights, _ := o.store.ListInsights(companyID)

	for _, msg := range telegram.FormatAnalysisSummary(company, competitors, insights) {
		if err := o.notifier.SendMessage(msg); err != nil {
			o.logger.Warn("Failed to send notification", logger.ErrorField(err))
			return
		}
	}
}

func (o *Orchestrator) runProfileStage(ctx context.Context, companyID string) {
	_ = o.store.SetStageStatus(companyID, store.StageProfile, entity.StageRunning)

	company, err := o.store.GetCompany(companyID)
	if err != nil {
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.StageTimeout)
	defer cancel()

	profile, err := o.aiRepo.AnalyzeCompany(stageCtx, company.Name)
	if err != nil {
		o.failStage(companyID, store.StageProfile, err)
		return
	}
	if err := o.store.UpdateCompanyProfile(companyID, profile.Description, profile.Industry, profile.WelcomeMessage); err != nil {
		o.failStage(companyID, store.StageProfile, err)
		return
	}
	if err := o.retrieval.IndexCompanyProfile(stageCtx, companyID); err != nil {
		o.logger.Warn("Failed to index company profile",
			logger.StringField("company_id", companyID), logger.ErrorField(err))
	}
	_ = o.store.SetStageStatus(companyID, store.StageProfile, entity.StageCompleted)
}

// runCompetitorStage identifies competitors. A malformed model response is
// retried once with the stricter prompt; a second parse failure yields an
// empty competitor list and a failed stage.
func (o *Orchestrator) runCompetitorStage(ctx context.Context, companyID string) {
	_ = o.store.SetStageStatus(companyID, store.StageCompetitors, entity.StageRunning)

	company, err := o.store.GetCompany(companyID)
	if err != nil {
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.StageTimeout)
	defer cancel()

	result, err := o.aiRepo.IdentifyCompetitors(stageCtx, company.Name, company.Description, company.Industry, o.cfg.Pipeline.CompetitorMax, false)
	var parseErr *dto.ParseError
	if errors.As(err, &parseErr) {
		o.logger.Warn("Competitor response unparseable, retrying with strict prompt",
			logger.StringField("company_id", companyID))
		result, err = o.aiRepo.IdentifyCompetitors(stageCtx, company.Name, company.Description, company.Industry, o.cfg.Pipeline.CompetitorMax, true)
	}
	if err != nil {
		o.failStage(companyID, store.StageCompetitors, err)
		return
	}

	for _, c := range result.Competitors {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		comp, err := o.store.CreateCompetitor(entity.Competitor{
			CompanyID:   companyID,
			Name:        strings.TrimSpace(c.Name),
			Description: c.Description,
			Strengths:   c.Strengths,
			Weaknesses:  c.Weaknesses,
		})
		if err != nil {
			o.logger.Warn("Failed to store competitor",
				logger.StringField("name", c.Name), logger.ErrorField(err))
			continue
		}
		if err := o.retrieval.IndexCompetitorProfile(stageCtx, comp); err != nil {
			o.logger.Warn("Failed to index competitor profile",
				logger.StringField("competitor_id", comp.ID), logger.ErrorField(err))
		}
	}
	_ = o.store.SetStageStatus(companyID, store.StageCompetitors, entity.StageCompleted)
}

// runNewsStage collects news for the company and each of its competitors,
// fetching feeds concurrently with a bounded degree of parallelism.
func (o *Orchestrator) runNewsStage(ctx context.Context, companyID string) {
	_ = o.store.SetStageStatus(companyID, store.StageNews, entity.StageRunning)

	company, err := o.store.GetCompany(companyID)
	if err != nil {
		return
	}
	competitors, err := o.store.ListCompetitors(companyID)
	if err != nil {
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.StageTimeout)
	defer cancel()

	type target struct {
		name         string
		competitorID string
	}
	targets := []target{{name: company.Name}}
	for _, c := range competitors {
		targets = append(targets, target{name: c.Name, competitorID: c.ID})
	}

	g, gCtx := errgroup.WithContext(stageCtx)
	g.SetLimit(o.cfg.News.MaxConcurrent)

	var mu sync.Mutex
	var collected []entity.NewsArticle
	for _, t := range targets {
		t := t
		g.Go(func() error {
			articles, err := o.newsRepo.Search(gCtx, t.name)
			if err != nil {
				// a single feed failure must not fail the stage
				o.logger.Warn("News search failed",
					logger.StringField("entity", t.name), logger.ErrorField(err))
				return nil
			}
			for i := range articles {
				articles[i].CompanyID = companyID
				articles[i].CompetitorID = t.competitorID
			}
			mu.Lock()
			collected = append(collected, articles...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stored, err := o.store.AppendNews(companyID, collected)
	if err != nil {
		o.failStage(companyID, store.StageNews, err)
		return
	}
	if err := o.retrieval.IndexNews(stageCtx, stored); err != nil {
		o.logger.Warn("Failed to index news",
			logger.StringField("company_id", companyID), logger.ErrorField(err))
	}

	o.logger.Info("News stage finished",
		logger.StringField("company_id", companyID),
		logger.IntField("fetched", len(collected)),
		logger.IntField("stored", len(stored)),
	)
	_ = o.store.SetStageStatus(companyID, store.StageNews, entity.StageCompleted)
}

func (o *Orchestrator) runInsightStage(ctx context.Context, companyID string) {
	_ = o.store.SetStageStatus(companyID, store.StageInsights, entity.StageRunning)
	if !o.acquireInsightGuard(companyID) {
		// a manual refresh owns the regeneration right now; a second
		// generation would interleave the chunk reindex
		o.logger.Warn("Insight refresh in flight, skipping pipeline insight stage",
			logger.StringField("company_id", companyID))
		_ = o.store.SetStageStatus(companyID, store.StageInsights, entity.StageCompleted)
		return
	}
	defer o.releaseInsightGuard(companyID)

	if err := o.generateInsights(ctx, companyID); err != nil {
		o.failStage(companyID, store.StageInsights, err)
		return
	}
	_ = o.store.SetStageStatus(companyID, store.StageInsights, entity.StageCompleted)
}

// acquireInsightGuard claims the per-company insight generation slot.
// The pipeline stage and manual refresh share it so two generations
// never run concurrently for one company.
func (o *Orchestrator) acquireInsightGuard(companyID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.refreshing[companyID]; busy {
		return false
	}
	o.refreshing[companyID] = struct{}{}
	return true
}

func (o *Orchestrator) releaseInsightGuard(companyID string) {
	o.mu.Lock()
	delete(o.refreshing, companyID)
	o.mu.Unlock()
}

// RefreshInsights regenerates the company's insight set synchronously.
// Only one refresh may run per company at a time; a concurrent attempt
// gets ErrRefreshInFlight. The stored set is swapped atomically, so
// readers never observe a partially refreshed list.
func (o *Orchestrator) RefreshInsights(ctx context.Context, companyID string) ([]entity.Insight, error) {
	if _, err := o.store.GetCompany(companyID); err != nil {
		return nil, err
	}

	if !o.acquireInsightGuard(companyID) {
		return nil, ErrRefreshInFlight
	}
	defer o.releaseInsightGuard(companyID)

	if err := o.generateInsights(ctx, companyID); err != nil {
		return nil, err
	}
	return o.store.ListInsights(companyID)
}

func (o *Orchestrator) generateInsights(ctx context.Context, companyID string) error {
	company, err := o.store.GetCompany(companyID)
	if err != nil {
		return err
	}
	competitors, err := o.store.ListCompetitors(companyID)
	if err != nil {
		return err
	}
	news, err := o.store.ListNewsByCompany(companyID)
	if err != nil {
		return err
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.StageTimeout)
	defer cancel()

	result, err := o.aiRepo.GenerateInsights(stageCtx, company.Name, competitors, news)
	if err != nil {
		return err
	}

	nameToID := make(map[string]string, len(competitors))
	for _, c := range competitors {
		nameToID[strings.ToLower(c.Name)] = c.ID
	}

	insights := make([]entity.Insight, 0, len(result.Insights))
	for _, r := range result.Insights {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		var related []string
		for _, name := range r.RelatedCompetitors {
			if id, ok := nameToID[strings.ToLower(strings.TrimSpace(name))]; ok {
				related = append(related, id)
			}
		}
		insights = append(insights, entity.Insight{
			CompanyID:            companyID,
			Title:                r.Title,
			Description:          r.Description,
			Category:             entity.NormalizeCategory(r.Category),
			Severity:             entity.NormalizeSeverity(r.Severity),
			RelatedCompetitorIDs: related,
		})
	}

	// drop stale insight chunks before the swap so retrieval never
	// serves a chunk whose insight is no longer in the current set
	if err := o.store.DeleteChunksByType(companyID, entity.SourceInsight); err != nil {
		return err
	}
	if _, err := o.store.ReplaceInsights(companyID, insights); err != nil {
		return err
	}
	if err := o.retrieval.IndexInsights(stageCtx, companyID); err != nil {
		o.logger.Warn("Failed to index insights",
			logger.StringField("company_id", companyID), logger.ErrorField(err))
	}
	return nil
}

func (o *Orchestrator) failStage(companyID string, stage store.Stage, err error) {
	o.logger.Error("Pipeline stage failed",
		logger.StringField("company_id", companyID),
		logger.StringField("stage", string(stage)),
		logger.ErrorField(err),
	)
	_ = o.store.SetStageStatus(companyID, stage, entity.StageFailed)
}

// RefreshAllNews re-runs the news stage for every known company. Used by
// the scheduled refresher.
func (o *Orchestrator) RefreshAllNews(ctx context.Context) {
	for _, company := range o.store.ListCompanies() {
		companyID := company.ID
		if err := o.pool.Submit(func(taskCtx context.Context) {
			o.runNewsStage(taskCtx, companyID)
		}); err != nil {
			o.logger.Warn("Skipping scheduled news refresh",
				logger.StringField("company_id", companyID), logger.ErrorField(err))
		}
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

type orchestratorFixture struct {
	orch  *Orchestrator
	store *store.Store
	ai    *fakeAI
	news  *fakeNews
	pool  *WorkerPool
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	st := store.New()
	ai := &fakeAI{}
	news := &fakeNews{articles: map[string][]entity.NewsArticle{}}
	cfg := testConfig()
	log := logger.NewNop()

	pool := NewWorkerPool(cfg.Pipeline.QueueSize, log)
	pool.Start(context.Background(), cfg.Pipeline.WorkerCount)
	t.Cleanup(pool.Stop)

	retrieval := NewRetrievalEngine(st, newFakeEmbedder(), cfg, log)
	orch := NewOrchestrator(st, ai, news, retrieval, pool, nopNotifier{}, cfg, log)
	return &orchestratorFixture{orch: orch, store: st, ai: ai, news: news, pool: pool}
}

func (f *orchestratorFixture) waitForPipeline(t *testing.T, companyID string) entity.Company {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := f.store.GetCompany(companyID)
		if err != nil {
			return false
		}
		done := func(s entity.StageStatus) bool {
			return s == entity.StageCompleted || s == entity.StageFailed
		}
		return done(c.Pipeline.Profile) && done(c.Pipeline.Competitors) &&
			done(c.Pipeline.News) && done(c.Pipeline.Insights)
	}, 5*time.Second, 10*time.Millisecond)
	c, err := f.store.GetCompany(companyID)
	require.NoError(t, err)
	return c
}

func TestStartAnalysis_RejectsEmptyName(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, err := f.orch.StartAnalysis(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCompanyName)
}

func TestStartAnalysis_ReturnsBeforePipelineFinishes(t *testing.T) {
	f := newOrchestratorFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.ai.analyzeFn = func(name string) (*dto.CompanyProfileResult, error) {
		close(started)
		<-release
		return &dto.CompanyProfileResult{Description: "d", Industry: "i"}, nil
	}

	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	assert.NotEmpty(t, company.ID)
	assert.Equal(t, entity.StagePending, company.Pipeline.Profile)

	<-started
	close(release)
	got := f.waitForPipeline(t, company.ID)
	assert.Equal(t, entity.StageCompleted, got.Pipeline.Profile)
}

func TestStartAnalysis_FullPipeline(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.news.mu.Lock()
	f.news.articles["Acme"] = []entity.NewsArticle{{Title: "Acme ships", URL: "https://example.com/acme"}}
	f.news.articles["Beta Corp"] = []entity.NewsArticle{{Title: "Beta raises", URL: "https://example.com/beta"}}
	f.news.mu.Unlock()

	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	got := f.waitForPipeline(t, company.ID)

	assert.Equal(t, entity.StageCompleted, got.Pipeline.Profile)
	assert.Equal(t, "Acme builds widgets", got.Description)
	assert.Equal(t, "Widgets", got.Industry)

	competitors, err := f.store.ListCompetitors(company.ID)
	require.NoError(t, err)
	require.Len(t, competitors, 1)
	assert.Equal(t, "Beta Corp", competitors[0].Name)
	assert.Equal(t, entity.ResearchNotStarted, competitors[0].DeepResearchStatus)

	news, err := f.store.ListNewsByCompany(company.ID)
	require.NoError(t, err)
	assert.Len(t, news, 2)

	compNews, err := f.store.ListNewsByCompetitor(competitors[0].ID)
	require.NoError(t, err)
	require.Len(t, compNews, 1)
	assert.Equal(t, "Beta raises", compNews[0].Title)

	insights, err := f.store.ListInsights(company.ID)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "Watch Beta Corp", insights[0].Title)
	assert.Equal(t, entity.CategoryCompetitor, insights[0].Category)
	assert.Equal(t, []string{competitors[0].ID}, insights[0].RelatedCompetitorIDs)
}

func TestStartAnalysis_ExistingNameReturnsExistingRecord(t *testing.T) {
	f := newOrchestratorFixture(t)

	first, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	f.waitForPipeline(t, first.ID)

	second, err := f.orch.StartAnalysis(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCompetitorStage_RetriesParseFailureWithStrictPrompt(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.ai.identifyFn = func(strict bool) (*dto.CompetitorListResult, error) {
		if !strict {
			return nil, &dto.ParseError{Raw: "not json", Err: errors.New("invalid character")}
		}
		return &dto.CompetitorListResult{Competitors: []dto.CompetitorResult{{Name: "Beta Corp"}}}, nil
	}

	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	got := f.waitForPipeline(t, company.ID)

	assert.Equal(t, entity.StageCompleted, got.Pipeline.Competitors)
	assert.Equal(t, []bool{false, true}, f.ai.strictCalls())

	competitors, err := f.store.ListCompetitors(company.ID)
	require.NoError(t, err)
	assert.Len(t, competitors, 1)
}

func TestCompetitorStage_SecondParseFailureYieldsNone(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.ai.identifyFn = func(bool) (*dto.CompetitorListResult, error) {
		return nil, &dto.ParseError{Raw: "still not json", Err: errors.New("invalid character")}
	}

	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	got := f.waitForPipeline(t, company.ID)

	assert.Equal(t, entity.StageFailed, got.Pipeline.Competitors)
	competitors, err := f.store.ListCompetitors(company.ID)
	require.NoError(t, err)
	assert.Empty(t, competitors)

	// later stages still ran
	assert.Equal(t, entity.StageCompleted, got.Pipeline.News)
	assert.Equal(t, entity.StageCompleted, got.Pipeline.Insights)
}

func TestProfileStageFailure_DoesNotStrandPipeline(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.ai.analyzeFn = func(string) (*dto.CompanyProfileResult, error) {
		return nil, errors.New("model unavailable")
	}

	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	got := f.waitForPipeline(t, company.ID)

	assert.Equal(t, entity.StageFailed, got.Pipeline.Profile)
	assert.Equal(t, entity.StageCompleted, got.Pipeline.Competitors)
}

func TestRefreshInsights_ReplacesSetAtomically(t *testing.T) {
	f := newOrchestratorFixture(t)
	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	f.waitForPipeline(t, company.ID)

	f.ai.insightsFn = func() (*dto.InsightListResult, error) {
		return &dto.InsightListResult{Insights: []dto.InsightResult{
			{Title: "Fresh take", Category: "bogus-category", Severity: "bogus"},
		}}, nil
	}

	insights, err := f.orch.RefreshInsights(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "Fresh take", insights[0].Title)
	assert.Equal(t, entity.CategoryOther, insights[0].Category)
	assert.Equal(t, entity.SeverityMedium, insights[0].Severity)
}

func TestRefreshInsights_SingleFlightPerCompany(t *testing.T) {
	f := newOrchestratorFixture(t)
	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	f.waitForPipeline(t, company.ID)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.ai.insightsFn = func() (*dto.InsightListResult, error) {
		close(entered)
		<-release
		return &dto.InsightListResult{}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.RefreshInsights(context.Background(), company.ID)
		done <- err
	}()
	<-entered

	_, err = f.orch.RefreshInsights(context.Background(), company.ID)
	assert.ErrorIs(t, err, ErrRefreshInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestInsightStage_SharesGuardWithManualRefresh(t *testing.T) {
	f := newOrchestratorFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.ai.insightsFn = func() (*dto.InsightListResult, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return &dto.InsightListResult{Insights: []dto.InsightResult{{Title: "Watch Beta Corp"}}}, nil
	}

	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)

	// pipeline is inside its insight stage and holds the guard
	<-entered
	_, err = f.orch.RefreshInsights(context.Background(), company.ID)
	assert.ErrorIs(t, err, ErrRefreshInFlight)

	close(release)
	got := f.waitForPipeline(t, company.ID)
	assert.Equal(t, entity.StageCompleted, got.Pipeline.Insights)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInsightStage_SkipsWhileRefreshInFlight(t *testing.T) {
	f := newOrchestratorFixture(t)
	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	f.waitForPipeline(t, company.ID)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.ai.insightsFn = func() (*dto.InsightListResult, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return &dto.InsightListResult{}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.RefreshInsights(context.Background(), company.ID)
		done <- err
	}()
	<-entered

	// the stage must yield to the in-flight refresh, not run a second
	// generation alongside it
	f.orch.runInsightStage(context.Background(), company.ID)

	got, err := f.store.GetCompany(company.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StageCompleted, got.Pipeline.Insights)
	assert.EqualValues(t, 1, calls.Load())

	close(release)
	require.NoError(t, <-done)
}

func TestRefreshInsights_AtomicUnderConcurrentRead(t *testing.T) {
	f := newOrchestratorFixture(t)
	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	f.waitForPipeline(t, company.ID)

	oldTitles := map[string]bool{"Watch Beta Corp": true}
	newTitles := map[string]bool{"New pricing angle": true, "New channel angle": true}
	f.ai.insightsFn = func() (*dto.InsightListResult, error) {
		time.Sleep(5 * time.Millisecond)
		return &dto.InsightListResult{Insights: []dto.InsightResult{
			{Title: "New pricing angle", Category: "market", Severity: "high"},
			{Title: "New channel angle", Category: "market", Severity: "low"},
		}}, nil
	}

	stop := make(chan struct{})
	violation := make(chan string, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			before, err := f.store.ListInsights(company.ID)
			if err != nil {
				continue
			}
			chunks, err := f.store.ChunksForCompany(company.ID)
			if err != nil {
				continue
			}
			after, err := f.store.ListInsights(company.ID)
			if err != nil || !sameInsightIDs(before, after) {
				// a swap landed mid-read, retry
				continue
			}

			var stale, fresh int
			ids := make(map[string]bool, len(after))
			for _, ins := range after {
				ids[ins.ID] = true
				switch {
				case oldTitles[ins.Title]:
					stale++
				case newTitles[ins.Title]:
					fresh++
				}
			}
			if stale > 0 && fresh > 0 {
				violation <- fmt.Sprintf("mixed insight set: %d old, %d new", stale, fresh)
				return
			}
			for _, ch := range chunks {
				if ch.SourceType == entity.SourceInsight && !ids[ch.SourceID] {
					violation <- "insight chunk references insight absent from current set"
					return
				}
			}
		}
	}()

	for i := 0; i < 5; i++ {
		_, err := f.orch.RefreshInsights(context.Background(), company.ID)
		require.NoError(t, err)
	}
	close(stop)

	select {
	case msg := <-violation:
		t.Fatal(msg)
	default:
	}

	insights, err := f.store.ListInsights(company.ID)
	require.NoError(t, err)
	require.Len(t, insights, 2)

	finalIDs := map[string]bool{insights[0].ID: true, insights[1].ID: true}
	chunks, err := f.store.ChunksForCompany(company.ID)
	require.NoError(t, err)
	for _, ch := range chunks {
		if ch.SourceType == entity.SourceInsight {
			assert.True(t, finalIDs[ch.SourceID])
		}
	}
}

func sameInsightIDs(a, b []entity.Insight) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func TestStartAnalysis_SetsPlaceholderWelcome(t *testing.T) {
	f := newOrchestratorFixture(t)
	company, err := f.orch.StartAnalysis(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Contains(t, company.WelcomeMessage, "Acme")

	// the profile stage greeting replaces the placeholder
	got := f.waitForPipeline(t, company.ID)
	assert.Equal(t, "Welcome!", got.WelcomeMessage)
}

func TestRefreshInsights_UnknownCompany(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, err := f.orch.RefreshInsights(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

type researchFixture struct {
	manager *ResearchManager
	store   *store.Store
	ai      *fakeAI
	company entity.Company
	comp    entity.Competitor
}

func newResearchFixture(t *testing.T) *researchFixture {
	t.Helper()
	st := store.New()
	ai := &fakeAI{}
	cfg := testConfig()
	log := logger.NewNop()

	company, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)
	comp, err := st.CreateCompetitor(entity.Competitor{CompanyID: company.ID, Name: "Beta Corp", Description: "rival"})
	require.NoError(t, err)

	retrieval := NewRetrievalEngine(st, newFakeEmbedder(), cfg, log)
	manager := NewResearchManager(st, ai, retrieval, NewDocumentRenderer(), cfg, log)
	return &researchFixture{manager: manager, store: st, ai: ai, company: company, comp: comp}
}

func (f *researchFixture) waitForStatus(t *testing.T, want entity.ResearchStatus) entity.Competitor {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := f.store.GetCompetitor(f.comp.ID)
		return err == nil && c.DeepResearchStatus == want
	}, 5*time.Second, 10*time.Millisecond)
	c, err := f.store.GetCompetitor(f.comp.ID)
	require.NoError(t, err)
	return c
}

func TestTrigger_UnknownCompetitor(t *testing.T) {
	f := newResearchFixture(t)
	_, err := f.manager.Trigger(context.Background(), "nope", false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrigger_RunsJobToCompletion(t *testing.T) {
	f := newResearchFixture(t)

	status, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.ResearchPending, status)

	got := f.waitForStatus(t, entity.ResearchCompleted)
	assert.Contains(t, got.DeepResearchMarkdown, "Beta Corp")
	assert.NotEmpty(t, got.DeepResearchArtifact)
	assert.Empty(t, got.RenderError)
	require.NotNil(t, got.ResearchCompletedAt)

	// the report entered the retrieval corpus
	chunks, err := f.store.ChunksForCompany(f.company.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, entity.SourceDeepResearch, chunks[0].SourceType)
}

func TestTrigger_PendingIsIdempotent(t *testing.T) {
	f := newResearchFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.ai.researchFn = func(string) (string, error) {
		close(started)
		<-release
		return "# Report", nil
	}

	_, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	require.NoError(t, err)
	<-started

	status, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	assert.ErrorIs(t, err, ErrResearchPending)
	assert.Equal(t, entity.ResearchPending, status)

	close(release)
	f.waitForStatus(t, entity.ResearchCompleted)
}

func TestTrigger_CompletedRequiresRegenerate(t *testing.T) {
	f := newResearchFixture(t)

	_, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	require.NoError(t, err)
	f.waitForStatus(t, entity.ResearchCompleted)

	status, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	assert.ErrorIs(t, err, ErrResearchCompleted)
	assert.Equal(t, entity.ResearchCompleted, status)

	status, err = f.manager.Trigger(context.Background(), f.comp.ID, true)
	require.NoError(t, err)
	assert.Equal(t, entity.ResearchPending, status)
	f.waitForStatus(t, entity.ResearchCompleted)
}

func TestTrigger_FailedJobAllowsRetry(t *testing.T) {
	f := newResearchFixture(t)
	f.ai.researchFn = func(string) (string, error) {
		return "", errors.New("model timeout")
	}

	_, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	require.NoError(t, err)
	f.waitForStatus(t, entity.ResearchError)

	f.ai.researchFn = nil
	status, err := f.manager.Trigger(context.Background(), f.comp.ID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.ResearchPending, status)
	f.waitForStatus(t, entity.ResearchCompleted)
}

func TestDocument_WhenRenderFailed(t *testing.T) {
	f := newResearchFixture(t)
	require.NoError(t, f.store.SetResearchResult(f.comp.ID, entity.ResearchCompleted, "# Report", nil, "render boom"))

	_, _, err := f.manager.Document(f.comp.ID)
	assert.ErrorIs(t, err, ErrArtifactUnavailable)
}

func TestDocument_WhenNotCompleted(t *testing.T) {
	f := newResearchFixture(t)
	_, _, err := f.manager.Document(f.comp.ID)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestTriggerBatch_ReportsPerCompetitorOutcomes(t *testing.T) {
	f := newResearchFixture(t)
	other, err := f.store.CreateCompetitor(entity.Competitor{CompanyID: f.company.ID, Name: "Gamma Inc"})
	require.NoError(t, err)

	results, err := f.manager.TriggerBatch(context.Background(), f.company.ID,
		[]string{f.comp.ID, other.ID, "unknown"}, false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, entity.ResearchPending, results[0].Status)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, entity.ResearchPending, results[1].Status)
	assert.NotEmpty(t, results[2].Error)

	f.waitForStatus(t, entity.ResearchCompleted)
}

func TestTriggerBatch_RejectsForeignCompetitor(t *testing.T) {
	f := newResearchFixture(t)
	otherCompany, err := f.store.CreateCompany(entity.Company{Name: "Other"})
	require.NoError(t, err)
	foreign, err := f.store.CreateCompetitor(entity.Competitor{CompanyID: otherCompany.ID, Name: "Delta"})
	require.NoError(t, err)

	results, err := f.manager.TriggerBatch(context.Background(), f.company.ID, []string{foreign.ID}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)

	got, err := f.store.GetCompetitor(foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ResearchNotStarted, got.DeepResearchStatus)
}

func TestCombinedDocument_SkipsIncompleteReports(t *testing.T) {
	f := newResearchFixture(t)
	other, err := f.store.CreateCompetitor(entity.Competitor{CompanyID: f.company.ID, Name: "Gamma Inc"})
	require.NoError(t, err)

	require.NoError(t, f.store.SetResearchResult(f.comp.ID, entity.ResearchCompleted, "# Beta Report\n\nBody.", []byte("x"), ""))

	doc, err := f.manager.CombinedDocument(f.company.ID, []string{f.comp.ID, other.ID})
	require.NoError(t, err)
	html := string(doc)
	assert.Contains(t, html, "Beta Corp")
	assert.NotContains(t, html, "Gamma Inc")
}

func TestCombinedDocument_NoCompletedReports(t *testing.T) {
	f := newResearchFixture(t)
	_, err := f.manager.CombinedDocument(f.company.ID, nil)
	assert.ErrorIs(t, err, store.ErrConflict)
}

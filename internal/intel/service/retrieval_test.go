package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

func TestSplitText_ShortTextIsOneChunk(t *testing.T) {
	chunks := splitText("Acme builds widgets.", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Acme builds widgets.", chunks[0])
}

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, splitText("   \n", 1000, 200))
}

func TestSplitText_LongTextOverlaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("The market keeps moving. ")
	}
	chunks := splitText(b.String(), 1000, 200)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1000)
		assert.NotEmpty(t, c)
	}
	// consecutive chunks share overlapping text
	tail := chunks[0][len(chunks[0])-50:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestSplitText_PrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("a", 600)
	para2 := strings.Repeat("b", 600)
	chunks := splitText(para1+"\n\n"+para2, 1000, 200)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, para1, chunks[0])
}

func newTestRetrieval(t *testing.T) (*RetrievalEngine, *store.Store, *fakeEmbedder) {
	t.Helper()
	st := store.New()
	emb := newFakeEmbedder()
	engine := NewRetrievalEngine(st, emb, testConfig(), logger.NewNop())
	return engine, st, emb
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	engine, st, _ := newTestRetrieval(t)
	c, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)

	hits, err := engine.Retrieve(context.Background(), c.ID, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieve_RanksByCosineSimilarity(t *testing.T) {
	engine, st, emb := newTestRetrieval(t)
	c, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, st.ReplaceChunks(c.ID, entity.SourceNews, "n1", []entity.Chunk{
		{Text: "about pricing", Embedding: []float32{1, 0, 0}},
	}))
	require.NoError(t, st.ReplaceChunks(c.ID, entity.SourceNews, "n2", []entity.Chunk{
		{Text: "about hiring", Embedding: []float32{0, 1, 0}},
	}))
	require.NoError(t, st.ReplaceChunks(c.ID, entity.SourceNews, "n3", []entity.Chunk{
		{Text: "mixed", Embedding: []float32{1, 1, 0}},
	}))
	emb.set("pricing question", []float32{1, 0, 0})

	hits, err := engine.Retrieve(context.Background(), c.ID, "pricing question", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "about pricing", hits[0].Chunk.Text)
	assert.Equal(t, "mixed", hits[1].Chunk.Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestRetrieve_ScopedToCompany(t *testing.T) {
	engine, st, emb := newTestRetrieval(t)
	acme, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)
	beta, err := st.CreateCompany(entity.Company{Name: "Beta Corp"})
	require.NoError(t, err)

	require.NoError(t, st.ReplaceChunks(acme.ID, entity.SourceNews, "a", []entity.Chunk{
		{Text: "acme news", Embedding: []float32{1, 0, 0}},
	}))
	require.NoError(t, st.ReplaceChunks(beta.ID, entity.SourceNews, "b", []entity.Chunk{
		{Text: "beta news", Embedding: []float32{1, 0, 0}},
	}))
	emb.set("news", []float32{1, 0, 0})

	hits, err := engine.Retrieve(context.Background(), acme.ID, "news", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "acme news", hits[0].Chunk.Text)
}

func TestIndexCompanyProfile(t *testing.T) {
	engine, st, _ := newTestRetrieval(t)
	c, err := st.CreateCompany(entity.Company{Name: "Acme", Description: "widget maker", Industry: "Widgets"})
	require.NoError(t, err)

	require.NoError(t, engine.IndexCompanyProfile(context.Background(), c.ID))

	chunks, err := st.ChunksForCompany(c.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, entity.SourceCompanyProfile, chunks[0].SourceType)
	assert.Contains(t, chunks[0].Text, "Acme")
	assert.Contains(t, chunks[0].Text, "widget maker")
	assert.NotEmpty(t, chunks[0].Embedding)
}

func TestIndexInsights_ReplacesSupersededChunks(t *testing.T) {
	engine, st, _ := newTestRetrieval(t)
	c, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)

	_, err = st.ReplaceInsights(c.ID, []entity.Insight{
		{Title: "Old insight", Description: "stale", Category: entity.CategoryMarket, Severity: entity.SeverityLow},
	})
	require.NoError(t, err)
	require.NoError(t, engine.IndexInsights(context.Background(), c.ID))

	_, err = st.ReplaceInsights(c.ID, []entity.Insight{
		{Title: "New insight", Description: "fresh", Category: entity.CategoryMarket, Severity: entity.SeverityLow},
	})
	require.NoError(t, err)
	require.NoError(t, engine.IndexInsights(context.Background(), c.ID))

	chunks, err := st.ChunksForCompany(c.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "New insight")
}

func TestIndexResearch_SkipsEmptyReport(t *testing.T) {
	engine, st, _ := newTestRetrieval(t)
	c, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, engine.IndexResearch(context.Background(), entity.Competitor{
		CompanyID: c.ID, Name: "Beta Corp",
	}))

	chunks, err := st.ChunksForCompany(c.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
}

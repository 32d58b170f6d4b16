package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

type chatFixture struct {
	chat    *ChatService
	store   *store.Store
	ai      *fakeAI
	emb     *fakeEmbedder
	company entity.Company
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	st := store.New()
	ai := &fakeAI{}
	emb := newFakeEmbedder()
	cfg := testConfig()
	log := logger.NewNop()

	company, err := st.CreateCompany(entity.Company{Name: "Acme"})
	require.NoError(t, err)

	retrieval := NewRetrievalEngine(st, emb, cfg, log)
	chat := NewChatService(st, ai, retrieval, cfg, log)
	return &chatFixture{chat: chat, store: st, ai: ai, emb: emb, company: company}
}

func TestAnswer_RejectsBlankQuestion(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.chat.Answer(context.Background(), f.company.ID, "  \n ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswer_UnknownCompany(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.chat.Answer(context.Background(), "nope", "who are the competitors?")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnswer_EmptyCorpusStillAnswers(t *testing.T) {
	f := newChatFixture(t)

	resp, err := f.chat.Answer(context.Background(), f.company.ID, "what do you know?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, f.ai.lastPrompt(), "No specific data available for this company yet")
}

func TestAnswer_GroundsPromptInRetrievedContext(t *testing.T) {
	f := newChatFixture(t)
	require.NoError(t, f.store.ReplaceChunks(f.company.ID, entity.SourceNews, "n1", []entity.Chunk{
		{Text: "Acme raised prices in March.", Embedding: []float32{1, 0, 0}},
	}))
	f.emb.set("what happened to prices?", []float32{1, 0, 0})

	resp, err := f.chat.Answer(context.Background(), f.company.ID, "what happened to prices?")
	require.NoError(t, err)

	assert.Contains(t, f.ai.lastPrompt(), "Acme raised prices in March.")
	assert.Contains(t, f.ai.lastPrompt(), "what happened to prices?")
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, entity.SourceNews, resp.Sources[0].SourceType)
	assert.Equal(t, "n1", resp.Sources[0].SourceID)
	assert.Greater(t, resp.Sources[0].Score, 0.0)
}

func TestAnswer_DeduplicatesSourcesPerEntity(t *testing.T) {
	f := newChatFixture(t)
	require.NoError(t, f.store.ReplaceChunks(f.company.ID, entity.SourceDeepResearch, "comp-1", []entity.Chunk{
		{Seq: 0, Text: "part one", Embedding: []float32{1, 0, 0}},
		{Seq: 1, Text: "part two", Embedding: []float32{1, 0, 0}},
	}))
	f.emb.set("report", []float32{1, 0, 0})

	resp, err := f.chat.Answer(context.Background(), f.company.ID, "report")
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 1)
}

package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/internal/intel/repository"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

// ScoredChunk is one retrieval result with its similarity score.
type ScoredChunk struct {
	Chunk entity.Chunk
	Score float64
}

// RetrievalEngine maintains the semantic index over the corpus and answers
// top-K relevance queries. Chunks and their vectors live in the store,
// scoped per company; updates are incremental per source entity.
type RetrievalEngine struct {
	store     *store.Store
	embedRepo repository.EmbeddingRepository
	cfg       *config.Config
	logger    *logger.Logger
}

// NewRetrievalEngine creates a new RetrievalEngine.
func NewRetrievalEngine(st *store.Store, embedRepo repository.EmbeddingRepository, cfg *config.Config, log *logger.Logger) *RetrievalEngine {
	return &RetrievalEngine{
		store:     st,
		embedRepo: embedRepo,
		cfg:       cfg,
		logger:    log,
	}
}

// IndexCompanyProfile (re)indexes the company's own profile text.
func (e *RetrievalEngine) IndexCompanyProfile(ctx context.Context, companyID string) error {
	company, err := e.store.GetCompany(companyID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Company Information:\nName: %s\nDescription: %s\nIndustry: %s",
		company.Name, orNA(company.Description), orNA(company.Industry))
	return e.indexSource(ctx, companyID, entity.SourceCompanyProfile, company.ID, text)
}

// IndexCompetitorProfile (re)indexes one competitor's profile text.
func (e *RetrievalEngine) IndexCompetitorProfile(ctx context.Context, comp entity.Competitor) error {
	text := fmt.Sprintf("Competitor Information: %s\nDescription: %s\nStrengths: %s\nWeaknesses: %s",
		comp.Name, orNA(comp.Description),
		orNA(strings.Join(comp.Strengths, "; ")), orNA(strings.Join(comp.Weaknesses, "; ")))
	return e.indexSource(ctx, comp.CompanyID, entity.SourceCompetitorProfile, comp.ID, text)
}

// IndexNews indexes newly appended articles. News chunks are append-only
// and never re-embedded once written.
func (e *RetrievalEngine) IndexNews(ctx context.Context, articles []entity.NewsArticle) error {
	for _, a := range articles {
		published := "N/A"
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format("2006-01-02")
		}
		text := fmt.Sprintf("News/Development:\nTitle: %s\nSource: %s\nPublished: %s\nContent: %s",
			a.Title, orNA(a.Source), published, orNA(firstNonEmptyText(a.Content, a.Summary)))
		if err := e.indexSource(ctx, a.CompanyID, entity.SourceNews, a.ID, text); err != nil {
			return err
		}
	}
	return nil
}

// IndexInsights replaces all insight chunks for the company with chunks for
// the current insight set. An insight refresh therefore removes superseded
// chunks from subsequent retrieval results.
func (e *RetrievalEngine) IndexInsights(ctx context.Context, companyID string) error {
	insights, err := e.store.ListInsights(companyID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteChunksByType(companyID, entity.SourceInsight); err != nil {
		return err
	}
	for _, ins := range insights {
		text := fmt.Sprintf("Strategic Insight (%s, severity %s):\n%s: %s",
			ins.Category, ins.Severity, ins.Title, ins.Description)
		if err := e.indexSource(ctx, companyID, entity.SourceInsight, ins.ID, text); err != nil {
			return err
		}
	}
	return nil
}

// IndexResearch indexes a completed deep-research report, chunking the
// long markdown into overlapping passages.
func (e *RetrievalEngine) IndexResearch(ctx context.Context, comp entity.Competitor) error {
	if comp.DeepResearchMarkdown == "" {
		return nil
	}
	text := fmt.Sprintf("Deep Research Report for %s:\n\n%s", comp.Name, comp.DeepResearchMarkdown)
	return e.indexSource(ctx, comp.CompanyID, entity.SourceDeepResearch, comp.ID, text)
}

func (e *RetrievalEngine) indexSource(ctx context.Context, companyID string, sourceType entity.SourceType, sourceID, text string) error {
	passages := splitText(text, e.cfg.Pipeline.ChunkSize, e.cfg.Pipeline.ChunkOverlap)
	if len(passages) == 0 {
		return e.store.DeleteChunksBySource(companyID, sourceType, sourceID)
	}

	vectors, err := e.embedRepo.Embed(ctx, passages)
	if err != nil {
		return fmt.Errorf("failed to embed %s/%s: %w", sourceType, sourceID, err)
	}

	chunks := make([]entity.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = entity.Chunk{
			Seq:       i,
			Text:      p,
			Embedding: vectors[i],
		}
	}
	if err := e.store.ReplaceChunks(companyID, sourceType, sourceID, chunks); err != nil {
		return err
	}

	e.logger.Debug("Indexed source",
		logger.StringField("company_id", companyID),
		logger.StringField("source_type", string(sourceType)),
		logger.IntField("chunks", len(chunks)),
	)
	return nil
}

// Retrieve returns the top-K chunks for the query, ranked by cosine
// similarity with ties broken by most recent source. An empty corpus
// yields an empty result, not an error.
func (e *RetrievalEngine) Retrieve(ctx context.Context, companyID, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = e.cfg.Pipeline.RetrievalTopK
	}
	chunks, err := e.store.ChunksForCompany(companyID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, err := e.embedRepo.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vectors[0]

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, ch := range chunks {
		scored = append(scored, ScoredChunk{Chunk: ch, Score: cosineSimilarity(queryVec, ch.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.CreatedAt.After(scored[j].Chunk.CreatedAt)
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// splitText splits text into overlapping passages of at most size runes,
// preferring paragraph and sentence boundaries. Texts within the limit
// come back as a single passage.
func splitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var passages []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			passages = append(passages, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := boundaryBefore(runes, start, end)
		passages = append(passages, strings.TrimSpace(string(runes[start:cut])))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	kept := passages[:0]
	for _, p := range passages {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return kept
}

// boundaryBefore finds the best split point at or before end: a paragraph
// break, then a sentence end, then a word break, then a hard cut.
func boundaryBefore(runes []rune, start, end int) int {
	min := start + (end-start)/2
	for i := end; i > min; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > min; i-- {
		switch runes[i-1] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	for i := end; i > min; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return end
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func firstNonEmptyText(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

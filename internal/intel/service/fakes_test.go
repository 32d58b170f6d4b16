package service

import (
	"context"
	"sync"
	"time"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/internal/intel/dto"
)

// fakeAI is a scriptable AIRepository for service tests.
type fakeAI struct {
	mu sync.Mutex

	analyzeFn  func(companyName string) (*dto.CompanyProfileResult, error)
	identifyFn func(strict bool) (*dto.CompetitorListResult, error)
	insightsFn func() (*dto.InsightListResult, error)
	researchFn func(competitorName string) (string, error)
	generateFn func(prompt string) (string, error)

	identifyCalls  []bool
	generatePrompt string
}

func (f *fakeAI) AnalyzeCompany(_ context.Context, companyName string) (*dto.CompanyProfileResult, error) {
	if f.analyzeFn != nil {
		return f.analyzeFn(companyName)
	}
	return &dto.CompanyProfileResult{
		Description:    companyName + " builds widgets",
		Industry:       "Widgets",
		WelcomeMessage: "Welcome!",
	}, nil
}

func (f *fakeAI) IdentifyCompetitors(_ context.Context, _, _, _ string, _ int, strict bool) (*dto.CompetitorListResult, error) {
	f.mu.Lock()
	f.identifyCalls = append(f.identifyCalls, strict)
	f.mu.Unlock()
	if f.identifyFn != nil {
		return f.identifyFn(strict)
	}
	return &dto.CompetitorListResult{Competitors: []dto.CompetitorResult{
		{Name: "Beta Corp", Description: "rival", Strengths: []string{"fast"}, Weaknesses: []string{"pricey"}},
	}}, nil
}

func (f *fakeAI) GenerateInsights(_ context.Context, _ string, _ []entity.Competitor, _ []entity.NewsArticle) (*dto.InsightListResult, error) {
	if f.insightsFn != nil {
		return f.insightsFn()
	}
	return &dto.InsightListResult{Insights: []dto.InsightResult{
		{Title: "Watch Beta Corp", Description: "they grow", Category: "competitor", Severity: "high", RelatedCompetitors: []string{"Beta Corp"}},
	}}, nil
}

func (f *fakeAI) DeepResearch(_ context.Context, competitorName, _, _ string) (string, error) {
	if f.researchFn != nil {
		return f.researchFn(competitorName)
	}
	return "# Report\n\n## Overview\n\nDetails about " + competitorName + ".", nil
}

func (f *fakeAI) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.generatePrompt = prompt
	f.mu.Unlock()
	if f.generateFn != nil {
		return f.generateFn(prompt)
	}
	return "Here is what I know.", nil
}

func (f *fakeAI) strictCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.identifyCalls))
	copy(out, f.identifyCalls)
	return out
}

func (f *fakeAI) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generatePrompt
}

// fakeEmbedder maps known texts to fixed vectors and everything else to a
// default direction, so ranking is deterministic.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) set(text string, vec []float32) {
	f.mu.Lock()
	f.vectors[text] = vec
	f.mu.Unlock()
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 1, 1}
		}
	}
	return out, nil
}

// fakeNews returns a fixed set of articles per entity name.
type fakeNews struct {
	mu       sync.Mutex
	articles map[string][]entity.NewsArticle
	err      error
}

func (f *fakeNews) Search(_ context.Context, entityName string) ([]entity.NewsArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.articles[entityName], nil
}

type nopNotifier struct{}

func (nopNotifier) SendMessage(string) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.Pipeline{
			WorkerCount:   2,
			QueueSize:     16,
			StageTimeout:  5 * time.Second,
			CompetitorMax: 10,
			ChunkSize:     1000,
			ChunkOverlap:  200,
			RetrievalTopK: 5,
		},
		News: config.News{
			MaxConcurrent: 2,
			MaxArticles:   10,
		},
		Gemini: config.Gemini{
			ResearchTimeout: 5 * time.Second,
		},
	}
}

package repository

import (
	"context"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/dto"
)

// AIRepository is the generative-language provider contract. Structured
// calls return parse results or a *dto.ParseError when the model output
// cannot be decoded.
type AIRepository interface {
	// AnalyzeCompany produces the profile-stage result for a company name.
	AnalyzeCompany(ctx context.Context, companyName string) (*dto.CompanyProfileResult, error)
	// IdentifyCompetitors requests up to max competitors. strict selects
	// the tightened retry prompt used after a parse failure.
	IdentifyCompetitors(ctx context.Context, companyName, description, industry string, max int, strict bool) (*dto.CompetitorListResult, error)
	// GenerateInsights synthesizes insights from competitor and news context.
	GenerateInsights(ctx context.Context, companyName string, competitors []entity.Competitor, news []entity.NewsArticle) (*dto.InsightListResult, error)
	// DeepResearch produces a long-form markdown report for one competitor.
	// It is allowed a materially larger timeout than the other calls.
	DeepResearch(ctx context.Context, competitorName, competitorDescription, companyName string) (string, error)
	// Generate answers a fully built prompt with plain prose.
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbeddingRepository maps texts to fixed-dimension vectors.
type EmbeddingRepository interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewsRepository queries the news provider for recent articles about an
// entity. Returned articles carry no IDs; the caller assigns them on store.
type NewsRepository interface {
	Search(ctx context.Context, entityName string) ([]entity.NewsArticle, error)
}

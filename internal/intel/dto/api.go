package dto

import (
	"time"

	"competitive-intel-agent/internal/entity"
)

// CreateCompanyRequest starts an analysis.
type CreateCompanyRequest struct {
	Name string `json:"name"`
}

// CompanyResponse is the company read model. Profile fields may be empty
// while the profile stage is still running.
type CompanyResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	Industry       string                `json:"industry,omitempty"`
	WelcomeMessage string                `json:"welcome_message,omitempty"`
	Pipeline       entity.PipelineStatus `json:"pipeline"`
	CreatedAt      time.Time             `json:"created_at"`
}

// CompetitorsListResponse lists a company's competitors.
type CompetitorsListResponse struct {
	CompanyID   string              `json:"company_id"`
	CompanyName string              `json:"company_name"`
	Competitors []entity.Competitor `json:"competitors"`
}

// CompetitorNewsResponse lists news for one competitor.
type CompetitorNewsResponse struct {
	CompetitorID   string               `json:"competitor_id"`
	CompetitorName string               `json:"competitor_name"`
	Articles       []entity.NewsArticle `json:"articles"`
}

// CompanyNewsResponse lists news for a company and all of its competitors.
type CompanyNewsResponse struct {
	CompanyID string               `json:"company_id"`
	Articles  []entity.NewsArticle `json:"articles"`
}

// CompanyInsightsResponse is the current insight set for a company.
type CompanyInsightsResponse struct {
	CompanyID   string           `json:"company_id"`
	CompanyName string           `json:"company_name"`
	Insights    []entity.Insight `json:"insights"`
}

// ResearchTriggerResult reports the outcome of one deep-research trigger.
type ResearchTriggerResult struct {
	CompetitorID string                `json:"competitor_id"`
	Status       entity.ResearchStatus `json:"status"`
	Error        string                `json:"error,omitempty"`
}

// BatchResearchRequest triggers deep research for several competitors.
type BatchResearchRequest struct {
	CompanyID     string   `json:"company_id"`
	CompetitorIDs []string `json:"competitor_ids"`
	Regenerate    bool     `json:"regenerate,omitempty"`
}

// BatchResearchResponse reports per-competitor trigger outcomes.
type BatchResearchResponse struct {
	Results []ResearchTriggerResult `json:"results"`
}

// ChatRequest is a free-text question about a company's corpus.
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatSource is one provenance entry backing a chat answer.
type ChatSource struct {
	entity.Provenance
	Score float64 `json:"score"`
}

// ChatResponse is a grounded answer with its supporting sources.
type ChatResponse struct {
	Answer    string       `json:"answer"`
	Sources   []ChatSource `json:"sources"`
	Timestamp time.Time    `json:"timestamp"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

package entity

import "time"

// InsightCategory classifies a strategic insight.
type InsightCategory string

const (
	CategoryMarket     InsightCategory = "market"
	CategoryCompetitor InsightCategory = "competitor"
	CategoryProduct    InsightCategory = "product"
	CategoryStrategy   InsightCategory = "strategy"
	CategoryOther      InsightCategory = "other"
)

// InsightSeverity grades how urgent an insight is.
type InsightSeverity string

const (
	SeverityLow    InsightSeverity = "low"
	SeverityMedium InsightSeverity = "medium"
	SeverityHigh   InsightSeverity = "high"
)

// Insight is one AI-generated strategic observation for a company.
// A company's insight set is always replaced as a unit.
type Insight struct {
	ID                   string          `json:"id"`
	CompanyID            string          `json:"company_id"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Category             InsightCategory `json:"category"`
	Severity             InsightSeverity `json:"severity"`
	RelatedCompetitorIDs []string        `json:"related_competitor_ids"`
	CreatedAt            time.Time       `json:"created_at"`
}

// NormalizeCategory maps free-form model output onto a known category.
func NormalizeCategory(s string) InsightCategory {
	switch InsightCategory(s) {
	case CategoryMarket, CategoryCompetitor, CategoryProduct, CategoryStrategy:
		return InsightCategory(s)
	default:
		return CategoryOther
	}
}

// NormalizeSeverity maps free-form model output onto a known severity.
func NormalizeSeverity(s string) InsightSeverity {
	switch InsightSeverity(s) {
	case SeverityLow, SeverityHigh:
		return InsightSeverity(s)
	default:
		return SeverityMedium
	}
}

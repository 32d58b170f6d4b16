package entity

import "time"

// NewsArticle is one collected news item. Articles are immutable once
// stored; re-running the news stage appends, never overwrites.
type NewsArticle struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	CompetitorID string     `json:"competitor_id,omitempty"`
	Title        string     `json:"title"`
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Content      string     `json:"content,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

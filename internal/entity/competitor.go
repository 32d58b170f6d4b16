package entity

import "time"

// ResearchStatus is the deep-research job state for one competitor.
type ResearchStatus string

const (
	ResearchNotStarted ResearchStatus = "not_started"
	ResearchPending    ResearchStatus = "pending"
	ResearchCompleted  ResearchStatus = "completed"
	ResearchError      ResearchStatus = "error"
)

// Competitor is a rival identified for a company. The DeepResearch* fields
// are mutated only by the research job manager.
type Competitor struct {
	ID          string   `json:"id"`
	CompanyID   string   `json:"company_id"`
	Name        string   `json:"name"`
	Industry    string   `json:"industry,omitempty"`
	Description string   `json:"description,omitempty"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`

	DeepResearchStatus   ResearchStatus `json:"deep_research_status"`
	DeepResearchMarkdown string         `json:"deep_research_markdown,omitempty"`
	// DeepResearchArtifact holds the rendered, print-paginated document.
	// It may be empty even when the markdown completed; RenderError then
	// records why the artifact is missing.
	DeepResearchArtifact []byte `json:"-"`
	RenderError          string `json:"render_error,omitempty"`

	CreatedAt           time.Time  `json:"created_at"`
	ResearchCompletedAt *time.Time `json:"research_completed_at,omitempty"`
}

package entity

import "time"

// SourceType names the kind of corpus entity a chunk was derived from.
type SourceType string

const (
	SourceCompanyProfile    SourceType = "company_profile"
	SourceCompetitorProfile SourceType = "competitor_profile"
	SourceNews              SourceType = "news"
	SourceInsight           SourceType = "insight"
	SourceDeepResearch      SourceType = "deep_research"
)

// Chunk is a bounded-length passage of corpus text, the unit of embedding
// and retrieval. Chunks are never mutated in place: when a source entity's
// text changes, all of its chunks are replaced wholesale.
type Chunk struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	Seq        int        `json:"seq"`
	Text       string     `json:"text"`
	Embedding  []float32  `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Provenance ties a retrieved chunk back to its originating entity.
type Provenance struct {
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	Title      string     `json:"title,omitempty"`
}

// Provenance identifies the entity this chunk was derived from.
func (c Chunk) Provenance() Provenance {
	return Provenance{SourceType: c.SourceType, SourceID: c.SourceID}
}

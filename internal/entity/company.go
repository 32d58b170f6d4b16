package entity

import "time"

// StageStatus describes the progress of one analysis pipeline stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// PipelineStatus tracks the per-stage progress of a company analysis.
// Absence of data on the read endpoints means the stage has not completed;
// this struct lets callers distinguish "still running" from "ran and failed".
type PipelineStatus struct {
	Profile     StageStatus `json:"profile"`
	Competitors StageStatus `json:"competitors"`
	News        StageStatus `json:"news"`
	Insights    StageStatus `json:"insights"`
}

// NewPipelineStatus returns a status with every stage pending.
func NewPipelineStatus() PipelineStatus {
	return PipelineStatus{
		Profile:     StagePending,
		Competitors: StagePending,
		News:        StagePending,
		Insights:    StagePending,
	}
}

// Company is the subject of an analysis request.
type Company struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Industry       string         `json:"industry,omitempty"`
	Description    string         `json:"description,omitempty"`
	WelcomeMessage string         `json:"welcome_message,omitempty"`
	Website        string         `json:"website,omitempty"`
	FoundedYear    int            `json:"founded_year,omitempty"`
	Pipeline       PipelineStatus `json:"pipeline"`
	CreatedAt      time.Time      `json:"created_at"`
}

package dto

import "fmt"

// GeminiAPIRequest is the request payload for the Gemini generateContent API.
type GeminiAPIRequest struct {
	Contents []Content `json:"contents"`
}

// Content represents the content of a request or response.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a part of the content.
type Part struct {
	Text string `json:"text"`
}

// GeminiAPIResponse is the response from the Gemini API.
type GeminiAPIResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a candidate response from the Gemini API.
type Candidate struct {
	Content Content `json:"content"`
}

// ParseError marks a structurally invalid model response. It is recovered
// locally with at most one stricter retry before the stage degrades to an
// empty result.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CompanyProfileResult is the expected JSON structure for the profile stage.
type CompanyProfileResult struct {
	Description    string `json:"description"`
	Industry       string `json:"industry"`
	WelcomeMessage string `json:"welcome_message"`
}

// CompetitorResult is one competitor entry in the identification response.
type CompetitorResult struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// CompetitorListResult is the expected JSON structure for competitor identification.
type CompetitorListResult struct {
	Competitors []CompetitorResult `json:"competitors"`
}

// InsightResult is one insight entry in the insight-generation response.
type InsightResult struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Severity           string   `json:"severity"`
	RelatedCompetitors []string `json:"related_competitors"`
}

// InsightListResult is the expected JSON structure for the insight stage.
type InsightListResult struct {
	Insights []InsightResult `json:"insights"`
}

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var (
	jsonFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	wholeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// geminiAIRepository implements AIRepository against the Google Gemini API.
type geminiAIRepository struct {
	client         *http.Client
	researchClient *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiAIRepository creates a new instance of geminiAIRepository.
func NewGeminiAIRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (AIRepository, error) {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)
	tokenLimiter := ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute)

	return &geminiAIRepository{
		client:         &http.Client{Timeout: cfg.Gemini.RequestTimeout},
		researchClient: &http.Client{Timeout: cfg.Gemini.ResearchTimeout},
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
		genAiClient:    genAiClient,
	}, nil
}

// AnalyzeCompany performs the profile-stage analysis for a company name.
func (r *geminiAIRepository) AnalyzeCompany(ctx context.Context, companyName string) (*dto.CompanyProfileResult, error) {
	prompt := BuildCompanyProfilePrompt(companyName)

	raw, err := r.executeGeminiAIRequest(ctx, r.client, r.cfg.Gemini.Model, prompt)
	if err != nil {
		return nil, err
	}

	var result dto.CompanyProfileResult
	if err := decodeModelJSON(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IdentifyCompetitors requests up to max competitors for the company.
func (r *geminiAIRepository) IdentifyCompetitors(ctx context.Context, companyName, description, industry string, max int, strict bool) (*dto.CompetitorListResult, error) {
	prompt := BuildIdentifyCompetitorsPrompt(companyName, description, industry, max, strict)

	raw, err := r.executeGeminiAIRequest(ctx, r.client, r.cfg.Gemini.Model, prompt)
	if err != nil {
		return nil, err
	}

	var result dto.CompetitorListResult
	if err := decodeModelJSON(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateInsights synthesizes strategic insights from the aggregated context.
func (r *geminiAIRepository) GenerateInsights(ctx context.Context, companyName string, competitors []entity.Competitor, news []entity.NewsArticle) (*dto.InsightListResult, error) {
	prompt := BuildInsightsPrompt(companyName, competitors, news)

	raw, err := r.executeGeminiAIRequest(ctx, r.client, r.cfg.Gemini.Model, prompt)
	if err != nil {
		return nil, err
	}

	var result dto.InsightListResult
	if err := decodeModelJSON(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeepResearch produces the long-form markdown report for one competitor.
// It runs against the research model with the extended timeout.
func (r *geminiAIRepository) DeepResearch(ctx context.Context, competitorName, competitorDescription, companyName string) (string, error) {
	prompt := BuildDeepResearchPrompt(competitorName, competitorDescription, companyName)

	raw, err := r.executeGeminiAIRequest(ctx, r.researchClient, r.cfg.Gemini.ResearchModel, prompt)
	if err != nil {
		return "", err
	}

	report := unwrapFence(raw)
	if report == "" {
		return "", fmt.Errorf("empty research report from Gemini API")
	}
	return report, nil
}

// Generate answers a fully built prompt with plain prose.
func (r *geminiAIRepository) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := r.executeGeminiAIRequest(ctx, r.client, r.cfg.Gemini.Model, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (r *geminiAIRepository) executeGeminiAIRequest(ctx context.Context, client *http.Client, model, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}
	geminiTokenResp, err := r.genAiClient.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to count tokens: %w", err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(geminiTokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(geminiTokenResp.TotalTokens)); err != nil {
		return "", fmt.Errorf("failed to wait for token limit: %w", err)
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for request limit: %w", err)
	}

	payload := dto.GeminiAPIRequest{
		Contents: []dto.Content{{Parts: []dto.Part{{Text: prompt}}}},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("Failed to marshal payload", logger.ErrorField(err))
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s:generateContent?key=%s", r.cfg.Gemini.BaseURL, model, r.cfg.Gemini.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		r.logger.Error("Failed to send request to Gemini API", logger.ErrorField(err))
		return "", fmt.Errorf("failed to send request to Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.logger.Error("Received non-OK response from Gemini API", logger.IntField("status_code", resp.StatusCode))
		return "", fmt.Errorf("received non-OK response from Gemini API: %d - %s", resp.StatusCode, string(body))
	}

	var geminiResp dto.GeminiAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("invalid response from Gemini API: no content found")
	}
	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// decodeModelJSON parses the model's JSON output, tolerating markdown code
// fences. Failures come back as *dto.ParseError so callers can retry with
// the stricter prompt.
func decodeModelJSON(raw string, out interface{}) error {
	jsonStr := stripFence(raw)
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return &dto.ParseError{Raw: raw, Err: err}
	}
	return nil
}

// stripFence extracts the first fenced block anywhere in the response.
// Only safe when the payload is a single JSON object; never use it on
// markdown that may itself contain code fences.
func stripFence(raw string) string {
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return strings.TrimSpace(raw)
}

// unwrapFence removes a code fence only when it encloses the entire
// response. Fences inside the body belong to the report and are kept.
func unwrapFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := wholeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

package config

import (
	"time"

	"competitive-intel-agent/pkg/config"
)

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	ResearchModel       string        `mapstructure:"research_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int           `mapstructure:"max_token_per_minute"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	ResearchTimeout     time.Duration `mapstructure:"research_timeout"`
}

// News holds configuration for the Google News RSS collector.
type News struct {
	BaseURL          string        `mapstructure:"base_url"`
	QueryParams      string        `mapstructure:"query_params"`
	MaxArticles      int           `mapstructure:"max_articles"`
	MaxAgeInDays     int           `mapstructure:"max_age_in_days"`
	FetchContent     bool          `mapstructure:"fetch_content"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	RefreshSchedule  string        `mapstructure:"refresh_schedule"`
	BlacklistDomains []string      `mapstructure:"blacklist_domains"`
}

// Pipeline holds orchestration settings.
type Pipeline struct {
	WorkerCount    int           `mapstructure:"worker_count"`
	QueueSize      int           `mapstructure:"queue_size"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	CompetitorMax  int           `mapstructure:"competitor_max"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	ChunkOverlap   int           `mapstructure:"chunk_overlap"`
	RetrievalTopK  int           `mapstructure:"retrieval_top_k"`
	EmbedCacheTTL  time.Duration `mapstructure:"embed_cache_ttl"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the intel service.
type Config struct {
	App      config.App    `mapstructure:"app"`
	Logger   config.Logger `mapstructure:"logger"`
	API      config.API    `mapstructure:"api"`
	Gemini   Gemini        `mapstructure:"gemini"`
	News     News          `mapstructure:"news"`
	Pipeline Pipeline      `mapstructure:"pipeline"`
	Telegram Telegram      `mapstructure:"telegram"`
}

// Load loads the intel service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.ResearchModel == "" {
		c.Gemini.ResearchModel = c.Gemini.Model
	}
	if c.Gemini.EmbeddingModel == "" {
		c.Gemini.EmbeddingModel = "gemini-embedding-001"
	}
	if c.Gemini.MaxRequestPerMinute <= 0 {
		c.Gemini.MaxRequestPerMinute = 10
	}
	if c.Gemini.MaxTokenPerMinute <= 0 {
		c.Gemini.MaxTokenPerMinute = 250000
	}
	if c.Gemini.RequestTimeout <= 0 {
		c.Gemini.RequestTimeout = 90 * time.Second
	}
	if c.Gemini.ResearchTimeout <= 0 {
		c.Gemini.ResearchTimeout = 5 * time.Minute
	}
	if c.News.BaseURL == "" {
		c.News.BaseURL = "https://news.google.com/rss"
	}
	if c.News.QueryParams == "" {
		c.News.QueryParams = "hl=en-US&gl=US&ceid=US:en"
	}
	if c.News.MaxArticles <= 0 {
		c.News.MaxArticles = 10
	}
	if c.News.MaxAgeInDays <= 0 {
		c.News.MaxAgeInDays = 30
	}
	if c.News.FetchTimeout <= 0 {
		c.News.FetchTimeout = 20 * time.Second
	}
	if c.News.MaxConcurrent <= 0 {
		c.News.MaxConcurrent = 4
	}
	if c.Pipeline.WorkerCount <= 0 {
		c.Pipeline.WorkerCount = 4
	}
	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = 64
	}
	if c.Pipeline.StageTimeout <= 0 {
		c.Pipeline.StageTimeout = 2 * time.Minute
	}
	if c.Pipeline.CompetitorMax <= 0 {
		c.Pipeline.CompetitorMax = 10
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 1000
	}
	if c.Pipeline.ChunkOverlap <= 0 {
		c.Pipeline.ChunkOverlap = 200
	}
	if c.Pipeline.RetrievalTopK <= 0 {
		c.Pipeline.RetrievalTopK = 5
	}
	if c.Pipeline.EmbedCacheTTL <= 0 {
		c.Pipeline.EmbedCacheTTL = 12 * time.Hour
	}
}

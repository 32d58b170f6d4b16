package repository

import (
	"context"
	"fmt"

	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/utils"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"
)

// geminiEmbeddingRepository implements EmbeddingRepository using the Gemini
// embedding model. Vectors are cached by content hash so a chunk is only
// embedded once for the lifetime of its text.
type geminiEmbeddingRepository struct {
	cfg         *config.Config
	logger      *logger.Logger
	genAiClient *genai.Client
	vectorCache *cache.Cache
}

// NewGeminiEmbeddingRepository creates a new Gemini-backed embedding repository.
func NewGeminiEmbeddingRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) EmbeddingRepository {
	return &geminiEmbeddingRepository{
		cfg:         cfg,
		logger:      log,
		genAiClient: genAiClient,
		vectorCache: cache.New(cfg.Pipeline.EmbedCacheTTL, 2*cfg.Pipeline.EmbedCacheTTL),
	}
}

// Embed maps each text to a fixed-dimension vector, serving cached vectors
// where possible and batching the misses into one API call.
func (r *geminiEmbeddingRepository) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missContents []*genai.Content

	for i, text := range texts {
		key := utils.HashString(text)
		if v, ok := r.vectorCache.Get(key); ok {
			vectors[i] = v.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		missContents = append(missContents, genai.NewContentFromText(text, genai.RoleUser))
	}

	if len(missIdx) == 0 {
		return vectors, nil
	}

	result, err := r.genAiClient.Models.EmbedContent(ctx,
		r.cfg.Gemini.EmbeddingModel,
		missContents,
		&genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_DOCUMENT",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) != len(missIdx) {
		return nil, fmt.Errorf("gemini embed returned %d vectors for %d texts", len(result.Embeddings), len(missIdx))
	}

	for j, emb := range result.Embeddings {
		i := missIdx[j]
		vectors[i] = emb.Values
		r.vectorCache.SetDefault(utils.HashString(texts[i]), emb.Values)
	}

	r.logger.Debug("Embedded texts",
		logger.IntField("requested", len(texts)),
		logger.IntField("cache_hits", len(texts)-len(missIdx)),
	)
	return vectors, nil
}

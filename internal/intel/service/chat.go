package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/repository"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/utils"
)

// ErrEmptyQuestion rejects blank chat messages.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ChatService answers questions about a company grounded in the indexed
// corpus. Answers come only from retrieved context; when the corpus is
// empty the model is told so and frames its answer accordingly.
type ChatService struct {
	store     *store.Store
	aiRepo    repository.AIRepository
	retrieval *RetrievalEngine
	cfg       *config.Config
	logger    *logger.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(st *store.Store, aiRepo repository.AIRepository, retrieval *RetrievalEngine, cfg *config.Config, log *logger.Logger) *ChatService {
	return &ChatService{
		store:     st,
		aiRepo:    aiRepo,
		retrieval: retrieval,
		cfg:       cfg,
		logger:    log,
	}
}

// Answer retrieves the most relevant corpus passages for the question and
// asks the model for a grounded answer. The returned sources identify the
// entities the answer drew from, deduplicated and ranked by relevance.
func (s *ChatService) Answer(ctx context.Context, companyID, question string) (*dto.ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if _, err := s.store.GetCompany(companyID); err != nil {
		return nil, err
	}

	start := time.Now()
	hits, err := s.retrieval.Retrieve(ctx, companyID, question, s.cfg.Pipeline.RetrievalTopK)
	if err != nil {
		return nil, err
	}

	contexts := make([]string, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, h.Chunk.Text)
	}

	prompt := repository.BuildChatAnswerPrompt(question, contexts)
	answer, err := s.aiRepo.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Chat answered",
		logger.StringField("company_id", companyID),
		logger.IntField("context_chunks", len(hits)),
		logger.DurationField("duration", time.Since(start)),
	)

	return &dto.ChatResponse{
		Answer:    strings.TrimSpace(answer),
		Sources:   s.buildSources(hits),
		Timestamp: time.Now().UTC(),
	}, nil
}

// buildSources collapses chunk hits into one source entry per entity,
// keeping the best score, and resolves a human-readable title.
func (s *ChatService) buildSources(hits []ScoredChunk) []dto.ChatSource {
	sources := make([]dto.ChatSource, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		key := string(h.Chunk.SourceType) + "/" + h.Chunk.SourceID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		prov := h.Chunk.Provenance()
		prov.Title = s.sourceTitle(h.Chunk)
		sources = append(sources, dto.ChatSource{Provenance: prov, Score: h.Score})
	}
	return sources
}

func (s *ChatService) sourceTitle(ch entity.Chunk) string {
	switch ch.SourceType {
	case entity.SourceCompanyProfile:
		if c, err := s.store.GetCompany(ch.CompanyID); err == nil {
			return c.Name
		}
	case entity.SourceCompetitorProfile, entity.SourceDeepResearch:
		if c, err := s.store.GetCompetitor(ch.SourceID); err == nil {
			return c.Name
		}
	case entity.SourceNews:
		if articles, err := s.store.ListNewsByCompany(ch.CompanyID); err == nil {
			for _, a := range articles {
				if a.ID == ch.SourceID {
					return a.Title
				}
			}
		}
	case entity.SourceInsight:
		if insights, err := s.store.ListInsights(ch.CompanyID); err == nil {
			for _, ins := range insights {
				if ins.ID == ch.SourceID {
					return ins.Title
				}
			}
		}
	}
	return utils.Truncate(ch.Text, 60)
}

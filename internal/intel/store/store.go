package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"competitive-intel-agent/internal/entity"

	"github.com/google/uuid"
)

var (
	// ErrNotFound marks a missing company or competitor identifier.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an invalid state transition or a rejected
	// concurrent operation.
	ErrConflict = errors.New("state conflict")
)

// Stage names the analysis pipeline stages tracked per company.
type Stage string

const (
	StageProfile     Stage = "profile"
	StageCompetitors Stage = "competitors"
	StageNews        Stage = "news"
	StageInsights    Stage = "insights"
)

// Store is the in-memory corpus store shared by the orchestrator, research
// manager, and retrieval engine. Data is sharded per company, each shard
// with its own lock, so unrelated companies never serialize on each other.
type Store struct {
	mu          sync.RWMutex
	shards      map[string]*companyShard
	nameIndex   map[string]string // lower(name) -> company ID
	competitors map[string]string // competitor ID -> company ID
}

type companyShard struct {
	mu              sync.RWMutex
	company         entity.Company
	competitors     map[string]*entity.Competitor
	competitorOrder []string
	news            []entity.NewsArticle
	newsURLs        map[string]struct{}
	insights        []entity.Insight
	chunks          []entity.Chunk
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		shards:      make(map[string]*companyShard),
		nameIndex:   make(map[string]string),
		competitors: make(map[string]string),
	}
}

func (s *Store) shard(companyID string) (*companyShard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shards[companyID]
	return sh, ok
}

func (s *Store) shardForCompetitor(competitorID string) (*companyShard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	companyID, ok := s.competitors[competitorID]
	if !ok {
		return nil, false
	}
	sh, ok := s.shards[companyID]
	return sh, ok
}

// CreateCompany stores a new company and returns it with ID and timestamps set.
func (s *Store) CreateCompany(c entity.Company) (entity.Company, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.Pipeline = entity.NewPipelineStatus()

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(c.Name)
	if _, exists := s.nameIndex[key]; exists {
		return entity.Company{}, ErrConflict
	}
	s.nameIndex[key] = c.ID
	s.shards[c.ID] = &companyShard{
		company:     c,
		competitors: make(map[string]*entity.Competitor),
		newsURLs:    make(map[string]struct{}),
	}
	return c, nil
}

// GetCompany returns a copy of the company record.
func (s *Store) GetCompany(companyID string) (entity.Company, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return entity.Company{}, ErrNotFound
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.company, nil
}

// GetCompanyByName looks a company up by case-insensitive name.
func (s *Store) GetCompanyByName(name string) (entity.Company, bool) {
	s.mu.RLock()
	id, ok := s.nameIndex[strings.ToLower(name)]
	s.mu.RUnlock()
	if !ok {
		return entity.Company{}, false
	}
	c, err := s.GetCompany(id)
	return c, err == nil
}

// ListCompanies returns every company, oldest first.
func (s *Store) ListCompanies() []entity.Company {
	s.mu.RLock()
	shards := make([]*companyShard, 0, len(s.shards))
	for _, sh := range s.shards {
		shards = append(shards, sh)
	}
	s.mu.RUnlock()

	companies := make([]entity.Company, 0, len(shards))
	for _, sh := range shards {
		sh.mu.RLock()
		companies = append(companies, sh.company)
		sh.mu.RUnlock()
	}
	sort.Slice(companies, func(i, j int) bool {
		return companies[i].CreatedAt.Before(companies[j].CreatedAt)
	})
	return companies
}

// UpdateCompanyProfile enriches the company record with the profile-stage result.
func (s *Store) UpdateCompanyProfile(companyID, description, industry, welcome string) error {
	sh, ok := s.shard(companyID)
	if !ok {
		return ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.company.Description = description
	sh.company.Industry = industry
	sh.company.WelcomeMessage = welcome
	return nil
}

// SetStageStatus records the progress of one pipeline stage.
func (s *Store) SetStageStatus(companyID string, stage Stage, status entity.StageStatus) error {
	sh, ok := s.shard(companyID)
	if !ok {
		return ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	switch stage {
	case StageProfile:
		sh.company.Pipeline.Profile = status
	case StageCompetitors:
		sh.company.Pipeline.Competitors = status
	case StageNews:
		sh.company.Pipeline.News = status
	case StageInsights:
		sh.company.Pipeline.Insights = status
	}
	return nil
}

// CreateCompetitor stores a competitor for an existing company. The owning
// company must exist first.
func (s *Store) CreateCompetitor(c entity.Competitor) (entity.Competitor, error) {
	sh, ok := s.shard(c.CompanyID)
	if !ok {
		return entity.Competitor{}, ErrNotFound
	}

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	if c.DeepResearchStatus == "" {
		c.DeepResearchStatus = entity.ResearchNotStarted
	}
	if c.Strengths == nil {
		c.Strengths = []string{}
	}
	if c.Weaknesses == nil {
		c.Weaknesses = []string{}
	}

	sh.mu.Lock()
	cp := c
	sh.competitors[c.ID] = &cp
	sh.competitorOrder = append(sh.competitorOrder, c.ID)
	sh.mu.Unlock()

	s.mu.Lock()
	s.competitors[c.ID] = c.CompanyID
	s.mu.Unlock()
	return c, nil
}

// GetCompetitor returns a copy of the competitor record.
func (s *Store) GetCompetitor(competitorID string) (entity.Competitor, error) {
	sh, ok := s.shardForCompetitor(competitorID)
	if !ok {
		return entity.Competitor{}, ErrNotFound
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.competitors[competitorID]
	if !ok {
		return entity.Competitor{}, ErrNotFound
	}
	return *c, nil
}

// ListCompetitors returns the company's competitors in creation order.
func (s *Store) ListCompetitors(companyID string) ([]entity.Competitor, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return nil, ErrNotFound
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]entity.Competitor, 0, len(sh.competitorOrder))
	for _, id := range sh.competitorOrder {
		if c, ok := sh.competitors[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

// TransitionResearchStatus atomically moves a competitor's deep-research
// status from one of the allowed states to the target state. It returns
// the status now in effect; ErrConflict means the current status was not
// in the allowed set (the caller observes it via the returned value).
func (s *Store) TransitionResearchStatus(competitorID string, from []entity.ResearchStatus, to entity.ResearchStatus) (entity.ResearchStatus, error) {
	sh, ok := s.shardForCompetitor(competitorID)
	if !ok {
		return "", ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.competitors[competitorID]
	if !ok {
		return "", ErrNotFound
	}
	for _, f := range from {
		if c.DeepResearchStatus == f {
			c.DeepResearchStatus = to
			return to, nil
		}
	}
	return c.DeepResearchStatus, ErrConflict
}

// SetResearchResult records a finished deep-research job in one atomic write.
func (s *Store) SetResearchResult(competitorID string, status entity.ResearchStatus, markdown string, artifact []byte, renderError string) error {
	sh, ok := s.shardForCompetitor(competitorID)
	if !ok {
		return ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.competitors[competitorID]
	if !ok {
		return ErrNotFound
	}
	c.DeepResearchStatus = status
	c.DeepResearchMarkdown = markdown
	c.DeepResearchArtifact = artifact
	c.RenderError = renderError
	if status == entity.ResearchCompleted {
		now := time.Now()
		c.ResearchCompletedAt = &now
	}
	return nil
}

// DeleteCompetitor removes a competitor and every chunk derived from it.
func (s *Store) DeleteCompetitor(competitorID string) error {
	sh, ok := s.shardForCompetitor(competitorID)
	if !ok {
		return ErrNotFound
	}
	sh.mu.Lock()
	delete(sh.competitors, competitorID)
	for i, id := range sh.competitorOrder {
		if id == competitorID {
			sh.competitorOrder = append(sh.competitorOrder[:i], sh.competitorOrder[i+1:]...)
			break
		}
	}
	sh.chunks = chunksWithoutSource(sh.chunks, "", competitorID)
	sh.mu.Unlock()

	s.mu.Lock()
	delete(s.competitors, competitorID)
	s.mu.Unlock()
	return nil
}

// AppendNews stores articles not yet present (by URL) and returns the ones
// actually added, with IDs assigned. News is append-only.
func (s *Store) AppendNews(companyID string, articles []entity.NewsArticle) ([]entity.NewsArticle, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return nil, ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var added []entity.NewsArticle
	for _, a := range articles {
		if a.URL != "" {
			if _, dup := sh.newsURLs[a.URL]; dup {
				continue
			}
			sh.newsURLs[a.URL] = struct{}{}
		}
		a.ID = uuid.NewString()
		a.CompanyID = companyID
		a.CreatedAt = time.Now()
		sh.news = append(sh.news, a)
		added = append(added, a)
	}
	return added, nil
}

// ListNewsByCompany returns all news for the company and its competitors,
// most recent first.
func (s *Store) ListNewsByCompany(companyID string) ([]entity.NewsArticle, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return nil, ErrNotFound
	}
	sh.mu.RLock()
	out := make([]entity.NewsArticle, len(sh.news))
	copy(out, sh.news)
	sh.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return newsTime(out[i]).After(newsTime(out[j]))
	})
	return out, nil
}

// ListNewsByCompetitor returns the news associated with one competitor.
func (s *Store) ListNewsByCompetitor(competitorID string) ([]entity.NewsArticle, error) {
	sh, ok := s.shardForCompetitor(competitorID)
	if !ok {
		return nil, ErrNotFound
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var out []entity.NewsArticle
	for _, a := range sh.news {
		if a.CompetitorID == competitorID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ReplaceInsights swaps the company's insight set as a unit. Readers never
// observe a mix of old and new insights.
func (s *Store) ReplaceInsights(companyID string, insights []entity.Insight) ([]entity.Insight, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now()
	next := make([]entity.Insight, len(insights))
	for i, ins := range insights {
		ins.ID = uuid.NewString()
		ins.CompanyID = companyID
		ins.CreatedAt = now
		if ins.RelatedCompetitorIDs == nil {
			ins.RelatedCompetitorIDs = []string{}
		}
		next[i] = ins
	}

	sh.mu.Lock()
	sh.insights = next
	sh.mu.Unlock()
	return next, nil
}

// ListInsights returns the current insight set for a company.
func (s *Store) ListInsights(companyID string) ([]entity.Insight, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return nil, ErrNotFound
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]entity.Insight, len(sh.insights))
	copy(out, sh.insights)
	return out, nil
}

// ReplaceChunks removes every chunk previously derived from the given
// source and stores the new set. Superseded chunks disappear wholesale.
func (s *Store) ReplaceChunks(companyID string, sourceType entity.SourceType, sourceID string, chunks []entity.Chunk) error {
	sh, ok := s.shard(companyID)
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].CompanyID = companyID
		chunks[i].SourceType = sourceType
		chunks[i].SourceID = sourceID
		chunks[i].CreatedAt = now
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	kept := sh.chunks[:0]
	for _, ch := range sh.chunks {
		if ch.SourceType == sourceType && ch.SourceID == sourceID {
			continue
		}
		kept = append(kept, ch)
	}
	sh.chunks = append(kept, chunks...)
	return nil
}

// DeleteChunksBySource removes all chunks derived from one source entity.
func (s *Store) DeleteChunksBySource(companyID string, sourceType entity.SourceType, sourceID string) error {
	sh, ok := s.shard(companyID)
	if !ok {
		return ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.chunks = chunksWithoutSource(sh.chunks, sourceType, sourceID)
	return nil
}

// DeleteChunksByType removes all chunks of one source type for a company,
// regardless of source ID. Used when an entire class of sources is replaced,
// such as an insight refresh.
func (s *Store) DeleteChunksByType(companyID string, sourceType entity.SourceType) error {
	sh, ok := s.shard(companyID)
	if !ok {
		return ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	kept := sh.chunks[:0]
	for _, ch := range sh.chunks {
		if ch.SourceType == sourceType {
			continue
		}
		kept = append(kept, ch)
	}
	sh.chunks = kept
	return nil
}

// ChunksForCompany returns a copy of the company's chunk set. Queries for
// one company can never observe another company's chunks.
func (s *Store) ChunksForCompany(companyID string) ([]entity.Chunk, error) {
	sh, ok := s.shard(companyID)
	if !ok {
		return nil, ErrNotFound
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]entity.Chunk, len(sh.chunks))
	copy(out, sh.chunks)
	return out, nil
}

func chunksWithoutSource(chunks []entity.Chunk, sourceType entity.SourceType, sourceID string) []entity.Chunk {
	kept := chunks[:0]
	for _, ch := range chunks {
		if ch.SourceID == sourceID && (sourceType == "" || ch.SourceType == sourceType) {
			continue
		}
		kept = append(kept, ch)
	}
	return kept
}

func newsTime(a entity.NewsArticle) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

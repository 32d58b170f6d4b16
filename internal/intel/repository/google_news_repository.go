package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"competitive-intel-agent/internal/entity"
	"competitive-intel-agent/internal/intel/config"
	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/utils"

	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
)

// googleNewsRepository implements NewsRepository on top of the Google News
// RSS feed. Article bodies are optionally extracted with readability.
type googleNewsRepository struct {
	cfg    *config.Config
	logger *logger.Logger
	client *http.Client
}

// NewGoogleNewsRepository creates a new Google News RSS repository.
func NewGoogleNewsRepository(cfg *config.Config, log *logger.Logger) NewsRepository {
	return &googleNewsRepository{
		cfg:    cfg,
		logger: log,
		client: &http.Client{Timeout: cfg.News.FetchTimeout},
	}
}

// Search queries the feed for recent articles mentioning the entity name.
// An empty result is a valid outcome, not an error.
func (r *googleNewsRepository) Search(ctx context.Context, entityName string) ([]entity.NewsArticle, error) {
	query := url.QueryEscape(fmt.Sprintf("%q (company OR business OR industry)", entityName))
	feedURL := fmt.Sprintf("%s/search?q=%s&%s", r.cfg.News.BaseURL, query, r.cfg.News.QueryParams)

	r.logger.Info("Querying news feed",
		logger.StringField("entity", entityName),
		logger.StringField("url", feedURL),
	)

	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed for %q: %w", entityName, err)
	}

	sort.Slice(feed.Items, func(i, j int) bool {
		if feed.Items[i].PublishedParsed == nil || feed.Items[j].PublishedParsed == nil {
			return false
		}
		return feed.Items[i].PublishedParsed.After(*feed.Items[j].PublishedParsed)
	})

	cutoff := time.Now().AddDate(0, 0, -r.cfg.News.MaxAgeInDays)
	var articles []entity.NewsArticle
	for _, item := range feed.Items {
		if len(articles) >= r.cfg.News.MaxArticles {
			break
		}
		if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
			continue
		}

		article, ok := r.buildArticle(ctx, item)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	r.logger.Info("Collected news articles",
		logger.StringField("entity", entityName),
		logger.IntField("count", len(articles)),
	)
	return articles, nil
}

func (r *googleNewsRepository) buildArticle(ctx context.Context, item *gofeed.Item) (entity.NewsArticle, bool) {
	parsedURL, err := url.Parse(item.Link)
	if err != nil {
		r.logger.Warn("Skipping article with unparsable link", logger.StringField("link", item.Link))
		return entity.NewsArticle{}, false
	}
	source := parsedURL.Hostname()
	if utils.ContainsString(r.cfg.News.BlacklistDomains, source) {
		return entity.NewsArticle{}, false
	}

	article := entity.NewsArticle{
		Title:       utils.CleanToValidUTF8(item.Title),
		Source:      source,
		URL:         item.Link,
		PublishedAt: item.PublishedParsed,
		Summary:     utils.CleanToValidUTF8(strippedDescription(item)),
	}

	if r.cfg.News.FetchContent {
		content, err := r.extractContent(ctx, item.Link)
		if err != nil {
			// Body extraction is best effort; the summary still feeds retrieval.
			r.logger.Warn("Failed to extract article content",
				logger.StringField("url", item.Link), logger.ErrorField(err))
		} else {
			article.Content = content
		}
	}
	return article, true
}

func (r *googleNewsRepository) extractContent(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; intel-service)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read article body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse article html: %w", err)
	}
	return utils.CleanToValidUTF8(strings.TrimSpace(doc.Content())), nil
}

func strippedDescription(item *gofeed.Item) string {
	desc := item.Description
	// RSS descriptions from Google News arrive as small HTML fragments.
	for {
		start := strings.Index(desc, "<")
		if start < 0 {
			break
		}
		end := strings.Index(desc[start:], ">")
		if end < 0 {
			desc = desc[:start]
			break
		}
		desc = desc[:start] + desc[start+end+1:]
	}
	return strings.TrimSpace(desc)
}

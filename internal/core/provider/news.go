package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// News limits.
const (
	DefaultNewsLimit = 20
	MaxNewsLimit     = 100
)

var newsQueries = map[string]string{
	core.NewsCategoryAll:         "cryptocurrency OR bitcoin OR ethereum",
	core.NewsCategoryCrypto:      "cryptocurrency OR bitcoin OR ethereum",
	core.NewsCategoryMacro:       "(cryptocurrency OR bitcoin) AND (economy OR inflation OR fed OR \"central bank\")",
	core.NewsCategoryGeopolitics: "(cryptocurrency OR bitcoin) AND (geopolitics OR politics OR government OR regulation)",
}

// NormalizeNewsCategory maps empty input to "all" and rejects unknown values.
func NormalizeNewsCategory(category string) (string, bool) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return core.NewsCategoryAll, true
	}
	_, ok := newsQueries[category]
	return category, ok
}

// NewsKey is the cache key for a news request.
func NewsKey(category string, limit int) string {
	return fmt.Sprintf("news:%s:%d", category, limit)
}

// News resolves up to limit headlines in category.
func (s *Service) News(ctx context.Context, category string, limit int) engine.Resolution[[]core.NewsArticle] {
	category, ok := NormalizeNewsCategory(category)
	if !ok {
		category = core.NewsCategoryAll
	}
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	if limit > MaxNewsLimit {
		limit = MaxNewsLimit
	}
	key := NewsKey(category, limit)

	fetchers := map[string]fetchFunc[[]core.NewsArticle]{
		SourceNewsAPI: func(ctx context.Context, src PlannedSource) ([]core.NewsArticle, error) {
			return s.newsAPI(ctx, src, category, limit)
		},
		SourceCryptoPanic: func(ctx context.Context, src PlannedSource) ([]core.NewsArticle, error) {
			return s.cryptoPanic(ctx, src, category, limit)
		},
		SourceCryptoCompareNews: func(ctx context.Context, src PlannedSource) ([]core.NewsArticle, error) {
			return s.cryptoCompareNews(ctx, src, category, limit)
		},
	}

	res := engine.Resolve(ctx, s.Orchestrator, key,
		buildSources(s, core.DomainNews, fetchers, engine.NonEmpty[[]core.NewsArticle]),
		s.datasets.NewsFor(category, limit))
	record(s, core.DomainNews, key, res, len(res.Payload))
	return res
}

func (s *Service) newsAPI(ctx context.Context, src PlannedSource, category string, limit int) ([]core.NewsArticle, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/everything",
		query: url.Values{
			"q":        {newsQueries[category]},
			"language": {"en"},
			"sortBy":   {"publishedAt"},
			"pageSize": {strconv.Itoa(limit)},
		},
		headers: apiKeyHeader("X-Api-Key", src.apiKey, ""),
	})
	if err != nil {
		return nil, err
	}
	if status := doc.Get("status").String(); status != "" && status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s", status, doc.Get("message").String())
	}
	return parseNewsAPI(doc, category, limit), nil
}

func (s *Service) cryptoPanic(ctx context.Context, src PlannedSource, category string, limit int) ([]core.NewsArticle, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/posts/",
		query: url.Values{
			"auth_token": {src.apiKey},
			"kind":       {"news"},
			"filter":     {"hot"},
			"public":     {"true"},
		},
	})
	if err != nil {
		return nil, err
	}
	return parseCryptoPanic(doc, category, limit), nil
}

func (s *Service) cryptoCompareNews(ctx context.Context, src PlannedSource, category string, limit int) ([]core.NewsArticle, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/data/v2/news/",
		query:    url.Values{"lang": {"EN"}},
		headers:  apiKeyHeader("authorization", src.apiKey, "Apikey "),
	})
	if err != nil {
		return nil, err
	}
	return parseCryptoCompareNews(doc, category, limit), nil
}

func parseNewsAPI(doc gjson.Result, category string, limit int) []core.NewsArticle {
	articles := []core.NewsArticle{}
	doc.Get("articles").ForEach(func(_, item gjson.Result) bool {
		title := stringOf(item.Get("title"))
		link := stringOf(item.Get("url"))
		if title == "" || link == "" || title == "[Removed]" {
			return true
		}
		articles = append(articles, core.NewsArticle{
			ID:          "newsapi-" + shortID(link),
			Title:       title,
			Summary:     stringOf(item.Get("description")),
			URL:         link,
			Source:      stringOf(item.Get("source.name")),
			Category:    category,
			PublishedAt: timeOrZero(item.Get("publishedAt")),
		})
		return len(articles) < limit
	})
	return articles
}

func parseCryptoPanic(doc gjson.Result, category string, limit int) []core.NewsArticle {
	articles := []core.NewsArticle{}
	doc.Get("results").ForEach(func(_, item gjson.Result) bool {
		title := stringOf(item.Get("title"))
		if title == "" {
			return true
		}
		link := stringOf(item.Get("url"))
		if link == "" {
			link = stringOf(item.Get("source.url"))
		}
		articles = append(articles, core.NewsArticle{
			ID:          "cryptopanic-" + stringOf(item.Get("id")),
			Title:       title,
			Summary:     stringOf(item.Get("metadata.description")),
			URL:         link,
			Source:      stringOf(item.Get("source.title")),
			Category:    category,
			PublishedAt: timeOrZero(item.Get("published_at")),
		})
		return len(articles) < limit
	})
	return articles
}

func parseCryptoCompareNews(doc gjson.Result, category string, limit int) []core.NewsArticle {
	articles := []core.NewsArticle{}
	doc.Get("Data").ForEach(func(_, item gjson.Result) bool {
		title := stringOf(item.Get("title"))
		if title == "" {
			return true
		}
		source := stringOf(item.Get("source_info.name"))
		if source == "" {
			source = stringOf(item.Get("source"))
		}
		articles = append(articles, core.NewsArticle{
			ID:          "cryptocompare-" + stringOf(item.Get("id")),
			Title:       title,
			Summary:     truncate(stringOf(item.Get("body")), 280),
			URL:         stringOf(item.Get("url")),
			Source:      source,
			Category:    category,
			PublishedAt: timeOrZero(item.Get("published_on")),
		})
		return len(articles) < limit
	})
	return articles
}

func timeOrZero(r gjson.Result) time.Time {
	if t := timeOf(r); t != nil {
		return *t
	}
	return time.Time{}
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}

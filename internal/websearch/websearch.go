// Package websearch fronts external web search providers with a TTL cache.
package websearch

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	apperr "websearch/internal/errors"
)

// Query is one search request.
type Query struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"maxResults,omitempty"`
	Freshness      string   `json:"freshness,omitempty"`
	Language       string   `json:"language,omitempty"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
}

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Response is the facade's answer, including cache provenance.
type Response struct {
	Provider           string   `json:"provider"`
	Results            []Result `json:"results"`
	ResponseTimeMillis int64    `json:"responseTimeMs"`
	FromCache          bool     `json:"fromCache"`
}

// Provider is an external search engine adapter. Rate limiting is the
// provider's problem; errors pass through the facade verbatim.
type Provider interface {
	Search(ctx context.Context, q Query) ([]Result, error)
	Name() string
}

// Facade caches provider responses keyed on the full parameter tuple.
type Facade struct {
	provider Provider
	cache    *expirable.LRU[string, []Result]
	logger   *slog.Logger
}

// NewFacade wraps provider with a TTL cache of the given size.
func NewFacade(provider Provider, cacheSize int, ttl time.Duration, logger *slog.Logger) *Facade {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		provider: provider,
		cache:    expirable.NewLRU[string, []Result](cacheSize, nil, ttl),
		logger:   logger,
	}
}

// Search answers from cache when possible, otherwise delegates to the
// provider and caches the outcome.
func (f *Facade) Search(ctx context.Context, q Query) (*Response, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "query must not be empty")
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 10
	}

	start := time.Now()
	key := q.cacheKey()

	if results, ok := f.cache.Get(key); ok {
		return &Response{
			Provider:           f.provider.Name(),
			Results:            results,
			ResponseTimeMillis: time.Since(start).Milliseconds(),
			FromCache:          true,
		}, nil
	}

	results, err := f.provider.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	f.cache.Add(key, results)

	f.logger.Debug("web search",
		slog.String("provider", f.provider.Name()),
		slog.String("query", q.Query),
		slog.Int("results", len(results)))

	return &Response{
		Provider:           f.provider.Name(),
		Results:            results,
		ResponseTimeMillis: time.Since(start).Milliseconds(),
	}, nil
}

// cacheKey covers every field that changes the result set.
func (q Query) cacheKey() string {
	parts := []string{
		q.Query,
		strconv.Itoa(q.MaxResults),
		q.Freshness,
		q.Language,
		strings.Join(q.IncludeDomains, ","),
	}
	return strings.Join(parts, "\x00")
}

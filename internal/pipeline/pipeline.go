// Package pipeline orchestrates batch crawls: URL materialization, a
// bounded worker pool with per-host rate limiting, and the per-URL
// fetch → chunk → embed → store sequence.
package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"websearch/internal/chunk"
	"websearch/internal/embed"
	apperr "websearch/internal/errors"
	"websearch/internal/fetch"
	"websearch/internal/sitemap"
	"websearch/internal/store"
)

// Request describes one batch crawl.
type Request struct {
	URLs           []string `json:"urls,omitempty"`
	Domain         string   `json:"domain,omitempty"`
	FetchMode      string   `json:"fetchMode,omitempty"`
	ChunkStrategy  string   `json:"chunkStrategy,omitempty"`
	MaxChunkSize   int      `json:"maxChunkSize,omitempty"`
	Overlap        int      `json:"overlap,omitempty"`
	MaxConcurrency int      `json:"maxConcurrency,omitempty"`
	RateLimitMs    int      `json:"rateLimitMs,omitempty"`
	PathFilter     string   `json:"pathFilter,omitempty"`
	MaxURLs        int      `json:"maxUrls,omitempty"`
	Namespace      string   `json:"namespace,omitempty"`
}

// Failure records one URL that did not complete.
type Failure struct {
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the batch outcome. Processed counts fully ingested URLs;
// cancelled URLs appear in neither Processed nor Failed.
type Result struct {
	Processed int       `json:"processed"`
	Failed    []Failure `json:"failed"`
	ChunkIDs  []string  `json:"chunkIds"`
	Cancelled int       `json:"cancelled"`
}

// Observer receives progress events. Implementations must be safe for
// concurrent calls.
type Observer interface {
	// Materialized reports the final URL count before workers start.
	Materialized(total int)
	// Completed, Failed, and Cancelled report per-URL outcomes.
	Completed(url string)
	Failed(url string, err error)
	Cancelled(url string)
}

// noopObserver is used when the caller does not watch progress.
type noopObserver struct{}

func (noopObserver) Materialized(int)          {}
func (noopObserver) Completed(string)          {}
func (noopObserver) Failed(string, error)      {}
func (noopObserver) Cancelled(string)          {}

// Pipeline wires the crawl stages together.
type Pipeline struct {
	fetcher  *fetch.Service
	embedder embed.Embedder
	store    *store.Store
	sitemaps *sitemap.Resolver
	logger   *slog.Logger
}

// New creates a pipeline over the given stages.
func New(fetcher *fetch.Service, embedder embed.Embedder, st *store.Store, sitemaps *sitemap.Resolver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{fetcher: fetcher, embedder: embedder, store: st, sitemaps: sitemaps, logger: logger}
}

// Run executes the batch. Per-URL errors are recorded, never fatal; the
// partial result is returned even when ctx is cancelled mid-run.
func (p *Pipeline) Run(ctx context.Context, req Request, obs Observer) (*Result, error) {
	if obs == nil {
		obs = noopObserver{}
	}
	if req.Namespace == "" {
		req.Namespace = "default"
	}
	maxConcurrency := req.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	urls, err := p.materialize(ctx, req)
	if err != nil {
		return nil, err
	}
	obs.Materialized(len(urls))

	limiter := newHostLimiter(time.Duration(req.RateLimitMs) * time.Millisecond)

	var mu sync.Mutex
	result := &Result{}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for _, u := range urls {
		g.Go(func() error {
			outcome := p.processURL(groupCtx, req, u, limiter)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.cancelled:
				result.Cancelled++
				obs.Cancelled(u)
			case outcome.err != nil:
				result.Failed = append(result.Failed, Failure{
					URL:     u,
					Kind:    string(apperr.KindOf(outcome.err)),
					Message: outcome.err.Error(),
				})
				obs.Failed(u, outcome.err)
			default:
				result.Processed++
				result.ChunkIDs = append(result.ChunkIDs, outcome.chunkIDs...)
				obs.Completed(u)
			}
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

// urlOutcome is the terminal state of one URL's pipeline.
type urlOutcome struct {
	chunkIDs  []string
	err       error
	cancelled bool
}

// processURL runs fetch → chunk → embed → put for one URL, polling for
// cancellation before the pipeline, after the fetch, and between chunks.
func (p *Pipeline) processURL(ctx context.Context, req Request, rawURL string, limiter *hostLimiter) urlOutcome {
	if ctx.Err() != nil {
		return urlOutcome{cancelled: true}
	}

	if host := hostOf(rawURL); host != "" {
		if err := limiter.wait(ctx, host); err != nil {
			return urlOutcome{cancelled: true}
		}
	}

	fetched, err := p.fetcher.Fetch(ctx, fetch.Request{URL: rawURL, Mode: req.FetchMode})
	if err != nil {
		if ctx.Err() != nil {
			return urlOutcome{cancelled: true}
		}
		return urlOutcome{err: err}
	}
	if ctx.Err() != nil {
		return urlOutcome{cancelled: true}
	}

	if strings.TrimSpace(fetched.Content) == "" {
		return urlOutcome{err: apperr.New(apperr.KindParse, "page produced no content")}
	}

	chunks, err := chunk.Process(chunk.Request{
		Content:      fetched.Content,
		Strategy:     req.ChunkStrategy,
		MaxChunkSize: req.MaxChunkSize,
		Overlap:      req.Overlap,
		SourceURL:    rawURL,
		Namespace:    req.Namespace,
	})
	if err != nil {
		return urlOutcome{err: err}
	}

	// Chunk order is preserved into the store; ids are only committed to
	// the result once the whole URL succeeds.
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if ctx.Err() != nil {
			return urlOutcome{cancelled: true}
		}
		vec, err := p.embedder.Embed(ctx, c.Text)
		if err != nil {
			if ctx.Err() != nil {
				return urlOutcome{cancelled: true}
			}
			return urlOutcome{err: err}
		}
		if ctx.Err() != nil {
			return urlOutcome{cancelled: true}
		}
		err = p.store.Put(ctx, req.Namespace, store.Record{
			ChunkID:   c.ChunkID,
			Text:      c.Text,
			SourceURL: rawURL,
			Vector:    vec,
			CreatedAt: c.CreatedAt,
		})
		if err != nil {
			return urlOutcome{err: err}
		}
		ids = append(ids, c.ChunkID)
	}

	return urlOutcome{chunkIDs: ids}
}

// materialize builds the final URL list: explicit URLs plus sitemap
// discovery for the domain, deduplicated and truncated.
func (p *Pipeline) materialize(ctx context.Context, req Request) ([]string, error) {
	if len(req.URLs) == 0 && req.Domain == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "batch needs urls or a domain")
	}
	maxURLs := req.MaxURLs
	if maxURLs <= 0 {
		maxURLs = 100
	}

	seen := make(map[string]bool)
	var urls []string
	add := func(raw string) {
		norm, ok := normalizeURL(raw)
		if !ok || seen[norm] {
			return
		}
		seen[norm] = true
		if len(urls) < maxURLs {
			urls = append(urls, norm)
		}
	}

	for _, u := range req.URLs {
		add(u)
	}
	if req.Domain != "" && len(urls) < maxURLs {
		discovered, err := p.sitemaps.Discover(ctx, req.Domain, maxURLs, req.PathFilter)
		if err != nil {
			// Explicit URLs keep the batch alive when discovery fails.
			if len(urls) == 0 {
				return nil, err
			}
			p.logger.Warn("sitemap discovery failed, continuing with explicit urls",
				slog.String("domain", req.Domain), slog.String("error", err.Error()))
		} else {
			for _, u := range discovered.DiscoveredURLs {
				add(u)
			}
		}
	}

	if len(urls) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no valid urls to crawl")
	}
	return urls, nil
}

// normalizeURL canonicalizes for deduplication: lowercased host, fragment
// dropped, scheme-default port stripped. Two URLs are the same crawl target
// iff their normalized forms are equal.
func normalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	stripDefaultPort(u)
	return u.String(), true
}

// stripDefaultPort removes :80 from http and :443 from https hosts so port
// variants dedupe together and share one rate-limit key.
func stripDefaultPort(u *url.URL) {
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		host := u.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// Package sitemap discovers URLs a domain publishes through robots.txt
// sitemap directives and well-known sitemap paths.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"websearch/internal/config"
	apperr "websearch/internal/errors"
)

// Discovery sources.
const (
	SourceRobots    = "robots"
	SourceWellKnown = "wellknown"
)

// maxIndexDepth bounds sitemap-index recursion.
const maxIndexDepth = 2

// wellKnownPaths are probed when robots.txt names no sitemaps.
var wellKnownPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

// Result is the outcome of a discovery run.
type Result struct {
	DiscoveredURLs []string `json:"discoveredUrls"`
	Source         string   `json:"source"`
}

// Resolver fetches and parses sitemaps.
type Resolver struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewResolver creates a sitemap resolver.
func NewResolver(cfg config.FetchConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Resolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Discover resolves the domain's sitemaps and returns up to maxURLs page
// URLs, optionally filtered by a regex matched against the URL path.
func (r *Resolver) Discover(ctx context.Context, domain string, maxURLs int, pathFilter string) (*Result, error) {
	origin, err := normalizeOrigin(domain)
	if err != nil {
		return nil, err
	}
	if maxURLs <= 0 {
		maxURLs = 100
	}

	var filter *regexp.Regexp
	if pathFilter != "" {
		filter, err = regexp.Compile(pathFilter)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidInput, "invalid path filter regex", err)
		}
	}

	sitemapURLs, source := r.sitemapsFromRobots(ctx, origin)
	if len(sitemapURLs) == 0 {
		for _, path := range wellKnownPaths {
			sitemapURLs = append(sitemapURLs, origin+path)
		}
		source = SourceWellKnown
	}

	seen := make(map[string]bool)
	var discovered []string
	fetchedAny := false
	for _, sm := range sitemapURLs {
		pages, err := r.collect(ctx, sm, 0)
		if err != nil {
			r.logger.Debug("sitemap fetch failed",
				slog.String("url", sm), slog.String("error", err.Error()))
			continue
		}
		fetchedAny = true
		for _, page := range pages {
			norm, ok := normalizePageURL(page)
			if !ok || seen[norm] {
				continue
			}
			if filter != nil {
				if u, err := url.Parse(norm); err != nil || !filter.MatchString(u.Path) {
					continue
				}
			}
			seen[norm] = true
			discovered = append(discovered, norm)
			if len(discovered) >= maxURLs {
				return &Result{DiscoveredURLs: discovered, Source: source}, nil
			}
		}
	}

	if !fetchedAny {
		return nil, apperr.Newf(apperr.KindNotFound, "no sitemap found for %s", origin).
			WithDetail("reason", "no_sitemap")
	}
	return &Result{DiscoveredURLs: discovered, Source: source}, nil
}

// sitemapsFromRobots parses Sitemap directives out of /robots.txt.
func (r *Resolver) sitemapsFromRobots(ctx context.Context, origin string) ([]string, string) {
	data, err := r.get(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, ""
	}
	robots, err := robotstxt.FromBytes(data)
	if err != nil {
		return nil, ""
	}
	return robots.Sitemaps, SourceRobots
}

// sitemapDoc covers both urlset and sitemapindex documents; the root
// element name disambiguates.
type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// collect fetches one sitemap URL and returns its page URLs, recursing into
// sitemap indexes up to maxIndexDepth.
func (r *Resolver) collect(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	data, err := r.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "parse sitemap xml", err)
	}

	switch doc.XMLName.Local {
	case "urlset":
		pages := make([]string, 0, len(doc.URLs))
		for _, entry := range doc.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				pages = append(pages, loc)
			}
		}
		return pages, nil

	case "sitemapindex":
		if depth >= maxIndexDepth {
			r.logger.Debug("sitemap index depth limit reached", slog.String("url", sitemapURL))
			return nil, nil
		}
		var pages []string
		for _, entry := range doc.Sitemaps {
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" {
				continue
			}
			child, err := r.collect(ctx, loc, depth+1)
			if err != nil {
				r.logger.Debug("nested sitemap fetch failed",
					slog.String("url", loc), slog.String("error", err.Error()))
				continue
			}
			pages = append(pages, child...)
		}
		return pages, nil

	default:
		return nil, apperr.Newf(apperr.KindParse, "unexpected sitemap root element %q", doc.XMLName.Local)
	}
}

// get fetches a URL body, transparently decompressing gzip payloads.
func (r *Resolver) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "build request", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "fetch "+rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindHTTPStatus, "status %d for %s", resp.StatusCode, rawURL).
			WithDetail("status", fmt.Sprintf("%d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "read "+rawURL, err)
	}

	// Compressed sitemaps (.xml.gz) are common.
	if bytes.HasPrefix(data, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindParse, "decompress sitemap", err)
		}
		defer func() { _ = gz.Close() }()
		data, err = io.ReadAll(io.LimitReader(gz, 64<<20))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindParse, "decompress sitemap", err)
		}
	}
	return data, nil
}

// normalizeOrigin turns a bare domain or URL into a scheme://host origin.
func normalizeOrigin(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", apperr.New(apperr.KindInvalidInput, "domain must not be empty")
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, "invalid domain", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperr.Newf(apperr.KindUnsupportedScheme, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", apperr.New(apperr.KindInvalidInput, "domain has no host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// normalizePageURL canonicalizes a discovered URL for deduplication:
// lowercased host, fragment dropped, scheme-default port stripped.
func normalizePageURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		host := u.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	}
	return u.String(), true
}

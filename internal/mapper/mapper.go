// Package mapper discovers URLs by breadth-first link traversal within a
// single registered domain.
package mapper

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	apperr "websearch/internal/errors"
	"websearch/internal/fetch"
)

// Request bounds one mapping run.
type Request struct {
	StartURL   string `json:"url"`
	MaxDepth   int    `json:"maxDepth,omitempty"`
	MaxURLs    int    `json:"maxUrls,omitempty"`
	PathFilter string `json:"pathFilter,omitempty"`
}

// Mapper walks same-domain links breadth-first using static fetches only.
type Mapper struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

// New creates a mapper over the given fetcher, which should be the static
// one; rendering every page just to read hrefs is not worth a browser.
func New(fetcher fetch.Fetcher, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{fetcher: fetcher, logger: logger}
}

// queueEntry tags a URL with its BFS depth.
type queueEntry struct {
	url   string
	depth int
}

// Map traverses from the start URL and returns every successfully fetched
// URL within the depth, count, domain, and filter bounds. Fetch failures
// are excluded from the result but do not stop the walk.
func (m *Mapper) Map(ctx context.Context, req Request) ([]string, error) {
	start, err := url.Parse(strings.TrimSpace(req.StartURL))
	if err != nil || start.Host == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "invalid start url")
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, apperr.Newf(apperr.KindUnsupportedScheme, "unsupported scheme %q", start.Scheme)
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}
	maxURLs := req.MaxURLs
	if maxURLs <= 0 {
		maxURLs = 100
	}

	var filter *regexp.Regexp
	if req.PathFilter != "" {
		filter, err = regexp.Compile(req.PathFilter)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidInput, "invalid path filter regex", err)
		}
	}

	startDomain := registeredDomain(start.Hostname())

	visited := map[string]bool{canonical(start): true}
	queue := []queueEntry{{url: canonical(start), depth: 0}}
	var mapped []string

	for len(queue) > 0 && len(mapped) < maxURLs {
		if err := ctx.Err(); err != nil {
			return mapped, apperr.Wrap(apperr.KindCancelled, "mapping cancelled", err)
		}

		entry := queue[0]
		queue = queue[1:]

		result, err := m.fetcher.Fetch(ctx, fetch.Request{URL: entry.url, IncludeLinks: true})
		if err != nil {
			m.logger.Debug("map fetch failed",
				slog.String("url", entry.url), slog.String("error", err.Error()))
			continue
		}
		mapped = append(mapped, entry.url)

		if entry.depth >= maxDepth {
			continue
		}
		for _, link := range result.Links {
			u, err := url.Parse(link)
			if err != nil || u.Host == "" {
				continue
			}
			if registeredDomain(u.Hostname()) != startDomain {
				continue
			}
			if filter != nil && !filter.MatchString(u.Path) {
				continue
			}
			c := canonical(u)
			if visited[c] {
				continue
			}
			visited[c] = true
			queue = append(queue, queueEntry{url: c, depth: entry.depth + 1})
		}
	}

	return mapped, nil
}

// registeredDomain reduces a hostname to its eTLD+1. Hosts without a public
// suffix (localhost, bare IPs) compare by the hostname itself.
func registeredDomain(hostname string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return strings.ToLower(hostname)
	}
	return strings.ToLower(domain)
}

// canonical normalizes a URL for the visited set: lowercased host, fragment
// dropped, empty path fixed to "/", scheme-default port stripped.
func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" {
		c.Path = "/"
	}
	if port := c.Port(); (c.Scheme == "http" && port == "80") || (c.Scheme == "https" && port == "443") {
		host := c.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		c.Host = host
	}
	return c.String()
}

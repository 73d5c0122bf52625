// Package fetch retrieves single URLs and normalizes their content.
//
// Three fetchers are registered by mode name: static (plain HTTP), dynamic
// (headless browser), and auto (static with a dynamic fallback for thin or
// SPA-shaped pages). PDF responses are detected on the static path and
// text-extracted.
package fetch

import (
	"context"
	"net/url"
	"strings"

	apperr "websearch/internal/errors"
)

// Fetch modes.
const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
	ModeAuto    = "auto"
)

// Fetcher names reported in Result.FetcherUsed.
const (
	FetcherStatic  = "static"
	FetcherDynamic = "dynamic"
	FetcherPDF     = "pdf"
)

// Request describes a single fetch.
type Request struct {
	URL string `json:"url"`

	// Mode selects the fetcher: static, dynamic, or auto. Empty means auto.
	Mode string `json:"fetchMode,omitempty"`

	// WaitForSelector makes the dynamic fetcher wait for a CSS selector
	// to become visible before evaluating the DOM.
	WaitForSelector string `json:"waitForSelector,omitempty"`

	IncludeLinks  bool `json:"includeLinks,omitempty"`
	IncludeImages bool `json:"includeImages,omitempty"`
}

// Result is the normalized outcome of a fetch.
type Result struct {
	URL             string   `json:"url"`
	FinalURL        string   `json:"finalUrl"`
	Title           string   `json:"title,omitempty"`
	Content         string   `json:"content"`
	Links           []string `json:"links,omitempty"`
	Images          []string `json:"images,omitempty"`
	WordCount       int      `json:"wordCount"`
	StatusCode      int      `json:"statusCode"`
	FetcherUsed     string   `json:"fetcherUsed"`
	FetchTimeMillis int64    `json:"fetchTimeMs"`
}

// Fetcher retrieves one URL.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// validateURL enforces the http/https-only scheme policy and basic shape.
func validateURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "invalid url", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, apperr.Newf(apperr.KindUnsupportedScheme, "unsupported scheme %q", u.Scheme).
			WithDetail("scheme", u.Scheme)
	}
	if u.Host == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "url has no host")
	}
	return u, nil
}

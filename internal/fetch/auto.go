package fetch

import (
	"context"
	"log/slog"
)

// AutoFetcher tries the static path first and falls back to the dynamic
// renderer when the static result looks like an unrendered client-side app:
// too little normalized text, or a mount node with an empty body.
type AutoFetcher struct {
	static  *StaticFetcher
	dynamic *DynamicFetcher
	// minTextLength is the fallback threshold in characters.
	minTextLength int
	logger        *slog.Logger
}

var _ Fetcher = (*AutoFetcher)(nil)

// NewAutoFetcher composes the static and dynamic fetchers.
func NewAutoFetcher(static *StaticFetcher, dynamic *DynamicFetcher, minTextLength int, logger *slog.Logger) *AutoFetcher {
	if minTextLength <= 0 {
		minTextLength = 200
	}
	return &AutoFetcher{static: static, dynamic: dynamic, minTextLength: minTextLength, logger: logger}
}

// Name returns the mode name.
func (f *AutoFetcher) Name() string { return ModeAuto }

// Fetch runs the auto policy. A dynamic failure falls back to the static
// result rather than failing the fetch.
func (f *AutoFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	result, page, err := f.static.fetchPage(ctx, req)
	if err != nil {
		return nil, err
	}
	if !f.needsDynamic(result, page) {
		return result, nil
	}

	f.logger.Debug("static result looks unrendered, re-fetching dynamically",
		slog.String("url", req.URL), slog.Int("content_length", len(result.Content)))

	dynResult, dynErr := f.dynamic.Fetch(ctx, req)
	if dynErr != nil {
		f.logger.Warn("dynamic fallback failed, keeping static result",
			slog.String("url", req.URL), slog.String("error", dynErr.Error()))
		return result, nil
	}
	return dynResult, nil
}

// needsDynamic applies the fallback heuristics to a successful static fetch.
func (f *AutoFetcher) needsDynamic(result *Result, page *parsedPage) bool {
	if result.FetcherUsed == FetcherPDF {
		return false
	}
	if len(result.Content) < f.minTextLength {
		return true
	}
	return page != nil && page.HasMount && page.BodyText == ""
}

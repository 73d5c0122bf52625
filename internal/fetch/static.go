package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"websearch/internal/config"
	apperr "websearch/internal/errors"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 20 << 20

var errTooManyRedirects = errors.New("too many redirects")

// StaticFetcher performs plain HTTP fetches with redirect and retry
// handling. PDF responses are detected and text-extracted; everything else
// is treated as HTML.
type StaticFetcher struct {
	client *http.Client
	cfg    config.FetchConfig
	logger *slog.Logger
}

var _ Fetcher = (*StaticFetcher)(nil)

// NewStaticFetcher creates a static fetcher from configuration.
func NewStaticFetcher(cfg config.FetchConfig, logger *slog.Logger) *StaticFetcher {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}

	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
	}

	return &StaticFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the mode name.
func (f *StaticFetcher) Name() string { return ModeStatic }

// Fetch retrieves the URL and returns normalized content.
func (f *StaticFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	result, _, err := f.fetchPage(ctx, req)
	return result, err
}

// fetchPage is Fetch plus the parsed page, which the auto fetcher uses for
// its fallback decision. The page is nil for PDF responses.
func (f *StaticFetcher) fetchPage(ctx context.Context, req Request) (*Result, *parsedPage, error) {
	_, err := validateURL(req.URL)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()

	var resp *http.Response
	var body []byte
	retryCfg := apperr.DefaultRetryConfig()
	retryCfg.MaxRetries = f.cfg.MaxRetries
	err = apperr.Retry(ctx, retryCfg, func() error {
		var attemptErr error
		resp, body, attemptErr = f.doRequest(ctx, req.URL)
		return attemptErr
	})
	if err != nil {
		return nil, nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if isPDF(resp.Header.Get("Content-Type"), body) {
		text, err := extractPDFText(body)
		if err != nil {
			return nil, nil, err
		}
		return &Result{
			URL:             req.URL,
			FinalURL:        finalURL,
			Content:         text,
			WordCount:       countWords(text),
			StatusCode:      resp.StatusCode,
			FetcherUsed:     FetcherPDF,
			FetchTimeMillis: elapsed,
		}, nil, nil
	}

	page, err := parseHTML(string(body), resp.Request.URL, req.IncludeLinks, req.IncludeImages)
	if err != nil {
		return nil, nil, err
	}

	return &Result{
		URL:             req.URL,
		FinalURL:        finalURL,
		Title:           page.Title,
		Content:         page.Content,
		Links:           page.Links,
		Images:          page.Images,
		WordCount:       countWords(page.Content),
		StatusCode:      resp.StatusCode,
		FetcherUsed:     FetcherStatic,
		FetchTimeMillis: elapsed,
	}, page, nil
}

// doRequest performs one HTTP attempt and classifies failures.
func (f *StaticFetcher) doRequest(ctx context.Context, rawURL string) (*http.Response, []byte, error) {
	attemptCtx := ctx
	if f.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(f.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInvalidInput, "build request", err)
	}
	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,*/*;q=0.8")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		switch {
		case errors.Is(err, errTooManyRedirects):
			return nil, nil, apperr.Wrap(apperr.KindNetwork, "redirect limit exceeded", err)
		case attemptCtx.Err() == context.DeadlineExceeded:
			return nil, nil, apperr.Wrap(apperr.KindTimeout, "fetch timed out", err)
		case ctx.Err() != nil:
			return nil, nil, ctx.Err()
		default:
			return nil, nil, apperr.Wrap(apperr.KindNetwork, "fetch failed", err)
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		e := apperr.New(apperr.KindRateLimited, "server rate limited the request").
			WithDetail("status", strconv.Itoa(resp.StatusCode))
		if delay := parseRetryAfter(resp.Header.Get("Retry-After")); delay > 0 {
			e = e.WithRetryAfter(delay)
		}
		return nil, nil, e
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, apperr.Newf(apperr.KindHTTPStatus, "unexpected status %d for %s", resp.StatusCode, rawURL).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, nil, apperr.Wrap(apperr.KindTimeout, "read body timed out", err)
		}
		return nil, nil, apperr.Wrap(apperr.KindNetwork, "read body", err)
	}
	return resp, body, nil
}

// parseRetryAfter handles the delay-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// String renders a request target for logs.
func (r Request) String() string {
	return fmt.Sprintf("%s (%s)", r.URL, r.Mode)
}

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"websearch/internal/config"
	apperr "websearch/internal/errors"
)

// DynamicFetcher renders pages in a headless browser. The browser allocator
// is created on first use and shared across fetches; each fetch gets its own
// tab context.
type DynamicFetcher struct {
	cfg    config.FetchConfig
	solver Solver
	logger *slog.Logger

	once        sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

var _ Fetcher = (*DynamicFetcher)(nil)

// NewDynamicFetcher creates a dynamic fetcher. solver may be nil, in which
// case CAPTCHA challenges fail with captcha_blocked.
func NewDynamicFetcher(cfg config.FetchConfig, solver Solver, logger *slog.Logger) *DynamicFetcher {
	return &DynamicFetcher{cfg: cfg, solver: solver, logger: logger}
}

// Name returns the mode name.
func (f *DynamicFetcher) Name() string { return ModeDynamic }

func (f *DynamicFetcher) allocator() context.Context {
	f.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(f.cfg.UserAgent),
			chromedp.NoSandbox,
		)
		f.allocCtx, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return f.allocCtx
}

// Fetch navigates to the URL, waits for the optional selector, handles any
// CAPTCHA, and normalizes the rendered DOM.
func (f *DynamicFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if _, err := validateURL(req.URL); err != nil {
		return nil, err
	}

	start := time.Now()

	tabCtx, cancelTab := chromedp.NewContext(f.allocator())
	defer cancelTab()

	runCtx := tabCtx
	if f.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(tabCtx, time.Duration(f.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var status atomic.Int64
	chromedp.ListenTarget(tabCtx, documentStatusListener(&status))

	actions := []chromedp.Action{network.Enable(), chromedp.Navigate(req.URL)}
	if req.WaitForSelector != "" {
		actions = append(actions, chromedp.WaitVisible(req.WaitForSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	var htmlSrc, finalURL string
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &htmlSrc, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, f.classify(ctx, runCtx, err)
	}

	challenge, err := f.detectChallenge(runCtx, finalURL)
	if err != nil {
		return nil, err
	}
	if challenge != nil {
		htmlSrc, err = f.solveChallenge(ctx, runCtx, *challenge)
		if err != nil {
			return nil, err
		}
	}

	base, err := url.Parse(finalURL)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(req.URL)
	}
	page, err := parseHTML(htmlSrc, base, req.IncludeLinks, req.IncludeImages)
	if err != nil {
		return nil, err
	}

	statusCode := int(status.Load())
	if statusCode == 0 {
		// No document response surfaced (e.g. an about:blank navigation).
		statusCode = http.StatusOK
	}

	return &Result{
		URL:             req.URL,
		FinalURL:        finalURL,
		Title:           page.Title,
		Content:         page.Content,
		Links:           page.Links,
		Images:          page.Images,
		WordCount:       countWords(page.Content),
		StatusCode:      statusCode,
		FetcherUsed:     FetcherDynamic,
		FetchTimeMillis: time.Since(start).Milliseconds(),
	}, nil
}

// documentStatusListener records the first document response on the tab:
// redirects collapse into their request, so that is the navigation's final
// status. Later document responses belong to frames and are ignored.
func documentStatusListener(status *atomic.Int64) func(ev interface{}) {
	return func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		status.CompareAndSwap(0, resp.Response.Status)
	}
}

// detectChallenge runs the detection script and returns a non-nil Challenge
// when the page shows a CAPTCHA.
func (f *DynamicFetcher) detectChallenge(runCtx context.Context, pageURL string) (*Challenge, error) {
	var detection Challenge
	if err := chromedp.Run(runCtx, chromedp.Evaluate(captchaDetectScript, &detection)); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "captcha detection failed", err)
	}
	if detection.Type == "" {
		return nil, nil
	}
	detection.PageURL = pageURL
	return &detection, nil
}

// solveChallenge submits the challenge to the configured solver, injects the
// token, and re-evaluates the DOM once. No solver means captcha_blocked.
func (f *DynamicFetcher) solveChallenge(ctx context.Context, runCtx context.Context, challenge Challenge) (string, error) {
	if f.solver == nil {
		return "", apperr.Newf(apperr.KindCaptchaBlocked, "page presented a %s challenge", challenge.Type).
			WithDetail("challenge_type", challenge.Type)
	}

	f.logger.Info("solving captcha challenge",
		slog.String("type", challenge.Type), slog.String("url", challenge.PageURL))

	token, err := f.solver.Solve(ctx, challenge)
	if err != nil {
		return "", apperr.Wrap(apperr.KindCaptchaBlocked, "captcha solver failed", err).
			WithDetail("challenge_type", challenge.Type)
	}

	quoted, _ := json.Marshal(token)
	inject := fmt.Sprintf(captchaInjectScript, string(quoted))

	var injected bool
	var htmlSrc string
	err = chromedp.Run(runCtx,
		chromedp.Evaluate(inject, &injected),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &htmlSrc, chromedp.ByQuery),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindCaptchaBlocked, "captcha token injection failed", err).
			WithDetail("challenge_type", challenge.Type)
	}

	// One solve attempt only; a page still showing a challenge is blocked.
	var recheck Challenge
	if err := chromedp.Run(runCtx, chromedp.Evaluate(captchaDetectScript, &recheck)); err == nil && recheck.Type != "" {
		return "", apperr.Newf(apperr.KindCaptchaBlocked, "%s challenge persisted after solve", recheck.Type).
			WithDetail("challenge_type", recheck.Type)
	}
	return htmlSrc, nil
}

// classify maps chromedp run failures onto the error taxonomy.
func (f *DynamicFetcher) classify(ctx, runCtx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return apperr.Wrap(apperr.KindCancelled, "fetch cancelled", ctx.Err())
	case runCtx.Err() == context.DeadlineExceeded:
		return apperr.Wrap(apperr.KindTimeout, "page render timed out", err)
	default:
		return apperr.Wrap(apperr.KindNetwork, "page render failed", err)
	}
}

// Close shuts the shared browser down.
func (f *DynamicFetcher) Close() error {
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}

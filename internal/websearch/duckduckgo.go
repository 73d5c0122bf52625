package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperr "websearch/internal/errors"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. It needs no API key,
// which makes it the default provider.
type DuckDuckGo struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

var _ Provider = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates the provider. endpoint overrides the live service
// when non-empty (tests point it at a fixture server).
func NewDuckDuckGo(userAgent, endpoint string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = ddgEndpoint
	}
	return &DuckDuckGo{
		client:    &http.Client{Timeout: 15 * time.Second},
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

// Name returns the provider identifier.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search queries the HTML endpoint and scrapes the result list.
func (d *DuckDuckGo) Search(ctx context.Context, q Query) ([]Result, error) {
	terms := q.Query
	for _, domain := range q.IncludeDomains {
		terms += " site:" + domain
	}

	params := url.Values{"q": {terms}}
	if q.Language != "" {
		params.Set("kl", q.Language)
	}
	if df := freshnessParam(q.Freshness); df != "" {
		params.Set("df", df)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "build search request", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindTimeout, "search timed out", err)
		}
		return nil, apperr.Wrap(apperr.KindNetwork, "search request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperr.New(apperr.KindRateLimited, "search provider rate limited the request")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindHTTPStatus, "search provider returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "parse search results", err)
	}

	max := q.MaxResults
	if max <= 0 {
		max = 10
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find(".result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(anchor.Text()),
			URL:     resolveDDGLink(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < max
	})
	return results, nil
}

// resolveDDGLink unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveDDGLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// freshnessParam maps the generic freshness hint onto DuckDuckGo's df values.
func freshnessParam(freshness string) string {
	switch strings.ToLower(freshness) {
	case "day":
		return "d"
	case "week":
		return "w"
	case "month":
		return "m"
	case "year":
		return "y"
	default:
		return ""
	}
}

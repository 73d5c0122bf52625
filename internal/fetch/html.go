package fetch

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	apperr "websearch/internal/errors"
)

// parsedPage is the intermediate form shared by the static and dynamic
// fetchers before a Result is assembled.
type parsedPage struct {
	Title    string
	Content  string
	BodyText string
	Links    []string
	Images   []string
	HasMount bool
}

// parseHTML strips non-content elements, converts the remainder to a
// markdown-like representation, and resolves links and images against base.
func parseHTML(htmlSrc string, base *url.URL, wantLinks, wantImages bool) (*parsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "parse html", err)
	}

	page := &parsedPage{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		HasMount: doc.Find("#root, #app").Length() > 0,
	}

	if wantLinks {
		page.Links = collectURLs(doc, "a[href]", "href", base)
	}
	if wantImages {
		page.Images = collectURLs(doc, "img[src]", "src", base)
	}

	doc.Find("script, style, noscript, iframe").Remove()
	page.BodyText = strings.TrimSpace(doc.Find("body").Text())

	cleaned, err := doc.Html()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "serialize html", err)
	}

	markdown, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "convert html to markdown", err)
	}
	page.Content = strings.TrimSpace(markdown)
	return page, nil
}

// collectURLs extracts attribute values from matching elements, resolved to
// absolute URLs and deduplicated in document order.
func collectURLs(doc *goquery.Document, selector, attr string, base *url.URL) []string {
	seen := make(map[string]bool)
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Attr(attr)
		if !ok {
			return
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") ||
			strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "data:") {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	})
	return out
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

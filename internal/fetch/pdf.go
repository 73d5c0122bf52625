package fetch

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	apperr "websearch/internal/errors"
)

var pdfMagic = []byte("%PDF-")

// isPDF detects PDF content by content-type or magic bytes.
func isPDF(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(body, pdfMagic)
}

// extractPDFText extracts plain text page by page, preserving page breaks
// as blank lines.
func extractPDFText(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindParse, "open pdf", err)
	}

	var pages []string
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// A single damaged page should not lose the rest of the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", apperr.New(apperr.KindParse, "pdf contains no extractable text")
	}
	return strings.Join(pages, "\n\n"), nil
}

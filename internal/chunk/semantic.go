package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// blankLinePattern separates paragraphs on one or more blank lines.
var blankLinePattern = regexp.MustCompile(`\n[ \t]*\n+`)

// SemanticSplitter packs blank-line-separated paragraphs into chunks
// bounded by a character budget. A paragraph that exceeds the budget on its
// own is broken into sentences; the sentence surplus carries into the next
// paragraph group.
type SemanticSplitter struct{}

// Name returns the registry key.
func (s *SemanticSplitter) Name() string { return "semantic" }

// Split implements Splitter.
func (s *SemanticSplitter) Split(content string, maxChunkSize, overlap int) []string {
	paragraphs := splitParagraphs(content)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var buf []string
	bufLen := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n\n"))
		if text != "" {
			chunks = append(chunks, text)
		}
		buf = nil
		bufLen = 0
	}

	appendPiece := func(piece string) {
		pieceLen := utf8.RuneCountInString(piece)
		if bufLen > 0 && bufLen+2+pieceLen >= maxChunkSize {
			flush()
		}
		buf = append(buf, piece)
		if bufLen > 0 {
			bufLen += 2
		}
		bufLen += pieceLen
	}

	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) <= maxChunkSize {
			appendPiece(para)
			continue
		}

		// Oversized paragraph: pack its sentences individually. Whatever
		// remains buffered continues packing with the following paragraphs.
		for _, sentence := range SplitSentences(para) {
			appendPiece(sentence)
			// A single sentence beyond the budget stands alone.
			if len(buf) == 1 && utf8.RuneCountInString(sentence) > maxChunkSize {
				flush()
			}
		}
	}

	flush()
	return chunks
}

func splitParagraphs(content string) []string {
	var paragraphs []string
	for _, p := range blankLinePattern.Split(content, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

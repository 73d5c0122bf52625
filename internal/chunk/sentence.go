package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentenceSplitter packs whole sentences into chunks bounded by a character
// budget. Overlap is sentence-count based: when overlap > 0 the last
// sentence of an emitted chunk seeds the next buffer.
type SentenceSplitter struct{}

// Name returns the registry key.
func (s *SentenceSplitter) Name() string { return "sentence" }

// Split implements Splitter.
func (s *SentenceSplitter) Split(content string, maxChunkSize, overlap int) []string {
	sentences := SplitSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf []string
	bufLen := 0
	seeded := false // buf currently holds only the overlap seed

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, " "))
		if text != "" {
			chunks = append(chunks, text)
		}
		if overlap > 0 {
			last := buf[len(buf)-1]
			buf = []string{last}
			bufLen = utf8.RuneCountInString(last)
			seeded = true
		} else {
			buf = nil
			bufLen = 0
		}
	}

	for _, sentence := range sentences {
		sentLen := utf8.RuneCountInString(sentence)
		// Each buffered sentence is accounted with its trailing separator,
		// so the budget check is >= rather than >.
		if bufLen > 0 && bufLen+1+sentLen >= maxChunkSize {
			// A buffer holding only the overlap seed must still accept one
			// new sentence, otherwise no progress is made.
			if !seeded {
				flush()
			} else {
				buf = nil
				bufLen = 0
			}
		}
		buf = append(buf, sentence)
		if bufLen > 0 {
			bufLen++
		}
		bufLen += sentLen
		seeded = false

		// A single oversized sentence becomes its own chunk.
		if len(buf) == 1 && sentLen > maxChunkSize {
			flush()
		}
	}

	// Trailing buffer; skip if it is only the already-emitted overlap seed.
	if len(buf) > 0 && !seeded {
		text := strings.TrimSpace(strings.Join(buf, " "))
		if text != "" {
			chunks = append(chunks, text)
		}
	}

	return chunks
}

// sentenceTerminators end a sentence when followed by whitespace or EOF.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'…': true, // ellipsis
	'。': true, // ideographic full stop
	'！': true, // fullwidth !
	'？': true, // fullwidth ?
}

// closingTrailers may follow a terminator and still belong to the sentence.
var closingTrailers = map[rune]bool{
	'"': true, '\'': true, ')': true, ']': true,
	'”': true, '’': true, '»': true,
}

// SplitSentences breaks text into sentences on Unicode-aware terminator
// boundaries. The concatenation of the returned sentences preserves every
// non-whitespace character of the input.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if !sentenceTerminators[r] {
			continue
		}

		// Consume closing quotes/brackets attached to the terminator.
		for i+1 < len(runes) && closingTrailers[runes[i+1]] {
			i++
			current.WriteRune(runes[i])
		}

		// A terminator ends the sentence only at EOF or before whitespace.
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

package chunk

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "websearch/internal/errors"
)

// stripSpace removes all whitespace, for text-preservation checks.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestProcessSentenceScenario(t *testing.T) {
	chunks, err := Process(Request{
		Content:      "Alpha. Beta. Gamma.",
		Strategy:     "sentence",
		MaxChunkSize: 12,
		Overlap:      0,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.True(t, strings.HasPrefix(chunks[0].Text, "Alpha."))
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Beta."))
	assert.True(t, strings.HasPrefix(chunks[2].Text, "Gamma."))
}

func TestProcessAssignsUniqueIDsAndTokenCounts(t *testing.T) {
	chunks, err := Process(Request{
		Content:      "One two three. Four five.",
		Strategy:     "sentence",
		MaxChunkSize: 100,
		SourceURL:    "https://example.com/doc",
		Namespace:    "ns1",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.NotEmpty(t, c.ChunkID)
	assert.Equal(t, 5, c.TokenCount)
	assert.Equal(t, "https://example.com/doc", c.SourceURL)
	assert.Equal(t, "ns1", c.Namespace)
	assert.False(t, c.EmbeddingStored)

	again, err := Process(Request{Content: "One two three. Four five.", Strategy: "sentence", MaxChunkSize: 100})
	require.NoError(t, err)
	assert.NotEqual(t, c.ChunkID, again[0].ChunkID, "ids must be globally unique")
}

func TestProcessEmptyContent(t *testing.T) {
	_, err := Process(Request{Content: "   \n\t ", Strategy: "sentence", MaxChunkSize: 10})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	var we *apperr.Error
	require.True(t, apperr.AsError(err, &we))
	assert.Equal(t, "empty_content", we.Details["reason"])
}

func TestProcessUnknownStrategy(t *testing.T) {
	_, err := Process(Request{Content: "text", Strategy: "recursive", MaxChunkSize: 10})
	require.Error(t, err)
	var we *apperr.Error
	require.True(t, apperr.AsError(err, &we))
	assert.Equal(t, "invalid_strategy", we.Details["reason"])
}

func TestProcessInvalidBounds(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"negative max", Request{Content: "x", Strategy: "token", MaxChunkSize: -1}},
		{"negative overlap", Request{Content: "x", Strategy: "token", MaxChunkSize: 10, Overlap: -1}},
		{"overlap equals max", Request{Content: "x", Strategy: "token", MaxChunkSize: 10, Overlap: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Process(tt.req)
			require.Error(t, err)
			var we *apperr.Error
			require.True(t, apperr.AsError(err, &we))
			assert.Equal(t, "invalid_bounds", we.Details["reason"])
		})
	}
}

func TestAllStrategiesPreserveText(t *testing.T) {
	content := "The first sentence is here. A second one follows!\n\n" +
		"A new paragraph starts. It has two sentences?\n\n" +
		"And a final short one."

	for _, strategy := range Strategies() {
		t.Run(strategy, func(t *testing.T) {
			chunks, err := Process(Request{
				Content:      content,
				Strategy:     strategy,
				MaxChunkSize: 40,
				Overlap:      0,
			})
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			var joined strings.Builder
			for _, c := range chunks {
				joined.WriteString(c.Text)
				joined.WriteString(" ")
			}
			assert.Equal(t, stripSpace(content), stripSpace(joined.String()),
				"concatenated chunks must preserve every non-whitespace character")
		})
	}
}

func TestSentenceChunksEndAtSentenceBoundaries(t *testing.T) {
	content := "First point made. Second point follows! Third question here? Final statement."
	chunks, err := Process(Request{
		Content:      content,
		Strategy:     "sentence",
		MaxChunkSize: 200, // larger than the longest sentence
		Overlap:      0,
	})
	require.NoError(t, err)

	for _, c := range chunks {
		last := rune(c.Text[len(c.Text)-1])
		assert.Contains(t, []rune{'.', '!', '?'}, last,
			"chunk %q must end at a sentence boundary", c.Text)
	}
}

func TestSentenceWholeInputOneChunk(t *testing.T) {
	content := "Exactly one sentence lives here."
	chunks, err := Process(Request{
		Content:      content,
		Strategy:     "sentence",
		MaxChunkSize: len(content),
		Overlap:      0,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Text)
}

func TestSentenceOverlapSeedsLastSentence(t *testing.T) {
	chunks, err := Process(Request{
		Content:      "A one. B two. C three.",
		Strategy:     "sentence",
		MaxChunkSize: 15,
		Overlap:      1,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "A one. B two.", chunks[0].Text)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "B two."),
		"second chunk must be seeded with the last sentence of the first")
}

func TestTokenStrategyOverlapWindows(t *testing.T) {
	chunks, err := Process(Request{
		Content:      "t1 t2 t3 t4 t5",
		Strategy:     "token",
		MaxChunkSize: 2,
		Overlap:      1,
	})
	require.NoError(t, err)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	assert.Equal(t, []string{"t1 t2", "t2 t3", "t3 t4", "t4 t5"}, texts)
}

func TestTokenStrategyMaximalOverlapStillProgresses(t *testing.T) {
	chunks, err := Process(Request{
		Content:      "a b c d e f",
		Strategy:     "token",
		MaxChunkSize: 3,
		Overlap:      2, // maxChunkSize - 1
	})
	require.NoError(t, err)

	// Step size 1: windows advance one token at a time but always advance.
	require.NotEmpty(t, chunks)
	assert.Equal(t, "a b c", chunks[0].Text)
	assert.Equal(t, "d e f", chunks[len(chunks)-1].Text[len(chunks[len(chunks)-1].Text)-5:])
}

func TestSemanticPacksParagraphs(t *testing.T) {
	content := "Para one here.\n\nPara two here.\n\nPara three here."
	chunks, err := Process(Request{
		Content:      content,
		Strategy:     "semantic",
		MaxChunkSize: 34,
		Overlap:      0,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Para one here.\n\nPara two here.", chunks[0].Text)
	assert.Equal(t, "Para three here.", chunks[1].Text)
}

func TestSemanticOversizedParagraphFallsBackToSentences(t *testing.T) {
	long := "Sentence number one is long enough. Sentence number two is also long. Sentence three closes it."
	content := long + "\n\nShort tail."

	chunks, err := Process(Request{
		Content:      content,
		Strategy:     "semantic",
		MaxChunkSize: 45,
		Overlap:      0,
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
		joined.WriteString(" ")
	}
	assert.Equal(t, stripSpace(content), stripSpace(joined.String()))
}

func TestSplitSentencesUnicode(t *testing.T) {
	sentences := SplitSentences("Привет мир. こんにちは。 Done!")
	require.Len(t, sentences, 3)
	assert.Equal(t, "Привет мир.", sentences[0])
	assert.Equal(t, "こんにちは。", sentences[1])
	assert.Equal(t, "Done!", sentences[2])
}

func TestSplitSentencesKeepsAbbreviationRuns(t *testing.T) {
	// A terminator not followed by whitespace does not end a sentence.
	sentences := SplitSentences("See example.com for details. Next sentence.")
	require.Len(t, sentences, 2)
	assert.Equal(t, "See example.com for details.", sentences[0])
}

func TestSplitSentencesTrailingFragment(t *testing.T) {
	sentences := SplitSentences("Complete sentence. trailing fragment without terminator")
	require.Len(t, sentences, 2)
	assert.Equal(t, "trailing fragment without terminator", sentences[1])
}

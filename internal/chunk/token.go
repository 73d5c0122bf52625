package chunk

import "strings"

// TokenSplitter packs whitespace-separated tokens into chunks of at most
// maxChunkSize tokens, repeating overlap tokens between adjacent chunks.
type TokenSplitter struct{}

// Name returns the registry key.
func (s *TokenSplitter) Name() string { return "token" }

// Split implements Splitter. Bounds are counted in tokens, not characters.
func (s *TokenSplitter) Split(content string, maxChunkSize, overlap int) []string {
	tokens := strings.Fields(content)
	if len(tokens) == 0 {
		return nil
	}

	// Effective overlap is capped below 100% so every chunk makes progress.
	if overlap >= maxChunkSize {
		overlap = maxChunkSize - 1
	}
	step := maxChunkSize - overlap

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + maxChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// Package chunk splits normalized document text into bounded, ordered
// chunks ready for embedding.
//
// Three strategies are registered by name: "sentence", "token", and
// "semantic". All strategies preserve document order and never drop
// non-whitespace text.
package chunk

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "websearch/internal/errors"
)

// Default chunking parameters.
const (
	DefaultMaxChunkSize = 1000
	DefaultOverlap      = 0
)

// Request describes one chunking operation.
type Request struct {
	Content      string `json:"content"`
	Strategy     string `json:"strategy"`
	MaxChunkSize int    `json:"maxChunkSize"`
	Overlap      int    `json:"overlap"`
	SourceURL    string `json:"sourceUrl,omitempty"`
	Namespace    string `json:"namespace,omitempty"`
}

// Chunk is a contiguous span of a document's text, addressable by a
// globally unique id.
type Chunk struct {
	ChunkID         string    `json:"chunkId"`
	Text            string    `json:"text"`
	TokenCount      int       `json:"tokenCount"`
	EmbeddingStored bool      `json:"embeddingStored"`
	SourceURL       string    `json:"sourceUrl,omitempty"`
	Namespace       string    `json:"namespace,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Splitter is a chunking strategy.
type Splitter interface {
	// Split divides content into ordered text pieces. Bounds are already
	// validated by Process.
	Split(content string, maxChunkSize, overlap int) []string

	// Name returns the registry key of this strategy.
	Name() string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Splitter)
)

// Register adds a strategy to the lookup table. Called from init and from
// tests that plug in custom strategies.
func Register(s Splitter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name()] = s
}

// Strategies returns the registered strategy names, sorted.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Splitter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Process validates the request, runs the named strategy, and materializes
// the resulting chunks with fresh ids.
func Process(req Request) ([]Chunk, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "content must not be empty").
			WithDetail("reason", "empty_content")
	}

	if req.MaxChunkSize == 0 {
		req.MaxChunkSize = DefaultMaxChunkSize
	}
	if req.MaxChunkSize < 1 {
		return nil, apperr.Newf(apperr.KindInvalidInput, "maxChunkSize must be >= 1, got %d", req.MaxChunkSize).
			WithDetail("reason", "invalid_bounds")
	}
	if req.Overlap < 0 || req.Overlap >= req.MaxChunkSize {
		return nil, apperr.Newf(apperr.KindInvalidInput, "overlap must be in [0, maxChunkSize), got %d", req.Overlap).
			WithDetail("reason", "invalid_bounds")
	}

	if req.Strategy == "" {
		req.Strategy = "sentence"
	}
	splitter, ok := lookup(req.Strategy)
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown chunk strategy %q (have: %s)",
			req.Strategy, strings.Join(Strategies(), ", ")).
			WithDetail("reason", "invalid_strategy")
	}

	pieces := splitter.Split(req.Content, req.MaxChunkSize, req.Overlap)

	now := time.Now().UTC()
	chunks := make([]Chunk, 0, len(pieces))
	for _, text := range pieces {
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ChunkID:    uuid.NewString(),
			Text:       text,
			TokenCount: len(strings.Fields(text)),
			SourceURL:  req.SourceURL,
			Namespace:  req.Namespace,
			CreatedAt:  now,
		})
	}
	return chunks, nil
}

func init() {
	Register(&SentenceSplitter{})
	Register(&TokenSplitter{})
	Register(&SemanticSplitter{})
}

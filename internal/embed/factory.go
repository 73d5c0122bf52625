package embed

import (
	"context"

	"websearch/internal/config"
	apperr "websearch/internal/errors"
)

// New builds the embedder selected by configuration, wrapped in the LRU
// cache. "static" never touches the network; "ollama" probes the endpoint
// and detects dimensions unless they are pinned in config.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder()
	case "ollama":
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama
	default:
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown embedding provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

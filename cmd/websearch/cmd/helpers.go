package cmd

import (
	"context"
	"log/slog"

	"websearch/internal/config"
	"websearch/internal/embed"
	"websearch/internal/fetch"
	"websearch/internal/store"
	"websearch/internal/websearch"

	apperr "websearch/internal/errors"
)

// loadConfig builds the effective configuration with CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagDataDir)
	if err != nil {
		return nil, err
	}
	if flagOffline {
		cfg.Embeddings.Provider = "static"
	}
	if flagNamespace != "" {
		cfg.Namespace.Default = flagNamespace
	}
	return cfg, nil
}

// newEmbedder builds the configured embedder.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	return embed.New(ctx, cfg.Embeddings)
}

// openStore opens the vector cache sized for the embedder.
func openStore(cfg *config.Config, embedder embed.Embedder, logger *slog.Logger) (*store.Store, error) {
	return store.Open(cfg.IndexDir(), embedder.Dimensions(), embedder.ModelName(), logger)
}

// newFetchService builds the fetch service, wiring the external CAPTCHA
// solver when one is configured.
func newFetchService(cfg *config.Config, logger *slog.Logger) *fetch.Service {
	var solver fetch.Solver
	if cfg.Fetch.CaptchaSolverURL != "" {
		solver = fetch.NewHTTPSolver(cfg.Fetch.CaptchaSolverURL, cfg.Fetch.CaptchaSolverKey)
	}
	return fetch.NewService(cfg.Fetch, solver, logger)
}

// newSearchFacade builds the web search facade for the configured provider.
func newSearchFacade(cfg *config.Config, logger *slog.Logger) (*websearch.Facade, error) {
	switch cfg.Search.Provider {
	case "", "duckduckgo":
		provider := websearch.NewDuckDuckGo(cfg.Fetch.UserAgent, "")
		return websearch.NewFacade(provider, cfg.Search.CacheSize, cfg.SearchCacheTTL(), logger), nil
	default:
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown search provider %q", cfg.Search.Provider)
	}
}

package fetch

import (
	"context"
	"log/slog"
	"sort"

	"websearch/internal/config"
	apperr "websearch/internal/errors"
)

// Service is the mode registry. Fetchers are registered once at
// construction; requests look them up by name.
type Service struct {
	fetchers map[string]Fetcher
	dynamic  *DynamicFetcher
	logger   *slog.Logger
}

// NewService builds the standard fetcher table: static, dynamic, and auto.
func NewService(cfg config.FetchConfig, solver Solver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	static := NewStaticFetcher(cfg, logger)
	dynamic := NewDynamicFetcher(cfg, solver, logger)
	auto := NewAutoFetcher(static, dynamic, cfg.MinTextLength, logger)

	return &Service{
		fetchers: map[string]Fetcher{
			ModeStatic:  static,
			ModeDynamic: dynamic,
			ModeAuto:    auto,
		},
		dynamic: dynamic,
		logger:  logger,
	}
}

// Fetch dispatches the request to the fetcher named by its mode. An empty
// mode means auto; an unknown mode is invalid_input.
func (s *Service) Fetch(ctx context.Context, req Request) (*Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeAuto
	}
	fetcher, ok := s.fetchers[mode]
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown fetch mode %q", mode).
			WithDetail("mode", mode)
	}

	result, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched",
		slog.String("url", req.URL),
		slog.String("fetcher", result.FetcherUsed),
		slog.Int("word_count", result.WordCount),
		slog.Int64("elapsed_ms", result.FetchTimeMillis))
	return result, nil
}

// Modes lists the registered mode names, sorted.
func (s *Service) Modes() []string {
	modes := make([]string, 0, len(s.fetchers))
	for name := range s.fetchers {
		modes = append(modes, name)
	}
	sort.Strings(modes)
	return modes
}

// Close releases the shared browser, if one was started.
func (s *Service) Close() error {
	return s.dynamic.Close()
}

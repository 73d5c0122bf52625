package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"websearch/internal/fetch"
	"websearch/internal/job"
	"websearch/internal/mapper"
	"websearch/internal/namespace"
	"websearch/internal/pipeline"
	"websearch/internal/server"
	"websearch/internal/sitemap"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the HTTP API server on the configured address.

The server exposes the full surface under /api/v1: crawl, search,
chunk, cache, sitemap, map, batch-crawl and async jobs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Bind address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")

	return cmd
}

func runServe(ctx context.Context, host string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := slog.Default()

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg, embedder, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fetcher := newFetchService(cfg, logger)
	defer func() { _ = fetcher.Close() }()

	facade, err := newSearchFacade(cfg, logger)
	if err != nil {
		return err
	}

	sitemaps := sitemap.NewResolver(cfg.Fetch, logger)
	pipe := pipeline.New(fetcher, embedder, st, sitemaps, logger)

	srv := server.New(server.Deps{
		Config:     cfg,
		Fetcher:    fetcher,
		Embedder:   embedder,
		Store:      st,
		Sitemaps:   sitemaps,
		Mapper:     mapper.New(fetch.NewStaticFetcher(cfg.Fetch, logger), logger),
		Pipeline:   pipe,
		Jobs:       job.NewManager(pipe, cfg.JobRetention(), cfg.Jobs.MaxJobs, logger),
		Search:     facade,
		Namespaces: namespace.NewResolver(cfg.Namespace.Default),
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

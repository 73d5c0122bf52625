package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	apperr "websearch/internal/errors"
	"websearch/internal/output"
)

type cacheOptions struct {
	topK      int
	threshold float32
}

func newCacheCmd() *cobra.Command {
	var opts cacheOptions

	cmd := &cobra.Command{
		Use:   "cache <query>",
		Short: "Query the semantic vector cache",
		Long: `Query previously indexed chunks by semantic similarity.

Examples:
  websearch cache "how does connection pooling work"
  websearch cache "rate limits" --namespace docs --top-k 5 --threshold 0.7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 10, "Maximum number of results")
	cmd.Flags().Float32Var(&opts.threshold, "threshold", 0, "Minimum score in [0,1] on the (1+cosine)/2 scale (0.5 = orthogonal)")

	return cmd
}

func runCache(ctx context.Context, query string, opts cacheOptions) error {
	if strings.TrimSpace(query) == "" {
		return apperr.New(apperr.KindInvalidInput, "query must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return err
	}
	hits, err := st.Query(ctx, cfg.Namespace.Default, vec, opts.topK, opts.threshold)
	if err != nil {
		return err
	}
	return output.Stdio().JSON(hits)
}

package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"websearch/internal/output"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector cache statistics",
		Long:  `Print per-namespace chunk counts and on-disk sizes as JSON.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context())
		},
	}
}

func runStats(ctx context.Context) error {
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

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	return output.Stdio().JSON(stats)
}

package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	apperr "websearch/internal/errors"
	"websearch/internal/output"
)

func newResetCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the vector cache",
		Long: `Delete indexed chunks from the vector cache.

With --namespace, clears just that namespace. With --all, clears every
namespace.

Examples:
  websearch reset --namespace docs
  websearch reset --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear every namespace")

	return cmd
}

func runReset(ctx context.Context, all bool) error {
	if !all && flagNamespace == "" {
		return apperr.New(apperr.KindInvalidInput, "pass --namespace <name> or --all")
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

	out := output.Stdio()
	if all {
		if err := st.ResetAll(ctx); err != nil {
			return err
		}
		out.Success("cleared all namespaces")
		return nil
	}
	if err := st.Reset(ctx, flagNamespace); err != nil {
		return err
	}
	out.Successf("cleared namespace %q", flagNamespace)
	return nil
}

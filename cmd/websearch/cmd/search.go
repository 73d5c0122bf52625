package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"websearch/internal/output"
	"websearch/internal/websearch"
)

type searchOptions struct {
	maxResults int
	freshness  string
	language   string
	domains    []string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web",
		Long: `Search the web through the configured provider.

Examples:
  websearch search "go sqlite driver comparison"
  websearch search "release notes" --domain golang.org --freshness month`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.maxResults, "max-results", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.freshness, "freshness", "", "Recency filter: day, week, month, year")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Result language code (e.g. en-us)")
	cmd.Flags().StringSliceVar(&opts.domains, "domain", nil, "Restrict results to a domain (repeatable)")

	return cmd
}

func runSearch(ctx context.Context, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	facade, err := newSearchFacade(cfg, slog.Default())
	if err != nil {
		return err
	}

	resp, err := facade.Search(ctx, websearch.Query{
		Query:          query,
		MaxResults:     opts.maxResults,
		Freshness:      opts.freshness,
		Language:       opts.language,
		IncludeDomains: opts.domains,
	})
	if err != nil {
		return err
	}
	return output.Stdio().JSON(resp)
}

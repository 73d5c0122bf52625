package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"websearch/internal/fetch"
	"websearch/internal/mapper"
	"websearch/internal/output"
)

func newMapCmd() *cobra.Command {
	var maxDepth, maxURLs int
	var pathFilter string

	cmd := &cobra.Command{
		Use:   "map <url>",
		Short: "Map same-domain links from a start page",
		Long: `Breadth-first crawl of same-domain links starting at the given URL.

Examples:
  websearch map https://example.com
  websearch map https://example.com/docs --depth 3 --path-filter "^/docs/"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd.Context(), args[0], maxDepth, maxURLs, pathFilter)
		},
	}

	cmd.Flags().IntVar(&maxDepth, "depth", 0, "Maximum link depth from the start page")
	cmd.Flags().IntVar(&maxURLs, "max-urls", 0, "Maximum URLs to return")
	cmd.Flags().StringVar(&pathFilter, "path-filter", "", "Regex applied to URL paths")

	return cmd
}

func runMap(ctx context.Context, startURL string, maxDepth, maxURLs int, pathFilter string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()
	m := mapper.New(fetch.NewStaticFetcher(cfg.Fetch, logger), logger)

	urls, err := m.Map(ctx, mapper.Request{
		StartURL:   startURL,
		MaxDepth:   maxDepth,
		MaxURLs:    maxURLs,
		PathFilter: pathFilter,
	})
	if err != nil {
		return err
	}
	if urls == nil {
		urls = []string{}
	}
	return output.Stdio().JSON(map[string][]string{"discoveredUrls": urls})
}

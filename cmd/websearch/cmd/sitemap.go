package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"websearch/internal/output"
	"websearch/internal/sitemap"
)

func newSitemapCmd() *cobra.Command {
	var maxURLs int
	var pathFilter string

	cmd := &cobra.Command{
		Use:   "sitemap <domain>",
		Short: "Discover URLs from a site's sitemap",
		Long: `Discover page URLs via robots.txt sitemap directives or the
well-known sitemap locations.

Examples:
  websearch sitemap example.com
  websearch sitemap https://example.com --path-filter "^/blog/" --max-urls 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSitemap(cmd.Context(), args[0], maxURLs, pathFilter)
		},
	}

	cmd.Flags().IntVar(&maxURLs, "max-urls", 0, "Maximum URLs to return")
	cmd.Flags().StringVar(&pathFilter, "path-filter", "", "Regex applied to URL paths")

	return cmd
}

func runSitemap(ctx context.Context, domain string, maxURLs int, pathFilter string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	resolver := sitemap.NewResolver(cfg.Fetch, slog.Default())

	result, err := resolver.Discover(ctx, domain, maxURLs, pathFilter)
	if err != nil {
		return err
	}
	return output.Stdio().JSON(result)
}

package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"websearch/internal/fetch"
	"websearch/internal/output"
)

type crawlOptions struct {
	mode            string
	waitForSelector string
	includeLinks    bool
	includeImages   bool
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Fetch a page and convert it to markdown",
		Long: `Fetch a single page and print its extracted content as JSON.

Modes:
  static   plain HTTP fetch (fast, no JavaScript)
  dynamic  headless browser fetch (renders JavaScript)
  auto     static first, escalating to dynamic for thin pages

Examples:
  websearch crawl https://example.com
  websearch crawl https://app.example.com --mode dynamic --wait-for "#content"
  websearch crawl https://example.com/doc.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "auto", "Fetch mode: static, dynamic, auto")
	cmd.Flags().StringVar(&opts.waitForSelector, "wait-for", "", "CSS selector to wait for (dynamic mode)")
	cmd.Flags().BoolVar(&opts.includeLinks, "links", false, "Include extracted links")
	cmd.Flags().BoolVar(&opts.includeImages, "images", false, "Include extracted image URLs")

	return cmd
}

func runCrawl(ctx context.Context, url string, opts crawlOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fetcher := newFetchService(cfg, slog.Default())
	defer func() { _ = fetcher.Close() }()

	result, err := fetcher.Fetch(ctx, fetch.Request{
		URL:             url,
		Mode:            opts.mode,
		WaitForSelector: opts.waitForSelector,
		IncludeLinks:    opts.includeLinks,
		IncludeImages:   opts.includeImages,
	})
	if err != nil {
		return err
	}
	return output.Stdio().JSON(result)
}

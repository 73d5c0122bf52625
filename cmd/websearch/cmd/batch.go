package cmd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"websearch/internal/output"
	"websearch/internal/pipeline"
	"websearch/internal/sitemap"
)

type batchOptions struct {
	urls          []string
	domain        string
	mode          string
	chunkStrategy string
	maxChunkSize  int
	overlap       int
	concurrency   int
	rateLimitMs   int
	pathFilter    string
	maxURLs       int
}

func newBatchCrawlCmd() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch-crawl",
		Short: "Crawl, chunk and index a batch of pages",
		Long: `Fetch a set of URLs, chunk their content and index the chunks
into the vector cache. URLs come from --url flags, a --domain sitemap,
or both.

Examples:
  websearch batch-crawl --url https://example.com/a --url https://example.com/b
  websearch batch-crawl --domain example.com --path-filter "^/blog/" --namespace blog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchCrawl(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.urls, "url", nil, "URL to crawl (repeatable)")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "Domain whose sitemap seeds the batch")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Fetch mode: static, dynamic, auto")
	cmd.Flags().StringVar(&opts.chunkStrategy, "chunk-strategy", "", "Chunking strategy: sentence, token, semantic")
	cmd.Flags().IntVar(&opts.maxChunkSize, "max-chunk-size", 0, "Maximum chunk size in characters")
	cmd.Flags().IntVar(&opts.overlap, "overlap", 0, "Overlap between adjacent chunks in characters")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Maximum concurrent fetches")
	cmd.Flags().IntVar(&opts.rateLimitMs, "rate-limit-ms", -1, "Minimum delay between fetches to the same host")
	cmd.Flags().StringVar(&opts.pathFilter, "path-filter", "", "Regex applied to URL paths")
	cmd.Flags().IntVar(&opts.maxURLs, "max-urls", 0, "Maximum URLs in the batch")

	return cmd
}

// progressObserver renders batch progress on stderr.
type progressObserver struct {
	out *output.Writer

	mu    sync.Mutex
	total int
	done  int
}

func (o *progressObserver) Materialized(total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total = total
	o.out.Statusf("🌐", "crawling %d urls", total)
}

func (o *progressObserver) bump(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
	o.out.Progress(o.done, o.total, url)
}

func (o *progressObserver) Completed(url string) { o.bump(url) }
func (o *progressObserver) Failed(url string, _ error) {
	o.bump(url)
}
func (o *progressObserver) Cancelled(url string) { o.bump(url) }

func runBatchCrawl(ctx context.Context, opts batchOptions) error {
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

	fetcher := newFetchService(cfg, logger)
	defer func() { _ = fetcher.Close() }()

	pipe := pipeline.New(fetcher, embedder, st, sitemap.NewResolver(cfg.Fetch, logger), logger)

	req := pipeline.Request{
		URLs:           opts.urls,
		Domain:         opts.domain,
		FetchMode:      opts.mode,
		ChunkStrategy:  opts.chunkStrategy,
		MaxChunkSize:   opts.maxChunkSize,
		Overlap:        opts.overlap,
		MaxConcurrency: opts.concurrency,
		PathFilter:     opts.pathFilter,
		MaxURLs:        opts.maxURLs,
		Namespace:      cfg.Namespace.Default,
	}
	if req.MaxConcurrency == 0 {
		req.MaxConcurrency = cfg.Batch.MaxConcurrency
	}
	if opts.rateLimitMs >= 0 {
		req.RateLimitMs = opts.rateLimitMs
	} else {
		req.RateLimitMs = cfg.Batch.RateLimitMs
	}

	out := output.Stdio()
	var obs pipeline.Observer
	if out.DiagIsTerminal() {
		obs = &progressObserver{out: out}
	}

	result, err := pipe.Run(ctx, req, obs)
	if err != nil {
		return err
	}
	return out.JSON(result)
}

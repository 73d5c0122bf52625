package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"websearch/internal/chunk"
	apperr "websearch/internal/errors"
	"websearch/internal/output"
)

type chunkOptions struct {
	content      string
	strategy     string
	maxChunkSize int
	overlap      int
	sourceURL    string
}

func newChunkCmd() *cobra.Command {
	var opts chunkOptions

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Split text into chunks",
		Long: `Split text into chunks using the sentence, token or semantic strategy.

Content is read from --content, or from stdin when the flag is absent:

  cat article.txt | websearch chunk --strategy sentence --max-chunk-size 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(opts)
		},
	}

	cmd.Flags().StringVar(&opts.content, "content", "", "Text to chunk (default: stdin)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Chunking strategy: sentence, token, semantic")
	cmd.Flags().IntVar(&opts.maxChunkSize, "max-chunk-size", 0, "Maximum chunk size in characters")
	cmd.Flags().IntVar(&opts.overlap, "overlap", 0, "Overlap between adjacent chunks in characters")
	cmd.Flags().StringVar(&opts.sourceURL, "source-url", "", "Source URL recorded on each chunk")

	return cmd
}

func runChunk(opts chunkOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	content := opts.content
	if content == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return apperr.Wrap(apperr.KindIO, "read stdin", err)
		}
		content = string(data)
	}

	req := chunk.Request{
		Content:      content,
		Strategy:     opts.strategy,
		MaxChunkSize: opts.maxChunkSize,
		Overlap:      opts.overlap,
		SourceURL:    opts.sourceURL,
		Namespace:    cfg.Namespace.Default,
	}
	if req.Strategy == "" {
		req.Strategy = cfg.Chunk.DefaultStrategy
	}
	if req.MaxChunkSize == 0 {
		req.MaxChunkSize = cfg.Chunk.MaxChunkSize
	}

	chunks, err := chunk.Process(req)
	if err != nil {
		return err
	}
	return output.Stdio().JSON(chunks)
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	apperr "websearch/internal/errors"
	"websearch/internal/output"
	"websearch/internal/pipeline"
)

func newJobsCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage async crawl jobs on a running server",
		Long: `Inspect and control async batch-crawl jobs on a running
websearch server.

Examples:
  websearch jobs list
  websearch jobs submit --url https://example.com --domain example.com
  websearch jobs status 3f8a...
  websearch jobs cancel 3f8a...`,
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server base URL (default from config)")

	cmd.AddCommand(newJobsListCmd(&serverURL))
	cmd.AddCommand(newJobsSubmitCmd(&serverURL))
	cmd.AddCommand(newJobsStatusCmd(&serverURL))
	cmd.AddCommand(newJobsCancelCmd(&serverURL))

	return cmd
}

func newJobsListCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known job IDs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newJobsClient(*serverURL)
			if err != nil {
				return err
			}
			var ids []string
			if err := client.get(cmd.Context(), "/api/v1/jobs", &ids); err != nil {
				return err
			}
			return output.Stdio().JSON(ids)
		},
	}
}

func newJobsSubmitCmd(serverURL *string) *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an async batch crawl",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newJobsClient(*serverURL)
			if err != nil {
				return err
			}
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
				Namespace:      flagNamespace,
			}
			if opts.rateLimitMs >= 0 {
				req.RateLimitMs = opts.rateLimitMs
			}
			var resp map[string]string
			if err := client.post(cmd.Context(), "/api/v1/jobs", req, &resp); err != nil {
				return err
			}
			return output.Stdio().JSON(resp)
		},
	}

	cmd.Flags().StringArrayVar(&opts.urls, "url", nil, "URL to crawl (repeatable)")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "Domain whose sitemap seeds the batch")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Fetch mode: static, dynamic, auto")
	cmd.Flags().StringVar(&opts.chunkStrategy, "chunk-strategy", "", "Chunking strategy")
	cmd.Flags().IntVar(&opts.maxChunkSize, "max-chunk-size", 0, "Maximum chunk size in characters")
	cmd.Flags().IntVar(&opts.overlap, "overlap", 0, "Overlap between adjacent chunks")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Maximum concurrent fetches")
	cmd.Flags().IntVar(&opts.rateLimitMs, "rate-limit-ms", -1, "Minimum per-host delay in milliseconds")
	cmd.Flags().StringVar(&opts.pathFilter, "path-filter", "", "Regex applied to URL paths")
	cmd.Flags().IntVar(&opts.maxURLs, "max-urls", 0, "Maximum URLs in the batch")

	return cmd
}

func newJobsStatusCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newJobsClient(*serverURL)
			if err != nil {
				return err
			}
			var status json.RawMessage
			if err := client.get(cmd.Context(), "/api/v1/jobs/"+args[0], &status); err != nil {
				return err
			}
			return output.Stdio().JSON(status)
		},
	}
}

func newJobsCancelCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newJobsClient(*serverURL)
			if err != nil {
				return err
			}
			var resp json.RawMessage
			if err := client.do(cmd.Context(), http.MethodDelete, "/api/v1/jobs/"+args[0], nil, &resp); err != nil {
				return err
			}
			return output.Stdio().JSON(resp)
		},
	}
}

// jobsClient is a thin client for the jobs API of a running server.
type jobsClient struct {
	base   string
	client *http.Client
}

func newJobsClient(base string) (*jobsClient, error) {
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		base = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	return &jobsClient{base: base, client: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (c *jobsClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *jobsClient) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *jobsClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "build request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, "is the server running? start it with 'websearch serve'", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, "read response", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindParse, "decode response", err)
	}
	return nil
}

// decodeAPIError reconstructs a structured error from the server's
// error envelope so exit codes match local execution.
func decodeAPIError(status int, data []byte) error {
	var envelope struct {
		Error struct {
			Kind    apperr.Kind       `json:"kind"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Kind != "" {
		e := apperr.New(envelope.Error.Kind, envelope.Error.Message)
		for k, v := range envelope.Error.Details {
			e = e.WithDetail(k, v)
		}
		return e
	}
	return apperr.Newf(apperr.KindHTTPStatus, "server returned %d", status).
		WithDetail("status", fmt.Sprintf("%d", status))
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"websearch/internal/config"
	"websearch/internal/embed"
	"websearch/internal/fetch"
	"websearch/internal/job"
	"websearch/internal/mapper"
	"websearch/internal/namespace"
	"websearch/internal/pipeline"
	"websearch/internal/sitemap"
	"websearch/internal/store"
	"websearch/internal/websearch"
)

type stubProvider struct{}

func (stubProvider) Search(ctx context.Context, q websearch.Query) ([]websearch.Result, error) {
	return []websearch.Result{{Title: "stub", URL: "https://example.com", Snippet: "stub result"}}, nil
}

func (stubProvider) Name() string { return "stub" }

func newTestServer(t *testing.T) (*httptest.Server, Deps) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	embedder := embed.NewStaticEmbedder()
	st, err := store.Open(cfg.IndexDir(), embed.StaticDimensions, embedder.ModelName(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fetcher := fetch.NewService(cfg.Fetch, nil, logger)
	t.Cleanup(func() { _ = fetcher.Close() })

	sitemaps := sitemap.NewResolver(cfg.Fetch, logger)
	pipe := pipeline.New(fetcher, embedder, st, sitemaps, logger)

	deps := Deps{
		Config:     cfg,
		Fetcher:    fetcher,
		Embedder:   embedder,
		Store:      st,
		Sitemaps:   sitemaps,
		Mapper:     mapper.New(fetch.NewStaticFetcher(cfg.Fetch, logger), logger),
		Pipeline:   pipe,
		Jobs:       job.NewManager(pipe, time.Hour, 100, logger),
		Search:     websearch.NewFacade(stubProvider{}, 16, time.Minute, logger),
		Namespaces: namespace.NewResolver(cfg.Namespace.Default),
		Logger:     logger,
	}

	srv := httptest.NewServer(New(deps).Handler())
	t.Cleanup(srv.Close)
	return srv, deps
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestChunkEndpointScenario(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/chunk", map[string]any{
		"content": "Alpha. Beta. Gamma.", "strategy": "sentence", "maxChunkSize": 12, "overlap": 0,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chunks := decode[[]map[string]any](t, resp)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0]["text"], "Alpha.")
	assert.Contains(t, chunks[1]["text"], "Beta.")
	assert.Contains(t, chunks[2]["text"], "Gamma.")
}

func TestChunkEndpointEmptyContent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/chunk", map[string]any{"content": "  "}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	envelope := decode[map[string]map[string]any](t, resp)
	assert.Equal(t, "invalid_input", envelope["error"]["kind"])
}

func TestCacheEndpointEmptyNamespace(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/cache", map[string]any{"query": "anything"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hits := decode[[]store.ScoredChunk](t, resp)
	assert.Empty(t, hits)
}

func TestCacheEndpointReturnsStoredChunks(t *testing.T) {
	srv, deps := newTestServer(t)
	ctx := context.Background()

	text := "The quick brown fox jumps over the lazy dog."
	vec, err := deps.Embedder.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, deps.Store.Put(ctx, "team-a", store.Record{
		ChunkID: "c1", Text: text, SourceURL: "https://example.com/fox", Vector: vec,
	}))

	resp := postJSON(t, srv.URL+"/api/v1/cache",
		map[string]any{"query": text}, map[string]string{"X-Namespace": "team-a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	hits := decode[[]store.ScoredChunk](t, resp)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.GreaterOrEqual(t, hits[0].Score, float32(0.999))
}

func TestCrawlEndpoint(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><head><title>Crawled</title></head><body><p>Crawl body text.</p></body></html>")
	}))
	defer page.Close()

	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/v1/crawl",
		map[string]any{"url": page.URL, "fetchMode": "static"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[fetch.Result](t, resp)
	assert.Equal(t, "Crawled", result.Title)
	assert.Contains(t, result.Content, "Crawl body text.")
}

func TestCrawlEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/crawl", map[string]any{"url": "ftp://x"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/crawl",
		map[string]any{"url": "https://example.com", "outputFormat": "pdf"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/crawl", map[string]any{"bogusField": true}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/search", map[string]any{"query": "golang"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[websearch.Response](t, resp)
	assert.Equal(t, "stub", result.Provider)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "stub", result.Results[0].Title)
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Job page content with plenty of words to chunk.</p></body></html>")
	}))
	defer page.Close()

	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/jobs",
		map[string]any{"urls": []string{page.URL + "/a"}, "fetchMode": "static"}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	submitted := decode[map[string]string](t, resp)
	jobID := submitted["jobId"]
	require.NotEmpty(t, jobID)

	var status job.Status
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stResp, err := http.Get(srv.URL + "/api/v1/jobs/" + jobID)
		require.NoError(t, err)
		status = decode[job.Status](t, stResp)
		if status.State.Terminal() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, job.StateCompleted, status.State)
	assert.Equal(t, status.Total, status.Completed+status.Failed+status.Cancelled)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.Processed)

	listResp, err := http.Get(srv.URL + "/api/v1/jobs")
	require.NoError(t, err)
	ids := decode[[]string](t, listResp)
	assert.Contains(t, ids, jobID)
}

func TestJobStatusUnknown(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/jobs/does-not-exist")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobCancelOverHTTP(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, "<html><body>slow</body></html>")
	}))
	defer slow.Close()

	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/jobs",
		map[string]any{"urls": []string{slow.URL}, "fetchMode": "static"}, nil)
	jobID := decode[map[string]string](t, resp)["jobId"]

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/jobs/"+jobID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	cancelled := decode[jobCancelResponse](t, delResp)
	assert.True(t, cancelled.Cancelled)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stResp, err := http.Get(srv.URL + "/api/v1/jobs/" + jobID)
		require.NoError(t, err)
		status := decode[job.Status](t, stResp)
		if status.State.Terminal() {
			assert.Equal(t, job.StateCancelled, status.State)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job never terminated after cancel")
}

func TestStatsEndpoint(t *testing.T) {
	srv, deps := newTestServer(t)
	ctx := context.Background()

	vec, err := deps.Embedder.Embed(ctx, "stats fixture text")
	require.NoError(t, err)
	require.NoError(t, deps.Store.Put(ctx, "default", store.Record{
		ChunkID: "s1", Text: "stats fixture text", SourceURL: "https://example.com", Vector: vec,
	}))

	// Generate one measured request before asking for stats.
	resp := postJSON(t, srv.URL+"/api/v1/search", map[string]any{"query": "warmup"}, nil)
	_ = resp.Body.Close()

	statsResp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var payload struct {
		Index struct {
			TotalChunks int `json:"totalChunks"`
		} `json:"index"`
		Requests map[string]struct {
			Count int `json:"count"`
		} `json:"requests"`
	}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&payload))
	_ = statsResp.Body.Close()

	assert.Equal(t, 1, payload.Index.TotalChunks)
	assert.GreaterOrEqual(t, payload.Requests["POST /api/v1/search"].Count, 1)
}

func TestBatchCrawlEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/batch-crawl", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/jobs",
		map[string]any{"namespace": "bad namespace!"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

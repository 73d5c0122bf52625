package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"websearch/internal/config"
	"websearch/internal/embed"
	apperr "websearch/internal/errors"
	"websearch/internal/fetch"
	"websearch/internal/sitemap"
	"websearch/internal/store"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	fetchCfg := config.FetchConfig{UserAgent: "websearch-test", TimeoutSeconds: 10, MaxRedirects: 5}
	embedder := embed.NewStaticEmbedder()

	st, err := store.Open(t.TempDir(), embed.StaticDimensions, embedder.ModelName(), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := fetch.NewService(fetchCfg, nil, quiet())
	t.Cleanup(func() { _ = svc.Close() })

	return New(svc, embedder, st, sitemap.NewResolver(fetchCfg, quiet()), quiet()), st
}

func page(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><head><title>t</title></head><body><p>%s</p></body></html>", text)
	}
}

// countingObserver records progress events for invariant checks.
type countingObserver struct {
	mu                           sync.Mutex
	total                        int
	completed, failed, cancelled int
}

func (o *countingObserver) Materialized(n int) { o.mu.Lock(); o.total = n; o.mu.Unlock() }
func (o *countingObserver) Completed(string)   { o.mu.Lock(); o.completed++; o.mu.Unlock() }
func (o *countingObserver) Failed(string, error) {
	o.mu.Lock()
	o.failed++
	o.mu.Unlock()
}
func (o *countingObserver) Cancelled(string) { o.mu.Lock(); o.cancelled++; o.mu.Unlock() }

func TestRunIngestsAndStores(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/a", page("Alpha page content about storage engines. More sentences follow here."))
	mux.Handle("/b", page("Beta page content about network protocols. More sentences follow here."))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, st := newTestPipeline(t)
	obs := &countingObserver{}

	result, err := p.Run(context.Background(), Request{
		URLs:      []string{srv.URL + "/a", srv.URL + "/b"},
		FetchMode: fetch.ModeStatic,
		Namespace: "batch-test",
	}, obs)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Empty(t, result.Failed)
	assert.NotEmpty(t, result.ChunkIDs)
	assert.Equal(t, 2, obs.total)
	assert.Equal(t, 2, obs.completed)

	count, err := st.Count(context.Background(), "batch-test")
	require.NoError(t, err)
	assert.Equal(t, len(result.ChunkIDs), count)

	// Round-trip: the stored chunks are retrievable by their own content.
	embedder := embed.NewStaticEmbedder()
	vec, err := embedder.Embed(context.Background(), "Alpha page content about storage engines. More sentences follow here.")
	require.NoError(t, err)
	hits, err := st.Query(context.Background(), "batch-test", vec, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Text, "Alpha page content")
}

func TestRunRecordsPerURLFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/ok", page("Good page with enough words to chunk and store properly."))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, _ := newTestPipeline(t)
	result, err := p.Run(context.Background(), Request{
		URLs:      []string{srv.URL + "/ok", srv.URL + "/missing"},
		FetchMode: fetch.ModeStatic,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, srv.URL+"/missing", result.Failed[0].URL)
	assert.Equal(t, string(apperr.KindHTTPStatus), result.Failed[0].Kind)
}

func TestRunDeduplicatesURLs(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page("Deduplicated page content with several words in it.")(w, r)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t)
	result, err := p.Run(context.Background(), Request{
		URLs:      []string{srv.URL + "/x", srv.URL + "/x", srv.URL + "/x#frag"},
		FetchMode: fetch.ModeStatic,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunPerHostRateLimit(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		page("Rate limited host page content with words.")(w, r)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t)
	_, err := p.Run(context.Background(), Request{
		URLs:           []string{srv.URL + "/1", srv.URL + "/2"},
		FetchMode:      fetch.ModeStatic,
		MaxConcurrency: 2,
		RateLimitMs:    300,
	}, nil)
	require.NoError(t, err)

	require.Len(t, times, 2)
	gap := times[1].Sub(times[0])
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, 290*time.Millisecond)
}

func TestRunCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		page("Slow page content.")(w, r)
	}))
	defer srv.Close()
	defer close(release)

	var urls []string
	for i := 0; i < 10; i++ {
		urls = append(urls, fmt.Sprintf("%s/slow-%d", srv.URL, i))
	}

	p, _ := newTestPipeline(t)
	obs := &countingObserver{}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := p.Run(ctx, Request{
		URLs: urls, FetchMode: fetch.ModeStatic, MaxConcurrency: 2,
	}, obs)
	require.NoError(t, err, "cancellation returns a partial result, not an error")
	assert.Less(t, time.Since(start), 3*time.Second, "cancel must take effect promptly")

	assert.GreaterOrEqual(t, result.Cancelled, 1)
	assert.Equal(t, obs.total, obs.completed+obs.failed+obs.cancelled)
	assert.Equal(t, 10, result.Processed+len(result.Failed)+result.Cancelled)
}

func TestRunMaterializesFromSitemap(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/from-sitemap</loc></url></urlset>`, srv.URL)
	})
	mux.Handle("/from-sitemap", page("Sitemap discovered page content with words."))
	mux.Handle("/explicit", page("Explicitly listed page content with words."))
	srv = httptest.NewServer(mux)
	defer srv.Close()

	p, _ := newTestPipeline(t)
	result, err := p.Run(context.Background(), Request{
		URLs:      []string{srv.URL + "/explicit"},
		Domain:    srv.URL,
		FetchMode: fetch.ModeStatic,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
}

func TestRunValidation(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Run(context.Background(), Request{}, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	_, err = p.Run(context.Background(), Request{URLs: []string{"ftp://nope", ":::"}}, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
}

func TestHostLimiterIndependentHosts(t *testing.T) {
	l := newHostLimiter(200 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.wait(ctx, "h1"))
	require.NoError(t, l.wait(ctx, "h2"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "distinct hosts must not wait on each other")

	require.NoError(t, l.wait(ctx, "h1"))
	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}

func TestHostLimiterCancellation(t *testing.T) {
	l := newHostLimiter(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.wait(ctx, "h"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := l.wait(ctx, "h")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeURL(t *testing.T) {
	got, ok := normalizeURL(" https://Example.COM/Path#frag ")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/Path", got)

	_, ok = normalizeURL("ftp://example.com")
	assert.False(t, ok)
	_, ok = normalizeURL("not a url")
	assert.False(t, ok)
}

func TestNormalizeURLStripsDefaultPort(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://example.com:80/a", "http://example.com/a"},
		{"https://example.com:443/a", "https://example.com/a"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
		{"https://example.com:80/a", "https://example.com:80/a"},
		{"http://[::1]:80/a", "http://[::1]/a"},
	}
	for _, tt := range tests {
		got, ok := normalizeURL(tt.raw)
		require.True(t, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	// Port variants collapse to one crawl target and one rate-limit host.
	a, _ := normalizeURL("http://h:80/a")
	b, _ := normalizeURL("http://h/a")
	assert.Equal(t, a, b)
	assert.Equal(t, hostOf(a), hostOf(b))
}

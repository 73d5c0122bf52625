// Package server exposes the HTTP API under /api/v1.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"websearch/internal/config"
	"websearch/internal/embed"
	"websearch/internal/fetch"
	"websearch/internal/job"
	"websearch/internal/mapper"
	"websearch/internal/namespace"
	"websearch/internal/pipeline"
	"websearch/internal/sitemap"
	"websearch/internal/store"
	"websearch/internal/telemetry"
	"websearch/internal/websearch"
)

// Deps carries the wired components the handlers need.
type Deps struct {
	Config     *config.Config
	Fetcher    *fetch.Service
	Embedder   embed.Embedder
	Store      *store.Store
	Sitemaps   *sitemap.Resolver
	Mapper     *mapper.Mapper
	Pipeline   *pipeline.Pipeline
	Jobs       *job.Manager
	Search     *websearch.Facade
	Namespaces *namespace.Resolver
	Metrics    *telemetry.RequestMetrics
	Logger     *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	deps Deps
	http *http.Server
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewRequestMetrics(telemetry.DefaultWindow)
	}
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(deps.Logger, deps.Metrics))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/crawl", s.handleCrawl)
		r.Post("/sitemap", s.handleSitemap)
		r.Post("/map", s.handleMap)
		r.Post("/batch-crawl", s.handleBatchCrawl)
		r.Post("/chunk", s.handleChunk)
		r.Post("/search", s.handleSearch)
		r.Post("/cache", s.handleCache)
		r.Post("/jobs", s.handleJobSubmit)
		r.Get("/jobs", s.handleJobList)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Delete("/jobs/{id}", s.handleJobCancel)
		r.Get("/stats", s.handleStats)
	})

	addr := fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.deps.Logger.Info("http server listening", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and cancels running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Jobs.Shutdown()
	return s.http.Shutdown(ctx)
}

// requestLogger logs one line per request and feeds the metrics window.
func requestLogger(logger *slog.Logger, metrics *telemetry.RequestMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			// Route patterns keep the metric key cardinality bounded
			// (one key per route, not per job id).
			op := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				op = rctx.RoutePattern()
			}
			metrics.Record(r.Method+" "+op, elapsed, ww.Status() < 500)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int64("elapsed_ms", elapsed.Milliseconds()))
		})
	}
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"websearch/internal/chunk"
	apperr "websearch/internal/errors"
	"websearch/internal/fetch"
	"websearch/internal/mapper"
	"websearch/internal/pipeline"
	"websearch/internal/store"
	"websearch/internal/telemetry"
	"websearch/internal/websearch"
)

type crawlRequest struct {
	URL             string `json:"url"`
	FetchMode       string `json:"fetchMode,omitempty"`
	OutputFormat    string `json:"outputFormat,omitempty"`
	IncludeLinks    bool   `json:"includeLinks,omitempty"`
	IncludeImages   bool   `json:"includeImages,omitempty"`
	WaitForSelector string `json:"waitForSelector,omitempty"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	switch req.OutputFormat {
	case "", "markdown", "text":
	default:
		writeError(w, apperr.Newf(apperr.KindInvalidInput, "unknown output format %q", req.OutputFormat))
		return
	}

	result, err := s.deps.Fetcher.Fetch(r.Context(), fetch.Request{
		URL:             req.URL,
		Mode:            req.FetchMode,
		WaitForSelector: req.WaitForSelector,
		IncludeLinks:    req.IncludeLinks,
		IncludeImages:   req.IncludeImages,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type sitemapRequest struct {
	Domain     string `json:"domain"`
	MaxURLs    int    `json:"maxUrls,omitempty"`
	PathFilter string `json:"pathFilter,omitempty"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	var req sitemapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Sitemaps.Discover(r.Context(), req.Domain, req.MaxURLs, req.PathFilter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type mapResponse struct {
	DiscoveredURLs []string `json:"discoveredUrls"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req mapper.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	urls, err := s.deps.Mapper.Map(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, mapResponse{DiscoveredURLs: urls})
}

func (s *Server) handleBatchCrawl(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Pipeline.Run(r.Context(), *req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeBatch parses a batch request and resolves its namespace.
func (s *Server) decodeBatch(r *http.Request) (*pipeline.Request, error) {
	var req pipeline.Request
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	ns, err := s.deps.Namespaces.Resolve(req.Namespace, r)
	if err != nil {
		return nil, err
	}
	req.Namespace = ns
	return &req, nil
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunk.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ns, err := s.deps.Namespaces.Resolve(req.Namespace, r)
	if err != nil {
		writeError(w, err)
		return
	}
	req.Namespace = ns

	chunks, err := chunk.Process(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req websearch.Query
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.deps.Search.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type cacheRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"topK,omitempty"`
	Threshold float32 `json:"threshold,omitempty"`
	Namespace string  `json:"namespace,omitempty"`
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	var req cacheRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeError(w, apperr.New(apperr.KindInvalidInput, "query must not be empty"))
		return
	}
	ns, err := s.deps.Namespaces.Resolve(req.Namespace, r)
	if err != nil {
		writeError(w, err)
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	vec, err := s.deps.Embedder.Embed(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	hits, err := s.deps.Store.Query(r.Context(), ns, vec, topK, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

type jobSubmitResponse struct {
	JobID string `json:"jobId"`
}

func (s *Server) handleJobSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// Reject empty batches before spawning a doomed job.
	if len(req.URLs) == 0 && req.Domain == "" {
		writeError(w, apperr.New(apperr.KindInvalidInput, "batch needs urls or a domain"))
		return
	}
	id := s.deps.Jobs.Submit(*req)
	writeJSON(w, http.StatusAccepted, jobSubmitResponse{JobID: id})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	ids := s.deps.Jobs.List()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.deps.Jobs.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type jobCancelResponse struct {
	JobID     string `json:"jobId"`
	Cancelled bool   `json:"cancelled"`
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled, err := s.deps.Jobs.Cancel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobCancelResponse{JobID: id, Cancelled: cancelled})
}

type statsResponse struct {
	Index    *store.Stats                 `json:"index"`
	Requests map[string]telemetry.OpStats `json:"requests"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	indexStats, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Index:    indexStats,
		Requests: s.deps.Metrics.Snapshot(),
	})
}

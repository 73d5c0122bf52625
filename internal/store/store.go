package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	apperr "websearch/internal/errors"
)

// Store manages per-namespace chunk stores under a single index root.
// Namespaces are materialized lazily on first Put; queries against a
// namespace that was never written return empty results.
type Store struct {
	baseDir string
	dims    int
	model   string
	logger  *slog.Logger

	mu     sync.Mutex
	lock   *indexLock
	spaces map[string]*namespaceStore
	closed bool
}

// namespaceStore bundles the durable records and the ANN index for one
// namespace.
type namespaceStore struct {
	dir     string
	records *recordDB
	vectors *vectorIndex
}

// Open creates a store rooted at baseDir and takes the cross-process
// writer lock. dims is the embedding dimension all namespaces share; model
// is recorded for status reporting.
func Open(baseDir string, dims int, model string, logger *slog.Logger) (*Store, error) {
	if dims <= 0 {
		return nil, apperr.Newf(apperr.KindInvalidInput, "invalid embedding dimension %d", dims)
	}
	if logger == nil {
		logger = slog.Default()
	}

	lock, err := acquireIndexLock(baseDir)
	if err != nil {
		return nil, err
	}

	return &Store{
		baseDir: baseDir,
		dims:    dims,
		model:   model,
		logger:  logger,
		lock:    lock,
		spaces:  make(map[string]*namespaceStore),
	}, nil
}

// Dimensions returns the embedding dimension the store was opened with.
func (s *Store) Dimensions() int { return s.dims }

// namespaceDir returns the directory for ns without creating it.
func (s *Store) namespaceDir(ns string) string {
	return filepath.Join(s.baseDir, ns)
}

// space returns the open namespaceStore for ns, opening or creating it as
// needed. Caller holds s.mu.
func (s *Store) space(ctx context.Context, ns string, create bool) (*namespaceStore, error) {
	if sp, ok := s.spaces[ns]; ok {
		return sp, nil
	}

	dir := s.namespaceDir(ns)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if !create {
			return nil, nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "create namespace directory", err)
		}
	}

	records, err := openRecordDB(filepath.Join(dir, recordsFile))
	if err != nil {
		return nil, err
	}

	vectors := newVectorIndex(s.dims)
	snapshotPath := filepath.Join(dir, vectorsFile)
	if err := vectors.load(snapshotPath); err != nil {
		if !os.IsNotExist(apperr.Cause(err)) {
			s.logger.Warn("vector snapshot unreadable, rebuilding from records",
				slog.String("namespace", ns), slog.String("error", err.Error()))
		}
		vectors = newVectorIndex(s.dims)
		err := records.forEachEmbedding(ctx, func(chunkID string, vec []float32) error {
			return vectors.add(chunkID, vec)
		})
		if err != nil {
			_ = records.close()
			return nil, err
		}
	}

	sp := &namespaceStore{dir: dir, records: records, vectors: vectors}
	s.spaces[ns] = sp
	return sp, nil
}

// Put persists records into ns. The SQLite row is written synchronously;
// the vector index is updated in memory and snapshotted on Flush/Close.
// Re-putting an existing chunkId overwrites in place.
func (s *Store) Put(ctx context.Context, ns string, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec.ChunkID == "" {
			return apperr.New(apperr.KindInvalidInput, "record has empty chunkId")
		}
		if len(rec.Vector) != s.dims {
			return apperr.Newf(apperr.KindDimMismatch,
				"record %s has %d dimensions, store expects %d", rec.ChunkID, len(rec.Vector), s.dims)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.New(apperr.KindInternal, "store is closed")
	}

	sp, err := s.space(ctx, ns, true)
	if err != nil {
		return err
	}

	if err := sp.records.put(ctx, records); err != nil {
		return err
	}
	for _, rec := range records {
		if err := sp.vectors.add(rec.ChunkID, rec.Vector); err != nil {
			return err
		}
	}
	return nil
}

// Query returns up to topK chunks from ns scoring at or above threshold,
// in descending score order. Scores map cosine similarity onto [0, 1] via
// (1+cos)/2: identical direction is 1, orthogonal 0.5, opposite 0.
// threshold compares against that mapped score, not raw cosine. An unknown
// namespace yields no results.
func (s *Store) Query(ctx context.Context, ns string, vec []float32, topK int, threshold float32) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, apperr.Newf(apperr.KindInvalidInput, "topK must be positive, got %d", topK)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperr.New(apperr.KindInternal, "store is closed")
	}
	sp, err := s.space(ctx, ns, false)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return []ScoredChunk{}, nil
	}

	hits, err := sp.vectors.search(vec, topK)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			ids = append(ids, h.ChunkID)
		}
	}
	recs, err := sp.records.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredChunk, 0, len(ids))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		rec, ok := recs[h.ChunkID]
		if !ok {
			continue
		}
		results = append(results, ScoredChunk{
			ChunkID:   rec.ChunkID,
			Text:      rec.Text,
			SourceURL: rec.SourceURL,
			Score:     h.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Count returns the number of chunks stored in ns.
func (s *Store) Count(ctx context.Context, ns string) (int, error) {
	s.mu.Lock()
	sp, err := s.space(ctx, ns, false)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if sp == nil {
		return 0, nil
	}
	return sp.records.count(ctx)
}

// Reset deletes all data in ns. Resetting an unknown namespace is a no-op.
func (s *Store) Reset(ctx context.Context, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.New(apperr.KindInternal, "store is closed")
	}

	if sp, ok := s.spaces[ns]; ok {
		_ = sp.records.close()
		delete(s.spaces, ns)
	}

	dir := s.namespaceDir(ns)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return apperr.Wrap(apperr.KindIO, "remove namespace directory", err)
	}
	return nil
}

// ResetAll deletes every namespace.
func (s *Store) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.spaces))
	for ns := range s.spaces {
		names = append(names, ns)
	}
	s.mu.Unlock()

	seen := make(map[string]bool, len(names))
	for _, ns := range names {
		seen[ns] = true
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.KindIO, "list index directory", err)
	}
	for _, e := range entries {
		if e.IsDir() && !seen[e.Name()] {
			names = append(names, e.Name())
		}
	}

	for _, ns := range names {
		if err := s.Reset(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

// Flush snapshots every open vector index to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for ns, sp := range s.spaces {
		if err := sp.vectors.save(filepath.Join(sp.dir, vectorsFile)); err != nil {
			s.logger.Error("flush vector snapshot failed",
				slog.String("namespace", ns), slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// Stats reports chunk counts and on-disk sizes per namespace, including
// namespaces not yet opened in this process.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, apperr.Wrap(apperr.KindIO, "list index directory", err)
	}

	stats := &Stats{Dimensions: s.dims, Model: s.model}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ns := e.Name()

		s.mu.Lock()
		sp, err := s.space(ctx, ns, false)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if sp == nil {
			continue
		}

		count, err := sp.records.count(ctx)
		if err != nil {
			return nil, err
		}
		stats.Namespaces = append(stats.Namespaces, NamespaceStats{
			Namespace: ns,
			Chunks:    count,
			SizeBytes: dirSize(sp.dir),
		})
		stats.Total += count
	}
	sort.Slice(stats.Namespaces, func(i, j int) bool {
		return stats.Namespaces[i].Namespace < stats.Namespaces[j].Namespace
	})
	return stats, nil
}

// Close flushes snapshots, closes databases, and releases the writer lock.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.logger.Warn("flush on close failed", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, sp := range s.spaces {
		if err := sp.records.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.spaces = nil

	if err := s.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func dirSize(dir string) int64 {
	var size int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !info.IsDir() {
			size += info.Size()
		}
	}
	return size
}

package store

import (
	"bufio"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	apperr "websearch/internal/errors"
)

// HNSW construction parameters.
const (
	hnswM        = 16
	hnswEfSearch = 20
	hnswMl       = 0.25
)

// vectorIndex wraps a coder/hnsw graph with string chunk ids. The graph
// keys are monotonically increasing uint64s; removals are lazy (the mapping
// is dropped, the node stays) because deleting the last graph node corrupts
// the structure.
type vectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	dims    int
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// vectorMetadata is the gob sidecar persisted next to the graph snapshot.
type vectorMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

func newVectorIndex(dims int) *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch
	graph.Ml = hnswMl

	return &vectorIndex{
		graph:  graph,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts or replaces a vector. Replacement orphans the old graph node.
func (v *vectorIndex) add(chunkID string, vec []float32) error {
	if len(vec) != v.dims {
		return apperr.Newf(apperr.KindDimMismatch,
			"vector has %d dimensions, index expects %d", len(vec), v.dims)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if oldKey, ok := v.idMap[chunkID]; ok {
		delete(v.keyMap, oldKey)
		delete(v.idMap, chunkID)
	}

	key := v.nextKey
	v.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	v.graph.Add(hnsw.MakeNode(key, normalized))
	v.idMap[chunkID] = key
	v.keyMap[key] = chunkID
	return nil
}

// vectorHit is a raw ANN result before record hydration.
type vectorHit struct {
	ChunkID string
	Score   float32
}

// search returns up to k live neighbors scored on the (1+cos)/2 scale,
// so every score lands in [0, 1]. Orphaned nodes may occupy result slots,
// so the graph is over-queried to compensate.
func (v *vectorIndex) search(vec []float32, k int) ([]vectorHit, error) {
	if len(vec) != v.dims {
		return nil, apperr.Newf(apperr.KindDimMismatch,
			"query vector has %d dimensions, index expects %d", len(vec), v.dims)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 || len(v.idMap) == 0 {
		return nil, nil
	}

	query := make([]float32, len(vec))
	copy(query, vec)
	normalizeInPlace(query)

	orphans := v.graph.Len() - len(v.idMap)
	nodes := v.graph.Search(query, k+orphans)

	hits := make([]vectorHit, 0, k)
	for _, node := range nodes {
		id, live := v.keyMap[node.Key]
		if !live {
			continue
		}
		distance := v.graph.Distance(query, node.Value)
		hits = append(hits, vectorHit{ChunkID: id, Score: 1 - distance/2})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// remove drops ids from the mapping. Graph nodes linger until rebuild.
func (v *vectorIndex) remove(chunkIDs ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range chunkIDs {
		if key, ok := v.idMap[id]; ok {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
}

func (v *vectorIndex) count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

func (v *vectorIndex) contains(chunkID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.idMap[chunkID]
	return ok
}

// save writes the graph snapshot and metadata sidecar atomically.
func (v *vectorIndex) save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.KindIO, "create index directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "create snapshot file", err)
	}
	if err := v.graph.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, "export graph", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, "close snapshot file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, "rename snapshot file", err)
	}

	return v.saveMetadata(path + ".meta")
}

func (v *vectorIndex) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "create metadata file", err)
	}

	meta := vectorMetadata{IDMap: v.idMap, NextKey: v.nextKey, Dims: v.dims}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, "encode metadata", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, "close metadata file", err)
	}
	return os.Rename(tmp, path)
}

// load restores the graph and mappings from a snapshot. Returns an error
// when the snapshot or sidecar is missing or unreadable; callers fall back
// to a rebuild from the record database.
func (v *vectorIndex) load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "open metadata file", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta vectorMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return apperr.Wrap(apperr.KindIO, "decode metadata", err)
	}
	if meta.Dims != v.dims {
		return apperr.Newf(apperr.KindDimMismatch,
			"snapshot has %d dimensions, index expects %d", meta.Dims, v.dims)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "open snapshot file", err)
	}
	defer func() { _ = f.Close() }()

	// Import needs an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(f)); err != nil {
		return apperr.Wrap(apperr.KindIO, "import graph", err)
	}

	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	v.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

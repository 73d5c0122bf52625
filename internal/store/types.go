// Package store persists chunk records and their embeddings per namespace.
//
// Each namespace owns a subdirectory of <data-dir>/index/ holding a SQLite
// database (the durable record of chunks and raw embeddings) and an HNSW
// graph snapshot for fast approximate nearest-neighbor queries. The SQLite
// rows are the source of truth; the graph is rebuilt from them whenever the
// snapshot is missing or unreadable.
package store

import (
	"time"
)

// File names inside a namespace directory.
const (
	recordsFile = "records.db"
	vectorsFile = "vectors.hnsw"
)

// Record is a chunk plus its embedding, ready to persist.
type Record struct {
	ChunkID   string
	Text      string
	SourceURL string
	Vector    []float32
	CreatedAt time.Time
}

// ScoredChunk is a query hit.
type ScoredChunk struct {
	ChunkID   string  `json:"chunkId"`
	Text      string  `json:"text"`
	SourceURL string  `json:"sourceUrl,omitempty"`
	Score     float32 `json:"score"`
}

// NamespaceStats describes one namespace for status reporting.
type NamespaceStats struct {
	Namespace string `json:"namespace"`
	Chunks    int    `json:"chunks"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Stats describes the whole store.
type Stats struct {
	Namespaces []NamespaceStats `json:"namespaces"`
	Total      int              `json:"totalChunks"`
	Dimensions int              `json:"dimensions"`
	Model      string           `json:"model"`
}

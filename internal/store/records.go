package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	_ "modernc.org/sqlite"

	apperr "websearch/internal/errors"
)

// recordDB is the durable per-namespace chunk database. Writes go through
// SQLite in WAL mode so a crash never loses acknowledged puts; the vector
// snapshot can always be rebuilt from the embedding column.
type recordDB struct {
	db *sql.DB
}

const recordSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id   TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	embedding  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source_url ON chunks(source_url);
`

func openRecordDB(path string) (*recordDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "open record database", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent puts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(recordSchema); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.KindIO, "create record schema", err)
	}
	return &recordDB{db: db}, nil
}

// put upserts records in a single transaction.
func (r *recordDB) put(ctx context.Context, records []Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, text, source_url, created_at, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			text = excluded.text,
			source_url = excluded.source_url,
			created_at = excluded.created_at,
			embedding = excluded.embedding`)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, rec.ChunkID, rec.Text, rec.SourceURL,
			createdAt.UnixMilli(), encodeVector(rec.Vector)); err != nil {
			return apperr.Wrap(apperr.KindIO, "upsert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindIO, "commit transaction", err)
	}
	return nil
}

// get fetches a single record, without its embedding.
func (r *recordDB) get(ctx context.Context, chunkID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT chunk_id, text, source_url, created_at FROM chunks WHERE chunk_id = ?`, chunkID)

	var rec Record
	var createdAt int64
	if err := row.Scan(&rec.ChunkID, &rec.Text, &rec.SourceURL, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf(apperr.KindNotFound, "chunk %s not found", chunkID)
		}
		return nil, apperr.Wrap(apperr.KindIO, "query chunk", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// getMany fetches records for the given ids, preserving input order and
// skipping missing ids.
func (r *recordDB) getMany(ctx context.Context, chunkIDs []string) (map[string]*Record, error) {
	out := make(map[string]*Record, len(chunkIDs))
	for _, id := range chunkIDs {
		rec, err := r.get(ctx, id)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = rec
	}
	return out, nil
}

// forEachEmbedding streams every (chunk_id, vector) pair, used to rebuild
// the vector index when the snapshot is missing.
func (r *recordDB) forEachEmbedding(ctx context.Context, fn func(chunkID string, vec []float32) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT chunk_id, embedding FROM chunks`)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "query embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return apperr.Wrap(apperr.KindIO, "scan embedding row", err)
		}
		if err := fn(chunkID, decodeVector(blob)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Wrap(apperr.KindIO, "iterate embeddings", err)
	}
	return nil
}

func (r *recordDB) count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "count chunks", err)
	}
	return n, nil
}

func (r *recordDB) close() error {
	return r.db.Close()
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

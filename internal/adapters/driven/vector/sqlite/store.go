// Package sqlite provides a local vector store on SQLite. It keeps the
// whole pipeline runnable without a hosted index: vectors are stored as
// JSON blobs and similarity is computed in-process at query time.
//
// Suitable for corpora up to a few hundred thousand chunks; beyond that
// a hosted index is the right backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultAlpha is the dense weight in the hybrid score.
const DefaultAlpha = 0.7

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	namespace      TEXT NOT NULL,
	id             TEXT NOT NULL,
	resource       TEXT NOT NULL,
	doc_type       TEXT NOT NULL,
	dense          BLOB NOT NULL,
	sparse_indices BLOB NOT NULL,
	sparse_values  BLOB NOT NULL,
	metadata       BLOB NOT NULL,
	PRIMARY KEY (namespace, id)
);
CREATE INDEX IF NOT EXISTS idx_vectors_filter ON vectors (namespace, doc_type, resource);
`

// Config holds configuration for the SQLite store.
type Config struct {
	// Path is the database file path (required).
	Path string

	// Alpha weights dense similarity against sparse overlap in the
	// hybrid score, in [0,1] (default: 0.7).
	Alpha float64
}

// Store is a SQLite-backed hybrid vector store.
type Store struct {
	db         *sqlx.DB
	alpha      float64
	dimensions int
}

type vectorRow struct {
	Namespace     string `db:"namespace"`
	ID            string `db:"id"`
	Resource      string `db:"resource"`
	DocType       string `db:"doc_type"`
	Dense         []byte `db:"dense"`
	SparseIndices []byte `db:"sparse_indices"`
	SparseValues  []byte `db:"sparse_values"`
	Metadata      []byte `db:"metadata"`
}

// New opens (creating if needed) a SQLite-backed store at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultAlpha
	}

	db, err := sqlx.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, alpha: cfg.Alpha}, nil
}

// EnsureIndex records the expected dimensionality. The schema itself is
// created at open time; this guards against mixing embedding models.
func (s *Store) EnsureIndex(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("ensure index: %w: dimensions must be positive", domain.ErrInvalidInput)
	}

	var stored []byte
	err := s.db.GetContext(ctx, &stored, `SELECT dense FROM vectors LIMIT 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Empty store, nothing to validate.
	case err != nil:
		return fmt.Errorf("ensure index: %w", err)
	default:
		var vec []float32
		if err := json.Unmarshal(stored, &vec); err != nil {
			return fmt.Errorf("ensure index: decode stored vector: %w", err)
		}
		if len(vec) != dimensions {
			return fmt.Errorf("ensure index: %w: store has %d dimensions, want %d",
				domain.ErrDimensionMismatch, len(vec), dimensions)
		}
	}

	s.dimensions = dimensions
	return nil
}

// Upsert writes records in batches inside a single transaction.
func (s *Store) Upsert(ctx context.Context, namespace string, records []driven.VectorRecord, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(records)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (namespace, id, resource, doc_type, dense, sparse_indices, sparse_values, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE SET
			resource = excluded.resource,
			doc_type = excluded.doc_type,
			dense = excluded.dense,
			sparse_indices = excluded.sparse_indices,
			sparse_values = excluded.sparse_values,
			metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		for _, rec := range records[start:end] {
			if s.dimensions > 0 && len(rec.Dense) != s.dimensions {
				return fmt.Errorf("upsert %s: %w: got %d dimensions, want %d",
					rec.ID, domain.ErrDimensionMismatch, len(rec.Dense), s.dimensions)
			}
			row, err := encodeRow(namespace, rec)
			if err != nil {
				return fmt.Errorf("upsert %s: %w", rec.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, row.Namespace, row.ID, row.Resource, row.DocType,
				row.Dense, row.SparseIndices, row.SparseValues, row.Metadata); err != nil {
				return fmt.Errorf("upsert %s: %w", rec.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Query scans the filtered rows, scores each against the hybrid query
// vector and returns the topK best matches by descending score.
func (s *Store) Query(ctx context.Context, namespace string, dense []float32, sparse driven.SparseVector, filter driven.Filter, topK int) ([]driven.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	query, args := selectRows(namespace, filter)
	var rows []vectorRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	sparseQuery := sparseMap(sparse)
	matches := make([]driven.Match, 0, len(rows))
	for _, row := range rows {
		match, score, err := s.scoreRow(row, dense, sparseQuery)
		if err != nil {
			return nil, err
		}
		match.Score = score
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByFilter removes all rows matching the filter.
func (s *Store) DeleteByFilter(ctx context.Context, namespace string, filter driven.Filter) error {
	query := `DELETE FROM vectors WHERE namespace = ?`
	args := []any{namespace}
	if filter.DocType != "" {
		query += ` AND doc_type = ?`
		args = append(args, string(filter.DocType))
	}
	if filter.Resource != "" {
		query += ` AND resource = ?`
		args = append(args, filter.Resource)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// Stats returns the number of stored vectors matching the filter.
func (s *Store) Stats(ctx context.Context, namespace string, filter *driven.Filter) (int, error) {
	query := `SELECT COUNT(*) FROM vectors WHERE namespace = ?`
	args := []any{namespace}
	if filter != nil {
		if filter.DocType != "" {
			query += ` AND doc_type = ?`
			args = append(args, string(filter.DocType))
		}
		if filter.Resource != "" {
			query += ` AND resource = ?`
			args = append(args, filter.Resource)
		}
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func selectRows(namespace string, filter driven.Filter) (string, []any) {
	query := `SELECT namespace, id, resource, doc_type, dense, sparse_indices, sparse_values, metadata
		FROM vectors WHERE namespace = ?`
	args := []any{namespace}
	if filter.DocType != "" {
		query += ` AND doc_type = ?`
		args = append(args, string(filter.DocType))
	}
	if filter.Resource != "" {
		query += ` AND resource = ?`
		args = append(args, filter.Resource)
	}
	return query, args
}

func encodeRow(namespace string, rec driven.VectorRecord) (vectorRow, error) {
	dense, err := json.Marshal(rec.Dense)
	if err != nil {
		return vectorRow{}, fmt.Errorf("encode dense: %w", err)
	}
	indices, err := json.Marshal(rec.Sparse.Indices)
	if err != nil {
		return vectorRow{}, fmt.Errorf("encode sparse indices: %w", err)
	}
	values, err := json.Marshal(rec.Sparse.Values)
	if err != nil {
		return vectorRow{}, fmt.Errorf("encode sparse values: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return vectorRow{}, fmt.Errorf("encode metadata: %w", err)
	}

	return vectorRow{
		Namespace:     namespace,
		ID:            rec.ID,
		Resource:      rec.Metadata.Resource,
		DocType:       string(rec.Metadata.DocType),
		Dense:         dense,
		SparseIndices: indices,
		SparseValues:  values,
		Metadata:      metadata,
	}, nil
}

func (s *Store) scoreRow(row vectorRow, dense []float32, sparseQuery map[uint32]float32) (driven.Match, float64, error) {
	var rowDense []float32
	if err := json.Unmarshal(row.Dense, &rowDense); err != nil {
		return driven.Match{}, 0, fmt.Errorf("decode dense %s: %w", row.ID, err)
	}
	var indices []uint32
	if err := json.Unmarshal(row.SparseIndices, &indices); err != nil {
		return driven.Match{}, 0, fmt.Errorf("decode sparse indices %s: %w", row.ID, err)
	}
	var values []float32
	if err := json.Unmarshal(row.SparseValues, &values); err != nil {
		return driven.Match{}, 0, fmt.Errorf("decode sparse values %s: %w", row.ID, err)
	}
	var metadata domain.Chunk
	if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
		return driven.Match{}, 0, fmt.Errorf("decode metadata %s: %w", row.ID, err)
	}

	score := s.alpha*cosine(dense, rowDense) + (1-s.alpha)*sparseDot(sparseQuery, indices, values)
	return driven.Match{ID: row.ID, Metadata: metadata}, score, nil
}

func sparseMap(vec driven.SparseVector) map[uint32]float32 {
	m := make(map[uint32]float32, len(vec.Indices))
	for i, idx := range vec.Indices {
		m[idx] = vec.Values[i]
	}
	return m
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sparseDot normalises by the query magnitude only, so longer documents
// with more keyword hits still score higher.
func sparseDot(query map[uint32]float32, indices []uint32, values []float32) float64 {
	if len(query) == 0 || len(indices) == 0 {
		return 0
	}
	var dot, norm float64
	for _, v := range query {
		norm += float64(v) * float64(v)
	}
	for i, idx := range indices {
		if qv, ok := query[idx]; ok {
			dot += float64(qv) * float64(values[i])
		}
	}
	if norm == 0 {
		return 0
	}
	return dot / math.Sqrt(norm)
}

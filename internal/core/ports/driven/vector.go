package driven

import (
	"context"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

// VectorRecord is one persisted entry in the hybrid index: a chunk with
// both of its embeddings. The chunk fields travel as metadata and come
// back verbatim on query hits.
type VectorRecord struct {
	// ID is the deterministic vector identifier (Chunk.VectorID).
	ID string

	// Dense is the semantic embedding.
	Dense []float32

	// Sparse is the lexical embedding.
	Sparse SparseVector

	// Metadata carries the full chunk record.
	Metadata domain.Chunk
}

// Filter constrains queries and deletes to matching metadata.
// Zero-valued fields are unconstrained.
type Filter struct {
	// DocType restricts to one hard/soft class.
	DocType domain.DocType

	// Resource restricts to one source.
	Resource string
}

// Match is a nearest-neighbour hit.
type Match struct {
	// ID is the vector identifier.
	ID string

	// Score is the hybrid relevance score.
	Score float64

	// Metadata is the stored chunk record.
	Metadata domain.Chunk
}

// VectorStore is the hybrid (semantic + lexical) vector index.
//
// A namespace is a logical partition for one tenant/deployment; multiple
// sources coexist in a namespace and are told apart by the Resource
// metadata field.
//
// Re-indexing a source is delete-then-upsert and is NOT atomic: queries
// arriving between the delete and the final upsert batch observe a
// partially written generation. Consistency is delegated to the backing
// service.
type VectorStore interface {
	// EnsureIndex creates the index for the given dense dimension if it
	// does not already exist.
	EnsureIndex(ctx context.Context, dimensions int) error

	// Upsert writes records into the namespace in batches of batchSize.
	Upsert(ctx context.Context, namespace string, records []VectorRecord, batchSize int) error

	// Query returns the topK nearest neighbours of the hybrid query
	// vector among records matching the filter.
	Query(ctx context.Context, namespace string, dense []float32, sparse SparseVector, filter Filter, topK int) ([]Match, error)

	// DeleteByFilter removes all records matching the filter from the
	// namespace.
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error

	// Stats returns the number of vectors in the namespace matching the
	// filter (nil filter counts everything).
	Stats(ctx context.Context, namespace string, filter *Filter) (int, error)

	// Close releases resources.
	Close() error
}

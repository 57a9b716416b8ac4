package driven

import "context"

// EmbeddingService generates dense vector embeddings from text.
// The output dimension is fixed per model and must match the VectorStore
// index configuration.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// The result is ordered to match the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 1536, 3072).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// SparseVector is a term-weighted lexical embedding in coordinate form.
// Indices are vocabulary slots (hashed terms), Values the corresponding
// weights. Indices are strictly increasing.
type SparseVector struct {
	// Indices are the non-zero coordinate positions.
	Indices []uint32

	// Values are the weights at those positions.
	Values []float32
}

// IsZero reports whether the vector has no non-zero coordinates.
func (v SparseVector) IsZero() bool {
	return len(v.Indices) == 0
}

// SparseEncoder produces lexical embeddings for hybrid retrieval.
//
// The encoder is fit anew on each batch of texts rather than persisted
// across ingestion runs. That keeps the pipeline stateless but means a
// re-index running concurrently with queries can briefly serve vectors
// from two different fits.
type SparseEncoder interface {
	// FitEncode fits the encoder on the given texts and returns their
	// encodings, ordered to match the input.
	FitEncode(ctx context.Context, texts []string) ([]SparseVector, error)

	// EncodeQuery encodes a single query string using query-side
	// weighting.
	EncodeQuery(ctx context.Context, text string) (SparseVector, error)
}

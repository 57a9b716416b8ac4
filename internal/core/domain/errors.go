package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source type.
	ErrUnsupportedType = errors.New("unsupported source type")

	// ErrEmptySource indicates a source produced no chunks after
	// cleaning and minimum-length filtering. Ingestion treats this as a
	// skip, not a failure, but it is escalated in logs for a source that
	// has never produced chunks before.
	ErrEmptySource = errors.New("source produced no chunks")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// configured. Nothing can be indexed or retrieved without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable indicates the completion provider is not
	// configured. Retrieval still works; answering does not.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrVectorStoreUnavailable indicates the hybrid index is not
	// configured.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector's length does not match
	// the configured index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

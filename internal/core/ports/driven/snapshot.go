package driven

import "github.com/custodia-labs/grounder/internal/core/domain"

// SnapshotStore persists the last-committed chunk set of each source,
// one record per chunk, keyed by the chunk's derived snapshot filename.
// It exists solely for change detection; the vector index remains the
// system of record for retrieval.
type SnapshotStore interface {
	// Load returns the stored chunk for the given source and filename.
	// The boolean reports whether a snapshot exists; a missing snapshot
	// is not an error.
	Load(resource, filename string) (domain.Chunk, bool, error)

	// Replace overwrites the source's snapshot directory wholesale with
	// the given chunks. Chunks no longer present simply vanish. Called
	// only after the source's vectors have been committed.
	Replace(resource string, chunks []domain.Chunk) error
}

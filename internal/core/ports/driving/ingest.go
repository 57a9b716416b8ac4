package driving

import (
	"context"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

// IngestReport summarises one ingestion run of a source.
type IngestReport struct {
	// RunID identifies the ingestion run in logs.
	RunID string

	// Resource is the source that was ingested.
	Resource string

	// Skipped is true when change detection found nothing new and the
	// source was left untouched.
	Skipped bool

	// NewChunks is the number of chunks marked new.
	NewChunks int

	// ChangedChunks is the number of chunks marked changed.
	ChangedChunks int

	// Upserted is the number of vectors written.
	Upserted int

	// Deleted is the number of stale vectors removed before upsert.
	Deleted int

	// Stats are the chunking statistics of the run.
	Stats domain.ChunkStats
}

// Ingestor runs the ingestion pipeline: fetch, normalise, chunk, diff,
// embed, upsert.
type Ingestor interface {
	// IngestSource ingests one source. Empty or unchanged sources are
	// reported as skipped, not as errors.
	IngestSource(ctx context.Context, source domain.Source) (*IngestReport, error)

	// IngestAll ingests the given sources sequentially. A failing
	// source halts only itself; completed sources stay committed.
	IngestAll(ctx context.Context, sources []domain.Source) ([]*IngestReport, error)
}

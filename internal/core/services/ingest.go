package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/core/ports/driving"
	"github.com/custodia-labs/grounder/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// Namespace is the index partition written to.
	Namespace string

	// MinPageTokens drops documents whose cleaned text is shorter than
	// this many tokens.
	MinPageTokens int

	// UpsertBatchSize is the number of vectors per upsert call.
	UpsertBatchSize int

	// Retries is how often a failed per-source run is retried before
	// the error propagates.
	Retries int
}

// Defaults for IngestConfig fields left unset.
const (
	DefaultMinPageTokens   = 15
	DefaultUpsertBatchSize = 64
	DefaultIngestRetries   = 2
)

// IngestService runs the ingestion pipeline: fetch, normalise, chunk,
// diff against the last-committed snapshot, embed, and replace the
// source's vectors.
//
// Sources are processed sequentially; each owns a disjoint resource
// filter and snapshot directory, so there is no shared mutable state
// between them. Re-indexing is delete-then-upsert and not atomic.
type IngestService struct {
	factory    driven.ConnectorFactory
	normaliser driven.Normaliser
	chunker    driven.Chunker
	tokenizer  driven.Tokenizer
	embedding  driven.EmbeddingService
	sparse     driven.SparseEncoder
	store      driven.VectorStore
	snapshots  driven.SnapshotStore
	cfg        IngestConfig
}

// NewIngestService creates an ingestion service.
func NewIngestService(
	factory driven.ConnectorFactory,
	normaliser driven.Normaliser,
	chunker driven.Chunker,
	tokenizer driven.Tokenizer,
	embedding driven.EmbeddingService,
	sparse driven.SparseEncoder,
	store driven.VectorStore,
	snapshots driven.SnapshotStore,
	cfg IngestConfig,
) *IngestService {
	if cfg.MinPageTokens <= 0 {
		cfg.MinPageTokens = DefaultMinPageTokens
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = DefaultUpsertBatchSize
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultIngestRetries
	}
	return &IngestService{
		factory:    factory,
		normaliser: normaliser,
		chunker:    chunker,
		tokenizer:  tokenizer,
		embedding:  embedding,
		sparse:     sparse,
		store:      store,
		snapshots:  snapshots,
		cfg:        cfg,
	}
}

// IngestAll ingests the sources sequentially. A failing source halts
// only itself; the rest continue and completed sources stay committed.
func (s *IngestService) IngestAll(ctx context.Context, sources []domain.Source) ([]*driving.IngestReport, error) {
	reports := make([]*driving.IngestReport, 0, len(sources))

	var errs []error
	for _, source := range sources {
		report, err := s.IngestSource(ctx, source)
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", source.Resource, err))
			continue
		}
		reports = append(reports, report)
	}

	if len(errs) > 0 {
		return reports, errors.Join(errs...)
	}
	return reports, nil
}

// IngestSource ingests one source, retrying the whole per-source step on
// any failure up to the configured count.
func (s *IngestService) IngestSource(ctx context.Context, source domain.Source) (*driving.IngestReport, error) {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("ingest %s: retry %d/%d after: %v", source.Resource, attempt, s.cfg.Retries, lastErr)
		}

		report, err := s.ingestOnce(ctx, source)
		if err == nil {
			return report, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// ingestOnce runs a single load -> chunk -> diff -> embed -> upsert pass.
func (s *IngestService) ingestOnce(ctx context.Context, source domain.Source) (*driving.IngestReport, error) {
	report := &driving.IngestReport{
		RunID:    uuid.New().String(),
		Resource: source.Resource,
	}

	logger.Section("Ingest " + source.Resource)
	logger.Debug("Run %s: source type %s", report.RunID, source.Type)

	connector, err := s.factory.Create(source)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	defer connector.Close()

	docs, err := connector.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	logger.Debug("Fetched %d documents", len(docs))

	chunks, stats := s.chunkDocuments(docs, source)
	report.Stats = stats

	if len(chunks) == 0 {
		// Empty after cleaning and filtering: a skip, not a failure.
		// Loud on purpose: for a brand-new source this usually means a
		// misconfigured connector.
		logger.Warn("ingest %s: %v after cleaning/filtering, skipping source", source.Resource, domain.ErrEmptySource)
		report.Skipped = true
		return report, nil
	}

	logger.Info("Chunked %d pages into %d chunks (min/avg/max tokens %d/%.0f/%d, total %d)",
		stats.Pages, stats.Chunks, stats.MinTokens, stats.AvgTokens(), stats.MaxTokens, stats.TotalTokens)

	newCount, changedCount, err := s.diffSnapshots(source.Resource, chunks)
	if err != nil {
		return nil, fmt.Errorf("diff snapshots: %w", err)
	}
	report.NewChunks = newCount
	report.ChangedChunks = changedCount

	if newCount == 0 && changedCount == 0 {
		logger.Info("ingest %s: no new or changed chunks, skipping", source.Resource)
		report.Skipped = true
		return report, nil
	}
	logger.Debug("Change detection: %d new, %d changed", newCount, changedCount)

	if err := s.replaceVectors(ctx, source, chunks, report); err != nil {
		return nil, err
	}

	// Commit the snapshot only after the vectors are written; a failed
	// run must re-detect its chunks as changed next time.
	if err := s.snapshots.Replace(source.Resource, chunks); err != nil {
		return nil, fmt.Errorf("replace snapshots: %w", err)
	}

	logger.Info("ingest %s: upserted %d vectors (deleted %d stale)",
		source.Resource, report.Upserted, report.Deleted)
	return report, nil
}

// chunkDocuments cleans, filters and splits the source's documents,
// assigning ordinals sequentially across the whole source.
func (s *IngestService) chunkDocuments(docs []domain.Document, source domain.Source) ([]domain.Chunk, domain.ChunkStats) {
	var chunks []domain.Chunk
	var stats domain.ChunkStats

	ordinal := 0
	for _, doc := range docs {
		cleaned := s.normaliser.Normalise(doc, source)

		if s.tokenizer.Count(cleaned.Content) < s.cfg.MinPageTokens {
			logger.Debug("Skipping %q: below minimum page length", cleaned.Title)
			continue
		}
		stats.Pages++

		for _, piece := range s.chunker.Split(cleaned.Content) {
			chunk := domain.Chunk{
				Content:    piece,
				Title:      cleaned.Title,
				URL:        cleaned.Location,
				Resource:   source.Resource,
				Domain:     source.Domain,
				SourceType: source.Type,
				DocType:    source.DocType,
				Ordinal:    ordinal,
			}
			chunks = append(chunks, chunk)
			stats.Observe(s.tokenizer.Count(piece))
			ordinal++
		}
	}

	return chunks, stats
}

// diffSnapshots compares the new chunks against the source's last
// committed snapshot and counts new and changed chunks.
func (s *IngestService) diffSnapshots(resource string, chunks []domain.Chunk) (newCount, changedCount int, err error) {
	for _, chunk := range chunks {
		prior, ok, err := s.snapshots.Load(resource, chunk.SnapshotFilename())
		if err != nil {
			return 0, 0, fmt.Errorf("load snapshot %s: %w", chunk.SnapshotFilename(), err)
		}
		if !ok {
			newCount++
			continue
		}
		if !prior.Equal(chunk) {
			changedCount++
		}
	}
	return newCount, changedCount, nil
}

// replaceVectors embeds all chunks and replaces the source's vectors in
// the index: stale vectors are deleted by resource filter first, then
// the new generation is upserted in batches.
func (s *IngestService) replaceVectors(
	ctx context.Context,
	source domain.Source,
	chunks []domain.Chunk,
	report *driving.IngestReport,
) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EmbedText()
	}

	dense, err := s.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(dense) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d embeddings for %d chunks", len(dense), len(chunks))
	}

	// The sparse encoder is fit anew on this batch; see the
	// SparseEncoder port for the consistency trade-off.
	sparse, err := s.sparse.FitEncode(ctx, texts)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	if len(sparse) != len(chunks) {
		return fmt.Errorf("encode chunks: got %d encodings for %d chunks", len(sparse), len(chunks))
	}

	filter := driven.Filter{Resource: source.Resource}

	existing, err := s.store.Stats(ctx, s.cfg.Namespace, &filter)
	if err != nil {
		return fmt.Errorf("index stats: %w", err)
	}
	if existing > 0 {
		// No reliable update-in-place keyed by derived identity; the
		// old generation goes first.
		if err := s.store.DeleteByFilter(ctx, s.cfg.Namespace, filter); err != nil {
			return fmt.Errorf("delete stale vectors: %w", err)
		}
		report.Deleted = existing
	}

	records := make([]driven.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = driven.VectorRecord{
			ID:       chunk.VectorID(),
			Dense:    dense[i],
			Sparse:   sparse[i],
			Metadata: chunk,
		}
	}

	if err := s.store.Upsert(ctx, s.cfg.Namespace, records, s.cfg.UpsertBatchSize); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	report.Upserted = len(records)

	return nil
}

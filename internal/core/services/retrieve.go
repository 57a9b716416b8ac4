package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/logger"
)

// RetrievalConfig configures hybrid retrieval.
type RetrievalConfig struct {
	// Namespace is the index partition to query.
	Namespace string

	// TopKHard is the top-k for the hard-class query.
	TopKHard int

	// TopKSoft is the top-k for the soft-class query. Defaults favour a
	// larger k here; soft content is the bulk of most corpora.
	TopKSoft int
}

// Default top-k values when the config leaves them unset.
const (
	DefaultTopKHard = 3
	DefaultTopKSoft = 8
)

// RetrievalService performs hybrid retrieval against the active
// namespace.
//
// Each query runs twice: once constrained to hard content and once to
// soft. A single unfiltered top-k could starve one class entirely when
// the score distributions differ, and the pruner needs both classes
// represented before it starts removing anything.
type RetrievalService struct {
	embedding driven.EmbeddingService
	sparse    driven.SparseEncoder
	store     driven.VectorStore
	cfg       RetrievalConfig
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(
	embedding driven.EmbeddingService,
	sparse driven.SparseEncoder,
	store driven.VectorStore,
	cfg RetrievalConfig,
) *RetrievalService {
	if cfg.TopKHard <= 0 {
		cfg.TopKHard = DefaultTopKHard
	}
	if cfg.TopKSoft <= 0 {
		cfg.TopKSoft = DefaultTopKSoft
	}
	return &RetrievalService{
		embedding: embedding,
		sparse:    sparse,
		store:     store,
		cfg:       cfg,
	}
}

// Retrieve embeds the query and returns the merged hard+soft result
// sets. No cross-set de-duplication is performed; a chunk carries
// exactly one doc_type, so the two sets are disjoint by construction.
func (s *RetrievalService) Retrieve(ctx context.Context, query string) ([]domain.RetrievedDocument, error) {
	if s.embedding == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.store == nil {
		return nil, domain.ErrVectorStoreUnavailable
	}

	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	dense, err := s.embedding.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sparse, err := s.sparse.EncodeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	// The two class queries are independent; run them in parallel.
	var hardDocs, softDocs []domain.RetrievedDocument
	var hardErr, softErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		hardDocs, hardErr = s.queryClass(ctx, dense, sparse, domain.DocTypeHard, s.cfg.TopKHard)
	}()

	go func() {
		defer wg.Done()
		softDocs, softErr = s.queryClass(ctx, dense, sparse, domain.DocTypeSoft, s.cfg.TopKSoft)
	}()

	wg.Wait()

	if hardErr != nil || softErr != nil {
		return nil, fmt.Errorf("hybrid retrieval: %w", errors.Join(hardErr, softErr))
	}

	logger.Debug("Retrieved %d hard + %d soft documents", len(hardDocs), len(softDocs))

	return append(hardDocs, softDocs...), nil
}

// queryClass runs one type-filtered nearest-neighbour query.
func (s *RetrievalService) queryClass(
	ctx context.Context,
	dense []float32,
	sparse driven.SparseVector,
	class domain.DocType,
	topK int,
) ([]domain.RetrievedDocument, error) {
	matches, err := s.store.Query(ctx, s.cfg.Namespace, dense, sparse, driven.Filter{DocType: class}, topK)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", class, err)
	}

	docs := make([]domain.RetrievedDocument, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, domain.RetrievedDocument{
			ID:      m.ID,
			Content: m.Metadata.Content,
			Title:   m.Metadata.Title,
			URL:     m.Metadata.URL,
			DocType: m.Metadata.DocType,
			Score:   m.Score,
		})
	}
	return docs, nil
}

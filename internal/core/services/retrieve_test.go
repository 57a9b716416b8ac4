package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// mockEmbedding implements driven.EmbeddingService for testing.
type mockEmbedding struct {
	vector []float32
	err    error
}

func (m *mockEmbedding) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

func (m *mockEmbedding) Dimensions() int   { return len(m.vector) }
func (m *mockEmbedding) ModelName() string { return "mock-embed" }
func (m *mockEmbedding) Close() error      { return nil }

// mockSparse implements driven.SparseEncoder for testing.
type mockSparse struct {
	err error
}

func (m *mockSparse) FitEncode(_ context.Context, texts []string) ([]driven.SparseVector, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]driven.SparseVector, len(texts))
	for i := range texts {
		out[i] = driven.SparseVector{Indices: []uint32{1}, Values: []float32{1}}
	}
	return out, nil
}

func (m *mockSparse) EncodeQuery(_ context.Context, _ string) (driven.SparseVector, error) {
	if m.err != nil {
		return driven.SparseVector{}, m.err
	}
	return driven.SparseVector{Indices: []uint32{1}, Values: []float32{1}}, nil
}

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	mu       sync.Mutex
	byClass  map[domain.DocType][]driven.Match
	queries  []driven.Filter
	queryErr error

	existing   int
	upserts    [][]driven.VectorRecord
	deletes    []driven.Filter
	upsertErr  error
	deleteErr  error
	statsErr   error
	namespaces []string
}

func (m *mockVectorStore) EnsureIndex(_ context.Context, _ int) error { return nil }

func (m *mockVectorStore) Upsert(_ context.Context, namespace string, records []driven.VectorRecord, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.namespaces = append(m.namespaces, namespace)
	m.upserts = append(m.upserts, records)
	return nil
}

func (m *mockVectorStore) Query(_ context.Context, _ string, _ []float32, _ driven.SparseVector, filter driven.Filter, topK int) ([]driven.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.queries = append(m.queries, filter)
	hits := m.byClass[filter.DocType]
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *mockVectorStore) DeleteByFilter(_ context.Context, _ string, filter driven.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, filter)
	m.existing = 0
	return nil
}

func (m *mockVectorStore) Stats(_ context.Context, _ string, _ *driven.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return 0, m.statsErr
	}
	return m.existing, nil
}

func (m *mockVectorStore) Close() error { return nil }

func matchOf(id string, docType domain.DocType, score float64) driven.Match {
	return driven.Match{
		ID:    id,
		Score: score,
		Metadata: domain.Chunk{
			Content: "content " + id,
			Title:   "title " + id,
			URL:     "https://example.com/" + id,
			DocType: docType,
		},
	}
}

func TestRetrieve_QueriesBothClasses(t *testing.T) {
	store := &mockVectorStore{byClass: map[domain.DocType][]driven.Match{
		domain.DocTypeHard: {matchOf("h1", domain.DocTypeHard, 0.8)},
		domain.DocTypeSoft: {matchOf("s1", domain.DocTypeSoft, 0.9), matchOf("s2", domain.DocTypeSoft, 0.4)},
	}}

	svc := NewRetrievalService(
		&mockEmbedding{vector: []float32{0.1, 0.2}},
		&mockSparse{},
		store,
		RetrievalConfig{Namespace: "prod", TopKHard: 3, TopKSoft: 8},
	)

	docs, err := svc.Retrieve(context.Background(), "how do I configure it?")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// One filtered query per class, no cross-class leakage.
	require.Len(t, store.queries, 2)
	classes := map[domain.DocType]bool{}
	for _, f := range store.queries {
		classes[f.DocType] = true
	}
	assert.True(t, classes[domain.DocTypeHard])
	assert.True(t, classes[domain.DocTypeSoft])
}

func TestRetrieve_HydratesFromMetadata(t *testing.T) {
	store := &mockVectorStore{byClass: map[domain.DocType][]driven.Match{
		domain.DocTypeHard: {matchOf("h1", domain.DocTypeHard, 0.7)},
	}}

	svc := NewRetrievalService(&mockEmbedding{vector: []float32{1}}, &mockSparse{}, store, RetrievalConfig{})

	docs, err := svc.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "h1", docs[0].ID)
	assert.Equal(t, "content h1", docs[0].Content)
	assert.Equal(t, "title h1", docs[0].Title)
	assert.Equal(t, "https://example.com/h1", docs[0].URL)
	assert.Equal(t, domain.DocTypeHard, docs[0].DocType)
	assert.Equal(t, 0.7, docs[0].Score)
}

func TestRetrieve_TopKRespected(t *testing.T) {
	store := &mockVectorStore{byClass: map[domain.DocType][]driven.Match{
		domain.DocTypeSoft: {
			matchOf("s1", domain.DocTypeSoft, 0.9),
			matchOf("s2", domain.DocTypeSoft, 0.8),
			matchOf("s3", domain.DocTypeSoft, 0.7),
		},
	}}

	svc := NewRetrievalService(&mockEmbedding{vector: []float32{1}}, &mockSparse{}, store,
		RetrievalConfig{TopKHard: 1, TopKSoft: 2})

	docs, err := svc.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRetrieve_EmbedErrorPropagates(t *testing.T) {
	svc := NewRetrievalService(
		&mockEmbedding{err: errors.New("provider down")},
		&mockSparse{},
		&mockVectorStore{},
		RetrievalConfig{},
	)

	_, err := svc.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestRetrieve_QueryErrorPropagates(t *testing.T) {
	store := &mockVectorStore{queryErr: errors.New("index unreachable")}
	svc := NewRetrievalService(&mockEmbedding{vector: []float32{1}}, &mockSparse{}, store, RetrievalConfig{})

	_, err := svc.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unreachable")
}

func TestRetrieve_NilServices(t *testing.T) {
	svc := NewRetrievalService(nil, &mockSparse{}, &mockVectorStore{}, RetrievalConfig{})
	_, err := svc.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	svc = NewRetrievalService(&mockEmbedding{vector: []float32{1}}, &mockSparse{}, nil, RetrievalConfig{})
	_, err = svc.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
}

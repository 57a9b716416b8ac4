package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Path: filepath.Join(t.TempDir(), "vectors.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureIndex(context.Background(), 3))
	return store
}

func record(id, resource string, docType domain.DocType, dense []float32) driven.VectorRecord {
	return driven.VectorRecord{
		ID:     id,
		Dense:  dense,
		Sparse: driven.SparseVector{Indices: []uint32{7}, Values: []float32{1}},
		Metadata: domain.Chunk{
			Content:  "content " + id,
			Title:    "title " + id,
			Resource: resource,
			DocType:  docType,
		},
	}
}

func TestUpsertAndQuery_RanksByCosine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "prod", []driven.VectorRecord{
		record("a", "handbook", domain.DocTypeSoft, []float32{1, 0, 0}),
		record("b", "handbook", domain.DocTypeSoft, []float32{0, 1, 0}),
		record("c", "handbook", domain.DocTypeSoft, []float32{0.9, 0.1, 0}),
	}, 2))

	matches, err := store.Query(ctx, "prod", []float32{1, 0, 0}, driven.SparseVector{},
		driven.Filter{DocType: domain.DocTypeSoft}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "content a", matches[0].Metadata.Content)
}

func TestQuery_FilterIsolatesClasses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "prod", []driven.VectorRecord{
		record("hard1", "api", domain.DocTypeHard, []float32{1, 0, 0}),
		record("soft1", "blog", domain.DocTypeSoft, []float32{1, 0, 0}),
	}, 0))

	matches, err := store.Query(ctx, "prod", []float32{1, 0, 0}, driven.SparseVector{},
		driven.Filter{DocType: domain.DocTypeHard}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "hard1", matches[0].ID)
}

func TestQuery_SparseTermsBreakTies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	withTerm := record("kw", "docs", domain.DocTypeSoft, []float32{1, 0, 0})
	withTerm.Sparse = driven.SparseVector{Indices: []uint32{42}, Values: []float32{2}}
	without := record("plain", "docs", domain.DocTypeSoft, []float32{1, 0, 0})
	without.Sparse = driven.SparseVector{Indices: []uint32{99}, Values: []float32{2}}

	require.NoError(t, store.Upsert(ctx, "prod", []driven.VectorRecord{without, withTerm}, 0))

	matches, err := store.Query(ctx, "prod", []float32{1, 0, 0},
		driven.SparseVector{Indices: []uint32{42}, Values: []float32{1}},
		driven.Filter{DocType: domain.DocTypeSoft}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "kw", matches[0].ID)
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "prod",
		[]driven.VectorRecord{record("a", "handbook", domain.DocTypeSoft, []float32{1, 0, 0})}, 0))

	updated := record("a", "handbook", domain.DocTypeSoft, []float32{0, 1, 0})
	updated.Metadata.Content = "revised"
	require.NoError(t, store.Upsert(ctx, "prod", []driven.VectorRecord{updated}, 0))

	count, err := store.Stats(ctx, "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := store.Query(ctx, "prod", []float32{0, 1, 0}, driven.SparseVector{}, driven.Filter{}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "revised", matches[0].Metadata.Content)
}

func TestDeleteByFilter_RemovesOnlyResource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "prod", []driven.VectorRecord{
		record("a", "handbook", domain.DocTypeSoft, []float32{1, 0, 0}),
		record("b", "api", domain.DocTypeHard, []float32{0, 1, 0}),
	}, 0))

	require.NoError(t, store.DeleteByFilter(ctx, "prod", driven.Filter{Resource: "handbook"}))

	count, err := store.Stats(ctx, "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := store.Stats(ctx, "prod", &driven.Filter{Resource: "api"})
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestNamespacesAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "prod",
		[]driven.VectorRecord{record("a", "handbook", domain.DocTypeSoft, []float32{1, 0, 0})}, 0))
	require.NoError(t, store.Upsert(ctx, "staging",
		[]driven.VectorRecord{record("a", "handbook", domain.DocTypeSoft, []float32{0, 1, 0})}, 0))

	matches, err := store.Query(ctx, "staging", []float32{0, 1, 0}, driven.SparseVector{}, driven.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, store.DeleteByFilter(ctx, "staging", driven.Filter{}))
	count, err := store.Stats(ctx, "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "prod",
		[]driven.VectorRecord{record("a", "handbook", domain.DocTypeSoft, []float32{1, 0, 0})}, 0))

	err := store.EnsureIndex(ctx, 4)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestUpsert_RejectsWrongDimensions(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), "prod",
		[]driven.VectorRecord{record("a", "handbook", domain.DocTypeSoft, []float32{1, 0})}, 0)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

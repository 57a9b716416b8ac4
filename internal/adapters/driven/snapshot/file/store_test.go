package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

func chunk(title string, ordinal int, content string) domain.Chunk {
	return domain.Chunk{
		Content:    content,
		Title:      title,
		Resource:   "handbook",
		SourceType: domain.SourceTypeLocalFile,
		DocType:    domain.DocTypeSoft,
		Ordinal:    ordinal,
	}
}

func TestReplaceAndLoad_RoundTrip(t *testing.T) {
	store, err := New(Config{Root: t.TempDir()})
	require.NoError(t, err)

	written := chunk("Getting Started", 0, "alpha beta")
	require.NoError(t, store.Replace("handbook", []domain.Chunk{written}))

	got, ok, err := store.Load("handbook", written.SnapshotFilename())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(written))
}

func TestLoad_MissingSnapshot(t *testing.T) {
	store, err := New(Config{Root: t.TempDir()})
	require.NoError(t, err)

	_, ok, err := store.Load("handbook", "nothing-0.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplace_DropsStaleSnapshots(t *testing.T) {
	store, err := New(Config{Root: t.TempDir()})
	require.NoError(t, err)

	old := chunk("Removed Page", 0, "old content")
	require.NoError(t, store.Replace("handbook", []domain.Chunk{old}))

	kept := chunk("Kept Page", 0, "new content")
	require.NoError(t, store.Replace("handbook", []domain.Chunk{kept}))

	_, ok, err := store.Load("handbook", old.SnapshotFilename())
	require.NoError(t, err)
	assert.False(t, ok, "stale snapshot removed by wholesale replace")

	_, ok, err = store.Load("handbook", kept.SnapshotFilename())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReplace_SourcesAreIsolated(t *testing.T) {
	store, err := New(Config{Root: t.TempDir()})
	require.NoError(t, err)

	a := chunk("Page", 0, "handbook content")
	require.NoError(t, store.Replace("handbook", []domain.Chunk{a}))

	b := a
	b.Resource = "api"
	require.NoError(t, store.Replace("api", []domain.Chunk{b}))
	require.NoError(t, store.Replace("api", nil))

	_, ok, err := store.Load("handbook", a.SnapshotFilename())
	require.NoError(t, err)
	assert.True(t, ok, "replacing one source leaves others alone")
}

func TestReplace_ArchivesPreviousState(t *testing.T) {
	root := t.TempDir()
	audit := t.TempDir()
	store, err := New(Config{Root: root, AuditRoot: audit})
	require.NoError(t, err)

	first := chunk("Page", 0, "version one")
	require.NoError(t, store.Replace("handbook", []domain.Chunk{first}))

	second := chunk("Page", 0, "version two")
	require.NoError(t, store.Replace("handbook", []domain.Chunk{second}))

	runs, err := os.ReadDir(filepath.Join(audit, "handbook"))
	require.NoError(t, err)
	require.Len(t, runs, 1)

	archived, err := os.ReadDir(filepath.Join(audit, "handbook", runs[0].Name()))
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, first.SnapshotFilename(), archived[0].Name())
}

func TestSanitizePathComponent(t *testing.T) {
	assert.Equal(t, "docs.example.com_wiki", sanitizePathComponent("docs.example.com/wiki"))
	assert.Equal(t, "unnamed", sanitizePathComponent(""))
}

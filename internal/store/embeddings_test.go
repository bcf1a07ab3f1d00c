package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

func TestComponentsNeedingEmbeddings_Transitions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	c := testComponent("Render", graph.ComponentFunction, "view.ts", 1, 20)
	c.Code = "function render() {}"
	c.ContentHash = graph.ContentHash(c)
	mustStore(t, s, c)

	// No embedding row at all: stale.
	stale, err := s.ComponentsNeedingEmbeddings()
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, c.ID, stale[0].ID)

	// Row with a null hash: still stale.
	require.NoError(t, s.UpsertEmbedding(&graph.EmbeddingRecord{
		EntityID: c.ID, EntityType: "component", Vector: []byte{1, 2},
	}))
	stale, err = s.ComponentsNeedingEmbeddings()
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	// Matching hash: clean.
	require.NoError(t, s.UpsertEmbedding(&graph.EmbeddingRecord{
		EntityID: c.ID, EntityType: "component", Vector: []byte{1, 2},
		Version: "v1", ContentHash: c.ContentHash,
	}))
	stale, err = s.ComponentsNeedingEmbeddings()
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Component meaning changes: stale again.
	c.Code = "function render() { return 1 }"
	c.ContentHash = graph.ContentHash(c)
	mustStore(t, s, c)
	stale, err = s.ComponentsNeedingEmbeddings()
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestGetEmbedding(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.GetEmbedding("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	rec := &graph.EmbeddingRecord{
		EntityID: "e1", EntityType: "component",
		Vector: []byte{9, 8, 7}, Version: "v2", ContentHash: "h",
	}
	require.NoError(t, s.UpsertEmbedding(rec))

	got, err = s.GetEmbedding("e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.Equal(t, "v2", got.Version)
	assert.Equal(t, "h", got.ContentHash)
}

func TestFileRecords_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.FileByPath("missing.go")
	require.NoError(t, err)
	assert.Nil(t, got)

	f := &graph.FileRecord{
		Path: "src/app.go", Language: "go", Hash: "abc",
		LastIndexed: time.Now().Truncate(time.Second),
	}
	require.NoError(t, s.UpsertFile(f))

	got, err = s.FileByPath("src/app.go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, "abc", got.Hash)

	// Re-index updates in place.
	f.Hash = "def"
	require.NoError(t, s.UpsertFile(f))
	got, err = s.FileByPath("src/app.go")
	require.NoError(t, err)
	assert.Equal(t, "def", got.Hash)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

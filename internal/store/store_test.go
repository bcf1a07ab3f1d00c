package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// testComponent builds a component with a deterministic id, mirroring what
// the analyzers produce.
func testComponent(name, typ, path string, startLine, endLine int) *graph.Component {
	c := &graph.Component{
		Name:     name,
		Type:     typ,
		Language: "go",
		FilePath: path,
		Location: graph.Location{StartLine: startLine, EndLine: endLine},
	}
	c.ID = graph.ComponentID(path, name, typ, "")
	c.ContentHash = graph.ContentHash(c)
	return c
}

func mustStore(t *testing.T, s *Store, comps ...*graph.Component) {
	t.Helper()
	require.NoError(t, s.StoreComponents(comps))
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "components", "relationships", "embeddings", "index_metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Ping())
}

// =============================================================================
// Index metadata
// =============================================================================

func TestMetadata_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetMetadata("schema_version", "1"))
	require.NoError(t, s.SetMetadata("schema_version", "2"))

	v, err = s.GetMetadata("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

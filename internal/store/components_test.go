package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

func TestStoreComponents_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	c := testComponent("Parse", graph.ComponentFunction, "parser.go", 10, 30)
	c.Code = "func Parse() {}"
	c.Meta("signature", "Parse()")
	mustStore(t, s, c)

	got, err := s.GetComponent(c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Type, got.Type)
	assert.Equal(t, c.Location, got.Location)
	assert.Equal(t, c.Code, got.Code)
	assert.Equal(t, c.ContentHash, got.ContentHash)
	assert.Equal(t, "Parse()", got.Metadata["signature"])
}

func TestGetComponent_Missing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.GetComponent("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreComponents_UpsertSameID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	c := testComponent("Parse", graph.ComponentFunction, "parser.go", 10, 30)
	mustStore(t, s, c)

	// Same identity, moved within the file.
	moved := testComponent("Parse", graph.ComponentFunction, "parser.go", 50, 70)
	assert.Equal(t, c.ID, moved.ID)
	mustStore(t, s, moved)

	all, err := s.ComponentsByFile("parser.go")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 50, all[0].Location.StartLine)
}

func TestStoreComponents_MetadataMergesKeywise(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	c := testComponent("App", graph.ComponentClass, "app.ts", 1, 40)
	c.Meta("signature", "class App")
	mustStore(t, s, c)

	// Another subsystem annotates the component out of band.
	_, err := s.db.Exec(
		`UPDATE components SET metadata = json_set(metadata, '$.owner', 'embeddings') WHERE id = ?`, c.ID)
	require.NoError(t, err)

	// Re-parse writes its own keys; the external key must survive.
	again := testComponent("App", graph.ComponentClass, "app.ts", 1, 45)
	again.Meta("signature", "class App extends Base")
	mustStore(t, s, again)

	got, err := s.GetComponent(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "class App extends Base", got.Metadata["signature"])
	assert.Equal(t, "embeddings", got.Metadata["owner"])
}

func TestComponentsByName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	mustStore(t, s,
		testComponent("Logger", graph.ComponentClass, "log/logger.go", 1, 50),
		testComponent("Logger", graph.ComponentClass, "vendor/lib/logger.go", 1, 50),
		testComponent("Other", graph.ComponentClass, "other.go", 1, 10),
	)

	got, err := s.ComponentsByName("Logger")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by file path for determinism.
	assert.Equal(t, "log/logger.go", got[0].FilePath)
	assert.Equal(t, "vendor/lib/logger.go", got[1].FilePath)
}

func TestSearchComponents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := testComponent("render", graph.ComponentMethod, "app.ts", 5, 9)
	a.Language = "typescript"
	b := testComponent("render", graph.ComponentFunction, "view.py", 3, 8)
	b.Language = "python"
	mustStore(t, s, a, b)

	got, err := s.SearchComponents(SearchCriteria{Name: "render", Types: []string{graph.ComponentMethod}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "app.ts", got[0].FilePath)

	got, err = s.SearchComponents(SearchCriteria{Languages: []string{"python"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "view.py", got[0].FilePath)

	got, err = s.SearchComponents(SearchCriteria{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeleteComponentsInFile_CascadesRelationships(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := testComponent("A", graph.ComponentClass, "a.ts", 1, 10)
	b := testComponent("B", graph.ComponentClass, "b.ts", 1, 10)
	mustStore(t, s, a, b)
	require.NoError(t, s.UpsertFile(&graph.FileRecord{Path: "a.ts", Language: "typescript", Hash: "h"}))

	rel := &graph.Relationship{
		Type:   graph.RelExtends,
		Source: graph.ResolvedRef(b.ID),
		Target: graph.ResolvedRef(a.ID),
	}
	rel.ID = graph.RelationshipID(rel.Type, rel.Source, rel.Target, rel.Location)
	require.NoError(t, s.StoreRelationships([]*graph.Relationship{rel}))

	require.NoError(t, s.DeleteComponentsInFile("a.ts"))

	got, err := s.GetComponent(a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The edge referencing the deleted component is gone too.
	rows, err := s.RelationshipsBySource(b.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// B itself survives.
	got, err = s.GetComponent(b.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	// The file record is removed.
	f, err := s.FileByPath("a.ts")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestDeleteComponents_CascadesResolvedColumns(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := testComponent("A", graph.ComponentClass, "a.ts", 1, 10)
	mustStore(t, s, a)

	// A pending edge later resolved to A: deleting A must remove it even
	// though the target column still holds the placeholder.
	rel := &graph.Relationship{
		Type:   graph.RelImports,
		Source: graph.ResolvedRef("someother"),
		Target: graph.PendingRef("A"),
	}
	rel.ID = graph.RelationshipID(rel.Type, rel.Source, rel.Target, rel.Location)
	require.NoError(t, s.StoreRelationships([]*graph.Relationship{rel}))
	require.NoError(t, s.UpdateRelationshipsBulk([]RelationshipPatch{{ID: rel.ID, ResolvedTarget: a.ID}}))

	require.NoError(t, s.DeleteComponents([]string{a.ID}, ""))

	rows, err := s.RelationshipsByType(graph.RelImports)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

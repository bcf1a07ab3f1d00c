package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comp(id, name, typ string, startLine, endLine int) *Component {
	return &Component{
		ID:       id,
		Name:     name,
		Type:     typ,
		FilePath: "app.ts",
		Location: Location{StartLine: startLine, EndLine: endLine},
	}
}

func TestDeriveContainment_SmallestEnclosingWins(t *testing.T) {
	t.Parallel()
	file := comp("f", "app.ts", ComponentFile, 1, 100)
	class := comp("c", "App", ComponentClass, 10, 50)
	method := comp("m", "render", ComponentMethod, 20, 30)

	edges := DeriveContainment([]*Component{file, class, method})
	require.Len(t, edges, 2)

	// class is contained by the file, method by the class (not the file).
	assert.Equal(t, "f", edges[0].Source.Value)
	assert.Equal(t, "c", edges[0].Target.Value)
	assert.Equal(t, "c", edges[1].Source.Value)
	assert.Equal(t, "m", edges[1].Target.Value)
	assert.Equal(t, "c", method.ParentID)
}

func TestDeriveContainment_ExplicitParentRespected(t *testing.T) {
	t.Parallel()
	file := comp("f", "app.ts", ComponentFile, 1, 100)
	prop := comp("p", "title", ComponentProperty, 5, 5)
	prop.ParentID = "c" // analyzer knows better than span nesting

	edges := DeriveContainment([]*Component{file, prop})
	require.Len(t, edges, 1)
	assert.Equal(t, "c", edges[0].Source.Value)
	assert.Equal(t, "p", edges[0].Target.Value)
}

func TestDeriveContainment_RootHasNoEdge(t *testing.T) {
	t.Parallel()
	file := comp("f", "app.ts", ComponentFile, 1, 100)
	edges := DeriveContainment([]*Component{file})
	assert.Empty(t, edges)
}

func TestDeriveContainment_EqualSpanTieGoesToEarlierDeclaration(t *testing.T) {
	t.Parallel()
	file := comp("f", "app.ts", ComponentFile, 1, 10)
	frag := comp("g", "fragment", ComponentFragment, 1, 10)

	edges := DeriveContainment([]*Component{file, frag})
	require.Len(t, edges, 1)
	assert.Equal(t, "f", edges[0].Source.Value)
	assert.Equal(t, "g", edges[0].Target.Value)
}

func TestDeriveContainment_DeterministicIDs(t *testing.T) {
	t.Parallel()
	build := func() []*Relationship {
		return DeriveContainment([]*Component{
			comp("f", "app.ts", ComponentFile, 1, 100),
			comp("c", "App", ComponentClass, 10, 50),
		})
	}
	a, b := build(), build()
	require.Len(t, a, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestSmallestEnclosing(t *testing.T) {
	t.Parallel()
	file := comp("f", "app.ts", ComponentFile, 1, 100)
	class := comp("c", "App", ComponentClass, 10, 50)
	comps := []*Component{file, class}

	got := SmallestEnclosing(comps, Location{StartLine: 20, EndLine: 25})
	require.NotNil(t, got)
	assert.Equal(t, "c", got.ID)

	got = SmallestEnclosing(comps, Location{StartLine: 60, EndLine: 70})
	require.NotNil(t, got)
	assert.Equal(t, "f", got.ID)

	assert.Nil(t, SmallestEnclosing(comps, Location{StartLine: 200, EndLine: 201}))
}

func TestSortByDeclaration(t *testing.T) {
	t.Parallel()
	inner := comp("i", "inner", ComponentFunction, 5, 10)
	outer := comp("o", "outer", ComponentClass, 5, 40)
	later := comp("l", "later", ComponentFunction, 50, 60)

	comps := []*Component{later, inner, outer}
	SortByDeclaration(comps)

	// Equal starts put the wider span first so parents precede children.
	assert.Equal(t, []string{"o", "i", "l"}, []string{comps[0].ID, comps[1].ID, comps[2].ID})
}

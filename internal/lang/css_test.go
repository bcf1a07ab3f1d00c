package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

const cssSample = `@import "base.css";

#menu {
	color: red;
}

.nav a:hover {
	text-decoration: underline;
}

@media (min-width: 600px) {
	.nav {
		display: none;
	}
}
`

func cssAnalysis(t *testing.T) ([]*graph.Component, []*graph.Relationship) {
	t.Helper()
	a := NewCSSAnalyzer()
	comps, err := a.DetectComponents(context.Background(), []byte(cssSample), "web/css/site.css")
	require.NoError(t, err)
	rels, err := a.DetectRelationships(context.Background(), []byte(cssSample), "web/css/site.css", comps)
	require.NoError(t, err)
	return comps, rels
}

func TestCSSAnalyzer_RulesBySelector(t *testing.T) {
	t.Parallel()
	comps, _ := cssAnalysis(t)

	findComponentOfType(t, comps, "site.css", graph.ComponentFile)

	menu := findComponentOfType(t, comps, "#menu", graph.ComponentRule)
	assert.Equal(t, "#menu", menu.Metadata["selector"])
	assert.Equal(t, 3, menu.Location.StartLine)

	// Whitespace inside the selector collapses to single spaces.
	findComponentOfType(t, comps, ".nav a:hover", graph.ComponentRule)
}

func TestCSSAnalyzer_MediaBlockNestsRules(t *testing.T) {
	t.Parallel()
	comps, _ := cssAnalysis(t)

	nested := findComponentOfType(t, comps, ".nav", graph.ComponentRule)
	require.NotEmpty(t, nested.ParentID)

	var section *graph.Component
	for _, c := range comps {
		if c.Type == graph.ComponentSection {
			section = c
		}
	}
	require.NotNil(t, section, "media statement should surface as a section")
	assert.Equal(t, section.ID, nested.ParentID)
}

func TestCSSAnalyzer_ImportEdge(t *testing.T) {
	t.Parallel()
	_, rels := cssAnalysis(t)

	imports := relsOfType(rels, graph.RelImports)
	require.Len(t, imports, 1)
	assert.Equal(t, graph.PendingRef("base.css"), imports[0].Target)
	assert.Equal(t, "base.css", imports[0].Metadata["specifier"])
}

func TestCSSAnalyzer_RemoteImportStaysExternal(t *testing.T) {
	t.Parallel()
	a := NewCSSAnalyzer()
	src := []byte(`@import url("https://fonts.example.com/inter.css");` + "\n")
	comps, err := a.DetectComponents(context.Background(), src, "web/css/fonts.css")
	require.NoError(t, err)
	rels, err := a.DetectRelationships(context.Background(), src, "web/css/fonts.css", comps)
	require.NoError(t, err)

	imports := relsOfType(rels, graph.RelImports)
	require.Len(t, imports, 1)
	assert.Equal(t, graph.RefExternal, imports[0].Target.Kind)
	assert.Equal(t, "https://fonts.example.com/inter.css", imports[0].Target.Value)
}

func TestCSSAnalyzer_Validate(t *testing.T) {
	t.Parallel()
	a := NewCSSAnalyzer()
	assert.True(t, a.CanParseFile("x/site.CSS"))
	assert.False(t, a.CanParseFile("x/site.scss"))
	assert.True(t, a.ValidateContent([]byte("p { color: red }")))
	assert.False(t, a.ValidateContent([]byte("package main")))
}

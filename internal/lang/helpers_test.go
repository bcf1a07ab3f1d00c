package lang

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

func boundary(lang string, startLine, startCol, endLine, endCol int, scope string) graph.Boundary {
	return graph.Boundary{
		Language:    lang,
		StartLine:   startLine,
		StartColumn: startCol,
		EndLine:     endLine,
		EndColumn:   endCol,
		Scope:       scope,
	}
}

// findComponent fails the test when no component with the name exists.
func findComponent(t *testing.T, comps []*graph.Component, name string) *graph.Component {
	t.Helper()
	for _, c := range comps {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "component not found", "no component named %q", name)
	return nil
}

// findComponentOfType looks a component up by name and type.
func findComponentOfType(t *testing.T, comps []*graph.Component, name, typ string) *graph.Component {
	t.Helper()
	for _, c := range comps {
		if c.Name == name && c.Type == typ {
			return c
		}
	}
	require.Failf(t, "component not found", "no %s component named %q", typ, name)
	return nil
}

// relsOfType filters relationships by edge type.
func relsOfType(rels []*graph.Relationship, relType string) []*graph.Relationship {
	var out []*graph.Relationship
	for _, r := range rels {
		if r.Type == relType {
			out = append(out, r)
		}
	}
	return out
}

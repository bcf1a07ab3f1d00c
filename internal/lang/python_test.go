package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

const pySample = `import os
import numpy as np
from .models import User
from collections import OrderedDict

MAX_RETRIES = 3
default_name = "anon"

class Repository(Base):
    def save(self, item):
        validate(item)

def validate(item):
    pass
`

func pyAnalysis(t *testing.T) ([]*graph.Component, []*graph.Relationship) {
	t.Helper()
	a := NewPythonAnalyzer()
	comps, err := a.DetectComponents(context.Background(), []byte(pySample), "app/repo.py")
	require.NoError(t, err)
	rels, err := a.DetectRelationships(context.Background(), []byte(pySample), "app/repo.py", comps)
	require.NoError(t, err)
	return comps, rels
}

func TestPythonAnalyzer_DetectComponents(t *testing.T) {
	t.Parallel()
	comps, _ := pyAnalysis(t)

	findComponentOfType(t, comps, "repo.py", graph.ComponentFile)

	// Module-level UPPER_CASE assignments are constants by convention.
	findComponentOfType(t, comps, "MAX_RETRIES", graph.ComponentConstant)
	findComponentOfType(t, comps, "default_name", graph.ComponentVariable)

	cls := findComponentOfType(t, comps, "Repository", graph.ComponentClass)
	assert.Equal(t, "Base", cls.Metadata["extends"])

	save := findComponentOfType(t, comps, "save", graph.ComponentMethod)
	assert.Equal(t, cls.ID, save.ParentID)
	assert.Equal(t, "save(self, item)", save.Metadata["signature"])

	findComponentOfType(t, comps, "validate", graph.ComponentFunction)
}

func TestPythonAnalyzer_Imports(t *testing.T) {
	t.Parallel()
	_, rels := pyAnalysis(t)

	imports := relsOfType(rels, graph.RelImports)
	require.Len(t, imports, 4)

	byValue := map[string]*graph.Relationship{}
	for _, r := range imports {
		byValue[r.Target.Value] = r
	}

	require.NotNil(t, byValue["os"])
	assert.Equal(t, graph.RefExternal, byValue["os"].Target.Kind)

	// Aliased imports keep the module name, not the alias.
	require.NotNil(t, byValue["numpy"])

	// Relative imports stay in the project and go to the resolver.
	user := byValue["User"]
	require.NotNil(t, user)
	assert.Equal(t, graph.RefPending, user.Target.Kind)
	assert.Equal(t, ".models", user.Metadata["specifier"])

	dict := byValue["collections.OrderedDict"]
	require.NotNil(t, dict)
	assert.Equal(t, graph.RefExternal, dict.Target.Kind)
	assert.Equal(t, "OrderedDict", dict.Metadata["importedName"])
}

func TestPythonAnalyzer_ExtendsAndCalls(t *testing.T) {
	t.Parallel()
	comps, rels := pyAnalysis(t)
	cls := findComponentOfType(t, comps, "Repository", graph.ComponentClass)
	save := findComponentOfType(t, comps, "save", graph.ComponentMethod)
	validate := findComponentOfType(t, comps, "validate", graph.ComponentFunction)

	extends := relsOfType(rels, graph.RelExtends)
	require.Len(t, extends, 1)
	assert.Equal(t, graph.ResolvedRef(cls.ID), extends[0].Source)
	assert.Equal(t, graph.PendingRef("Base"), extends[0].Target)

	calls := relsOfType(rels, graph.RelCalls)
	require.Len(t, calls, 1)
	assert.Equal(t, graph.ResolvedRef(save.ID), calls[0].Source)
	assert.Equal(t, graph.ResolvedRef(validate.ID), calls[0].Target)
}

func TestPythonAnalyzer_Validate(t *testing.T) {
	t.Parallel()
	a := NewPythonAnalyzer()
	assert.True(t, a.CanParseFile("lib/util.pyi"))
	assert.False(t, a.CanParseFile("lib/util.rb"))
	assert.True(t, a.ValidateContent([]byte("def main():\n    pass\n")))
	assert.False(t, a.ValidateContent([]byte("SELECT 1;")))
}

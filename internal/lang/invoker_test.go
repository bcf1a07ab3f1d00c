package lang

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

// faultyAnalyzer fails on demand so the guard behavior is observable.
type faultyAnalyzer struct {
	panicMsg string
	err      error
}

func (a *faultyAnalyzer) Language() string            { return "faulty" }
func (a *faultyAnalyzer) Extensions() []string        { return []string{".faulty"} }
func (a *faultyAnalyzer) CanParseFile(string) bool    { return true }
func (a *faultyAnalyzer) ValidateContent([]byte) bool { return true }

func (a *faultyAnalyzer) ValidateSyntax(context.Context, []byte) []ParseWarning { return nil }

func (a *faultyAnalyzer) DetectComponents(_ context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	if a.err != nil {
		return nil, a.err
	}
	return []*graph.Component{FileComponent("faulty", filePath, content)}, nil
}

func (a *faultyAnalyzer) DetectRelationships(context.Context, []byte, string, []*graph.Component) ([]*graph.Relationship, error) {
	return nil, nil
}

func (a *faultyAnalyzer) DetectBoundaries(context.Context, []byte, string) ([]graph.Boundary, error) {
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	return nil, a.err
}

// ============================================================================
// Failure isolation
// ============================================================================

func TestInvoker_PanicDegradesToFileComponent(t *testing.T) {
	t.Parallel()
	inv := NewInvoker(time.Second, nil)

	res := inv.Analyze(context.Background(), &faultyAnalyzer{panicMsg: "boom"}, []byte("x\ny\n"), "bad.faulty")
	require.NotNil(t, res)

	require.Len(t, res.Components, 1)
	assert.Equal(t, graph.ComponentFile, res.Components[0].Type)
	assert.Equal(t, "bad.faulty", res.Components[0].FilePath)
	assert.Empty(t, res.Relationships)

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0].Message, "boom")
}

func TestInvoker_ErrorDegradesToFileComponent(t *testing.T) {
	t.Parallel()
	inv := NewInvoker(time.Second, nil)

	res := inv.Analyze(context.Background(), &faultyAnalyzer{err: errors.New("parse exploded")}, []byte("x"), "bad.faulty")
	require.Len(t, res.Components, 1)
	assert.Equal(t, graph.ComponentFile, res.Components[0].Type)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0].Message, "parse exploded")
}

func TestInvoker_BoundariesGuarded(t *testing.T) {
	t.Parallel()
	inv := NewInvoker(time.Second, nil)

	bounds, warns := inv.Boundaries(context.Background(), &faultyAnalyzer{panicMsg: "boom"}, []byte("x"), "bad.faulty")
	assert.Nil(t, bounds)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "boundary detection")
}

func TestInvoker_HealthyAnalyzerPassesThrough(t *testing.T) {
	t.Parallel()
	inv := NewInvoker(time.Second, nil)

	res := inv.Analyze(context.Background(), &faultyAnalyzer{}, []byte("line\n"), "ok.faulty")
	require.Len(t, res.Components, 1)
	assert.Empty(t, res.Warnings)
}

func TestNewInvoker_DefaultTimeout(t *testing.T) {
	t.Parallel()
	inv := NewInvoker(0, nil)
	assert.Equal(t, 30*time.Second, inv.Timeout)
	assert.NotNil(t, inv.Logger)
}

// ============================================================================
// File-level root guarantee
// ============================================================================

func TestEnsureFileComponent(t *testing.T) {
	t.Parallel()
	res := &Result{Components: []*graph.Component{{Name: "x", Type: graph.ComponentFunction}}}
	ensureFileComponent(res, "go", "pkg/x.go", []byte("a\nb\nc"))

	require.Len(t, res.Components, 2)
	assert.Equal(t, graph.ComponentFile, res.Components[0].Type)
	assert.Equal(t, "x.go", res.Components[0].Name)
	assert.Equal(t, 3, res.Components[0].Location.EndLine)

	// Idempotent once a file root exists.
	ensureFileComponent(res, "go", "pkg/x.go", nil)
	assert.Len(t, res.Components, 2)
}

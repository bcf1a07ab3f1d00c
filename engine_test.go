package lattice

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice/internal/graph"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	all := append([]Option{WithParallel(false), WithLogger(quiet)}, opts...)
	e, err := New(filepath.Join(t.TempDir(), "index.db"), all...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newTestProject lays out a small multi-language tree.
func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {\n\tGreet()\n}\n")
	writeFile(t, dir, "util.go", "package main\n\nfunc Greet() {}\n")
	writeFile(t, dir, "web/index.html", "<!doctype html>\n<html><body><div id=\"app\">hi</div></body></html>\n")
	return dir
}

func reportByPath(reports []FileReport, path string) *FileReport {
	for i := range reports {
		if reports[i].Path == path {
			return &reports[i]
		}
	}
	return nil
}

// ============================================================================
// Indexing
// ============================================================================

func TestEngine_IndexDirectory(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := newTestProject(t)

	reports, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	rep := reportByPath(reports, "main.go")
	require.NotNil(t, rep)
	assert.Equal(t, "go", rep.Language)
	assert.Equal(t, "fast-path", rep.Route)
	assert.Greater(t, rep.Components, 0)
	assert.Empty(t, rep.Err)

	// Stored paths are project-relative with forward slashes.
	comps, err := e.Query().ComponentsInFile("web/index.html")
	require.NoError(t, err)
	assert.NotEmpty(t, comps)

	files, err := e.Query().Files()
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestEngine_UnchangedFilesSkipSecondPass(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := newTestProject(t)

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	reports, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	for _, rep := range reports {
		assert.True(t, rep.Skipped, "%s should be skipped on re-index", rep.Path)
	}
}

func TestEngine_ForceReindexesUnchangedFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithForce(true))
	dir := newTestProject(t)

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	reports, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	for _, rep := range reports {
		assert.False(t, rep.Skipped, "%s should re-analyze under force", rep.Path)
	}
}

func TestEngine_ReindexIsDeterministic(t *testing.T) {
	t.Parallel()
	dir := newTestProject(t)

	ids := func() []string {
		e := newTestEngine(t)
		_, err := e.IndexDirectory(context.Background(), dir)
		require.NoError(t, err)
		comps, err := e.Query().Components(SearchCriteria{Limit: 1000})
		require.NoError(t, err)
		var out []string
		for _, c := range comps {
			out = append(out, c.ID)
		}
		sort.Strings(out)
		return out
	}

	first := ids()
	second := ids()
	assert.Equal(t, first, second)
}

func TestEngine_LanguageFilter(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithLanguages("go"))
	dir := newTestProject(t)

	reports, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	html := reportByPath(reports, "web/index.html")
	require.NotNil(t, html)
	assert.True(t, html.Skipped)

	comps, err := e.Query().ComponentsInFile("web/index.html")
	require.NoError(t, err)
	assert.Empty(t, comps)
}

func TestEngine_UnreadableFileReportedNotFatal(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "ok.go", "package ok\n")
	e.root = dir

	reports, err := e.IndexFiles(context.Background(), []string{
		filepath.Join(dir, "missing.go"),
		good,
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.NotEmpty(t, reports[0].Err)
	assert.Empty(t, reports[1].Err)
}

func TestEngine_ParallelMatchesSerial(t *testing.T) {
	t.Parallel()
	dir := newTestProject(t)

	collect := func(e *Engine) []string {
		t.Helper()
		_, err := e.IndexDirectory(context.Background(), dir)
		require.NoError(t, err)
		comps, err := e.Query().Components(SearchCriteria{Limit: 1000})
		require.NoError(t, err)
		var ids []string
		for _, c := range comps {
			ids = append(ids, c.ID)
		}
		sort.Strings(ids)
		return ids
	}

	serial := collect(newTestEngine(t))
	parallel := collect(newTestEngine(t, WithParallel(true), WithWorkers(4)))
	assert.Equal(t, serial, parallel)
}

func TestEngine_TruncatedFileStillYieldsFileComponent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package broken\n\nfunc Unfinished(")

	reports, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Err, "partial parses degrade, they do not fail")
	assert.NotEmpty(t, reports[0].Warnings)

	comps, err := e.Query().ComponentsInFile("broken.go")
	require.NoError(t, err)
	require.NotEmpty(t, comps)
	foundFile := false
	for _, c := range comps {
		if c.Type == graph.ComponentFile {
			foundFile = true
		}
	}
	assert.True(t, foundFile)
}

// ============================================================================
// Supersede semantics
// ============================================================================

func TestEngine_VanishedComponentsCascade(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "calc.go", "package calc\n\nfunc Add() {}\n\nfunc Sub() {}\n")

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	before, err := e.Query().Components(SearchCriteria{Name: "Sub"})
	require.NoError(t, err)
	require.Len(t, before, 1)

	// Sub disappears from the file; its component and edges must follow.
	writeFile(t, dir, "calc.go", "package calc\n\nfunc Add() {}\n")
	_, err = e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	after, err := e.Query().Components(SearchCriteria{Name: "Sub"})
	require.NoError(t, err)
	assert.Empty(t, after)

	kept, err := e.Query().Components(SearchCriteria{Name: "Add"})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestEngine_RemovedCallEdgeIsSuperseded(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "calc.go", "package calc\n\nfunc Run() {\n\tstep()\n}\n\nfunc step() {}\n")

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	calls, err := e.Query().Relationships("calls")
	require.NoError(t, err)
	require.Len(t, calls, 1)

	// The call goes away but both functions survive; the edge must not linger.
	writeFile(t, dir, "calc.go", "package calc\n\nfunc Run() {\n}\n\nfunc step() {}\n")
	_, err = e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	calls, err = e.Query().Relationships("calls")
	require.NoError(t, err)
	assert.Empty(t, calls)

	kept, err := e.Query().Components(SearchCriteria{Name: "step"})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestEngine_RemoveFile(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "gone.go", "package gone\n\nfunc Bye() {}\n")

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, e.RemoveFile(path))

	comps, err := e.Query().ComponentsInFile("gone.go")
	require.NoError(t, err)
	assert.Empty(t, comps)

	files, err := e.Query().Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

// ============================================================================
// Resolution round trip
// ============================================================================

func TestEngine_ResolveCrossFileCall(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := newTestProject(t)

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	// main.go calls Greet, defined in util.go: one pending edge.
	pending, err := e.Query().Unresolved(100, 0)
	require.NoError(t, err)
	require.NotEmpty(t, pending)

	stats, err := e.Resolve(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.ResolvedTargets, 0)

	greet, err := e.Query().Components(SearchCriteria{Name: "Greet"})
	require.NoError(t, err)
	require.Len(t, greet, 1)

	incoming, err := e.Query().Incoming(greet[0].ID)
	require.NoError(t, err)
	foundCall := false
	for _, r := range incoming {
		if r.Type == graph.RelCalls {
			foundCall = true
		}
	}
	assert.True(t, foundCall, "resolved call edge should reach Greet")

	left, err := e.Query().Unresolved(100, 0)
	require.NoError(t, err)
	for _, r := range left {
		assert.NotEqual(t, "Greet", r.Target.Value)
	}
}

func TestEngine_ResolveIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := newTestProject(t)

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	_, err = e.Resolve(context.Background())
	require.NoError(t, err)
	again, err := e.Resolve(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.ResolvedTargets)
}

// ============================================================================
// Embedding staleness feed
// ============================================================================

func TestEngine_StaleEmbeddingsFlow(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "svc.go", "package svc\n\nfunc Serve() {}\n")

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	stale, err := e.Query().StaleEmbeddings()
	require.NoError(t, err)
	require.NotEmpty(t, stale, "freshly indexed components have no embeddings yet")

	// Record embeddings for everything, then nothing is stale.
	for _, c := range stale {
		require.NoError(t, e.Store().UpsertEmbedding(&graph.EmbeddingRecord{
			EntityID:    c.ID,
			EntityType:  "component",
			ContentHash: c.ContentHash,
			Vector:      []byte{1, 2, 3},
		}))
	}
	stale, err = e.Query().StaleEmbeddings()
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Editing the function body changes its content hash and re-stales it.
	writeFile(t, dir, "svc.go", "package svc\n\nfunc Serve() {\n\tprintln(\"x\")\n}\n")
	_, err = e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	stale, err = e.Query().StaleEmbeddings()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, c := range stale {
		names[c.Name] = true
	}
	assert.True(t, names["Serve"], "edited component should need a new embedding")
}

// Package lang holds the per-language analyzers, the routing decision
// engine, and the multi-language orchestrator. Analyzers walk a language's
// syntax tree into components and relationships; the orchestrator re-invokes
// them over embedded-language fragments and remaps the results into the host
// file's coordinates.
package lang

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"lattice/internal/graph"
)

// ParseWarning records a recoverable problem found while analyzing a file.
// Warnings never abort a run.
type ParseWarning struct {
	Message string
	Line    int
	Column  int
}

func (w ParseWarning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", w.Line, w.Column, w.Message)
	}
	return w.Message
}

// Result is what one analyzer invocation produces for one (real or virtual)
// document.
type Result struct {
	Components    []*graph.Component
	Relationships []*graph.Relationship
	Warnings      []ParseWarning
}

// Analyzer is the per-language capability contract. Implementations hold no
// state across files: all walk context is scoped to a single call. An
// analyzer must never panic past its own boundary (Invoke guards against it
// anyway) and on a partial parse must still return a result that the caller
// can turn into a file-level component.
type Analyzer interface {
	// Language returns the canonical language key, e.g. "javascript".
	Language() string

	// Extensions returns the file extensions (with dot) this analyzer claims.
	Extensions() []string

	// CanParseFile reports whether the analyzer claims the path by extension.
	CanParseFile(path string) bool

	// ValidateContent is a quick extension-independent sniff used as a
	// router tie-break. It must be cheap and never parse fully.
	ValidateContent(content []byte) bool

	// ValidateSyntax reports syntax problems as warnings without aborting.
	ValidateSyntax(ctx context.Context, content []byte) []ParseWarning

	// DetectComponents walks the syntax tree into components. FilePath is
	// already project-relative; emitted components must use it verbatim.
	DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error)

	// DetectRelationships extracts typed edges. Same-file symbols resolve by
	// direct lookup against components; out-of-file targets are emitted as
	// pending or external refs; an analyzer never blocks on cross-file
	// knowledge.
	DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error)

	// DetectBoundaries reports embedded foreign-language spans.
	DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error)
}

// Registry maps language keys and extensions to analyzer instances. Built
// once at startup; reads are lock-free afterwards.
type Registry struct {
	byLanguage  map[string]Analyzer
	byExtension map[string]Analyzer
}

// NewRegistry builds a registry with the default analyzer set.
func NewRegistry() *Registry {
	r := &Registry{
		byLanguage:  make(map[string]Analyzer),
		byExtension: make(map[string]Analyzer),
	}
	r.Register(NewGoAnalyzer())
	r.Register(NewJavaScriptAnalyzer())
	r.Register(NewTypeScriptAnalyzer())
	r.Register(NewPythonAnalyzer())
	r.Register(NewHTMLAnalyzer())
	r.Register(NewCSSAnalyzer())
	return r
}

// NewEmptyRegistry builds a registry with no analyzers, for tests and for
// callers composing their own set.
func NewEmptyRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Analyzer),
		byExtension: make(map[string]Analyzer),
	}
}

// Register adds an analyzer, replacing any previous claim on its language
// key or extensions.
func (r *Registry) Register(a Analyzer) {
	r.byLanguage[a.Language()] = a
	for _, ext := range a.Extensions() {
		r.byExtension[strings.ToLower(ext)] = a
	}
}

// ForLanguage returns the analyzer registered for a language key.
func (r *Registry) ForLanguage(lang string) (Analyzer, bool) {
	a, ok := r.byLanguage[lang]
	return a, ok
}

// ForPath returns the analyzer claiming the path's extension.
func (r *Registry) ForPath(path string) (Analyzer, bool) {
	a, ok := r.byExtension[strings.ToLower(filepath.Ext(path))]
	return a, ok
}

// Languages returns the registered language keys.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.byLanguage))
	for l := range r.byLanguage {
		langs = append(langs, l)
	}
	return langs
}

// Invoker wraps analyzer calls with a timeout and panic recovery. A hung or
// throwing analyzer degrades to a file-level component plus a recorded
// warning; it never stalls or aborts the run.
type Invoker struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewInvoker returns an Invoker with the given timeout; zero means 30s.
func NewInvoker(timeout time.Duration, logger *slog.Logger) *Invoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{Timeout: timeout, Logger: logger}
}

// Analyze runs the full per-document analysis: syntax validation,
// component detection, relationship detection. On any failure it returns a
// degraded result containing just a file-level component and the recorded
// warnings, never an error that would abort the caller's batch.
func (inv *Invoker) Analyze(ctx context.Context, a Analyzer, content []byte, filePath string) *Result {
	ctx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	res := &Result{}
	err := inv.guard(filePath, a.Language(), func() error {
		res.Warnings = append(res.Warnings, a.ValidateSyntax(ctx, content)...)

		comps, err := a.DetectComponents(ctx, content, filePath)
		if err != nil {
			return fmt.Errorf("detect components: %w", err)
		}
		res.Components = comps

		rels, err := a.DetectRelationships(ctx, content, filePath, comps)
		if err != nil {
			return fmt.Errorf("detect relationships: %w", err)
		}
		res.Relationships = rels
		return nil
	})
	if err != nil {
		inv.Logger.Warn("analyzer degraded to file-level component",
			"language", a.Language(), "file", filePath, "error", err)
		res.Components = nil
		res.Relationships = nil
		res.Warnings = append(res.Warnings, ParseWarning{Message: err.Error()})
	}
	ensureFileComponent(res, a.Language(), filePath, content)
	return res
}

// Boundaries invokes DetectBoundaries under the same guard. Failures return
// no boundaries and a warning.
func (inv *Invoker) Boundaries(ctx context.Context, a Analyzer, content []byte, filePath string) ([]graph.Boundary, []ParseWarning) {
	ctx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	var bounds []graph.Boundary
	err := inv.guard(filePath, a.Language(), func() error {
		b, err := a.DetectBoundaries(ctx, content, filePath)
		if err != nil {
			return err
		}
		bounds = b
		return nil
	})
	if err != nil {
		return nil, []ParseWarning{{Message: fmt.Sprintf("boundary detection: %v", err)}}
	}
	return bounds, nil
}

// guard converts panics into errors at the invocation boundary.
func (inv *Invoker) guard(filePath, lang string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer %s panicked on %s: %v", lang, filePath, r)
		}
	}()
	return fn()
}

// ensureFileComponent guarantees every result carries a file-level root
// component spanning the whole document.
func ensureFileComponent(res *Result, language, filePath string, content []byte) {
	for _, c := range res.Components {
		if c.Type == graph.ComponentFile {
			return
		}
	}
	file := FileComponent(language, filePath, content)
	res.Components = append([]*graph.Component{file}, res.Components...)
}

// FileComponent builds the root component for a document.
func FileComponent(language, filePath string, content []byte) *graph.Component {
	lines := 1
	for _, b := range content {
		if b == '\n' {
			lines++
		}
	}
	name := filepath.Base(filePath)
	return &graph.Component{
		ID:       graph.ComponentID(filePath, name, graph.ComponentFile, ""),
		Name:     name,
		Type:     graph.ComponentFile,
		Language: language,
		FilePath: filePath,
		Location: graph.Location{StartLine: 1, EndLine: lines, StartColumn: 0, EndColumn: 0},
	}
}

package lattice

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"lattice/internal/graph"
	"lattice/internal/lang"
	"lattice/internal/store"
)

// Engine orchestrates the lattice pipeline: file discovery, change
// detection, routing, analysis, persistence, and resolution.
type Engine struct {
	store    *store.Store
	registry *lang.Registry
	router   *lang.Router
	orch     *lang.Orchestrator
	logger   *slog.Logger

	root      string
	languages map[string]bool // nil means all languages
	excludes  []string
	timeout   time.Duration
	workers   int
	force     bool
	scriptsFS fs.FS

	// useParallel enables the worker-pool indexing pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRoot sets the project root that stored file paths are made relative
// to. Defaults to the current directory; IndexDirectory overrides it with
// the directory being indexed.
func WithRoot(root string) Option {
	return func(e *Engine) { e.root = root }
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLanguages restricts which primary languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			e.languages[l] = true
		}
	}
}

// WithExcludes adds glob patterns (doublestar syntax, matched against
// project-relative paths) that directory walks skip.
func WithExcludes(patterns ...string) Option {
	return func(e *Engine) { e.excludes = append(e.excludes, patterns...) }
}

// WithAnalyzerTimeout bounds a single analyzer invocation. Zero keeps the
// default.
func WithAnalyzerTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithWorkers sets the parallel indexing worker count. Zero means NumCPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithForce disables the unchanged-file skip so every file is re-analyzed.
func WithForce(force bool) Option {
	return func(e *Engine) { e.force = force }
}

// WithParallel controls the worker-pool pipeline. When true (default),
// IndexFiles parses files concurrently with a single goroutine committing
// results to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) { e.useParallel = parallel }
}

// WithScriptsFS loads Risor analyzer scripts from the given filesystem and
// registers them alongside the built-in analyzers. This enables embedding
// scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) { e.scriptsFS = fsys }
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("lattice: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("lattice: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		registry:    lang.NewRegistry(),
		root:        ".",
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.scriptsFS != nil {
		scripted, err := lang.LoadScriptedAnalyzers(e.scriptsFS)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("lattice: load scripted analyzers: %w", err)
		}
		for _, a := range scripted {
			e.registry.Register(a)
		}
	}

	invoker := lang.NewInvoker(e.timeout, e.logger)
	e.router = lang.NewRouter(e.registry)
	e.orch = lang.NewOrchestrator(e.registry, invoker, e.logger)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// FileReport summarizes what indexing one file produced. Per-file failures
// are reported here rather than aborting the run; only losing the store is
// fatal.
type FileReport struct {
	Path          string   `json:"path"`
	Language      string   `json:"language"`
	Route         string   `json:"route"`
	Components    int      `json:"components"`
	Relationships int      `json:"relationships"`
	Warnings      []string `json:"warnings,omitempty"`
	Skipped       bool     `json:"skipped,omitempty"`
	Err           string   `json:"error,omitempty"`
}

// IndexDirectory walks root (honoring .gitignore and the configured
// excludes) and indexes every file a route could handle. The walked root
// becomes the base for stored project-relative paths.
func (e *Engine) IndexDirectory(ctx context.Context, root string) ([]FileReport, error) {
	e.root = root
	paths, err := e.listFiles(root)
	if err != nil {
		return nil, err
	}
	return e.IndexFiles(ctx, paths)
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// files are analyzed by a worker pool and committed serially; otherwise
// each file runs the full pipeline in order.
//
// Errors on individual files are captured in their FileReport and indexing
// continues. The returned error is non-nil only for fatal conditions, such
// as the database becoming unreachable.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) ([]FileReport, error) {
	if e.useParallel {
		return e.indexFilesParallel(ctx, paths)
	}
	return e.indexFilesSerial(ctx, paths)
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) ([]FileReport, error) {
	reports := make([]FileReport, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := e.indexFile(ctx, path)
		if err != nil {
			if pingErr := e.store.Ping(); pingErr != nil {
				return reports, fmt.Errorf("store unreachable after %s: %w", path, pingErr)
			}
			e.logger.Warn("index failed", "path", path, "error", err)
			rep.Err = err.Error()
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// indexFile runs the per-file pipeline: read, change-check, route, analyze,
// hash, persist.
func (e *Engine) indexFile(ctx context.Context, path string) (FileReport, error) {
	rel := graph.NormalizePath(e.root, path)
	rep := FileReport{Path: rel}

	content, err := os.ReadFile(path)
	if err != nil {
		return rep, fmt.Errorf("read file: %w", err)
	}
	hash := graph.HashContent(content)

	existing, err := e.store.FileByPath(rel)
	if err != nil {
		return rep, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !e.force {
		rep.Language = existing.Language
		rep.Skipped = true
		return rep, nil
	}

	dec := e.router.Decide(rel, content)
	rep.Language = dec.Primary
	rep.Route = dec.Kind.String()
	if e.languages != nil && dec.Primary != "" && !e.languages[dec.Primary] {
		rep.Skipped = true
		return rep, nil
	}

	res := e.orch.Analyze(ctx, dec, content, rel)
	finishResult(res)

	if err := e.persist(rel, dec.Primary, hash, res); err != nil {
		return rep, err
	}

	rep.Components = len(res.Components)
	rep.Relationships = len(res.Relationships)
	for _, w := range res.Warnings {
		rep.Warnings = append(rep.Warnings, w.String())
	}
	return rep, nil
}

// finishResult computes content hashes and folds in containment edges
// derived from source spans. Analyzer-emitted contains edges keep priority:
// derived duplicates share the same deterministic id and are dropped.
func finishResult(res *lang.Result) {
	for _, c := range res.Components {
		c.ContentHash = graph.ContentHash(c)
	}
	seen := make(map[string]bool, len(res.Relationships))
	for _, r := range res.Relationships {
		seen[r.ID] = true
	}
	for _, r := range graph.DeriveContainment(res.Components) {
		if !seen[r.ID] {
			seen[r.ID] = true
			res.Relationships = append(res.Relationships, r)
		}
	}
}

// persist supersedes the file's previous index state: new components are
// upserted, components that vanished from the file are deleted together
// with every relationship touching them, edges sourced in the file that the
// new parse no longer emits are deleted, and the file record is updated.
func (e *Engine) persist(rel, language, hash string, res *lang.Result) error {
	old, err := e.store.ComponentsByFile(rel)
	if err != nil {
		return fmt.Errorf("list old components: %w", err)
	}
	current := make(map[string]bool, len(res.Components))
	for _, c := range res.Components {
		current[c.ID] = true
	}
	var vanished []string
	oldIDs := make([]string, 0, len(old))
	for _, c := range old {
		oldIDs = append(oldIDs, c.ID)
		if !current[c.ID] {
			vanished = append(vanished, c.ID)
		}
	}
	if len(vanished) > 0 {
		if err := e.store.DeleteComponents(vanished, ""); err != nil {
			return fmt.Errorf("delete vanished components: %w", err)
		}
	}

	// An edge can disappear while both endpoints survive, e.g. a call removed
	// from a function body. Sweep edges sourced from the file's previous
	// component set that the new parse did not re-emit.
	keep := make([]string, 0, len(res.Relationships))
	for _, r := range res.Relationships {
		keep = append(keep, r.ID)
	}
	if err := e.store.DeleteRelationshipsFromSources(oldIDs, keep); err != nil {
		return fmt.Errorf("supersede relationships: %w", err)
	}

	if err := e.store.StoreComponents(res.Components); err != nil {
		return fmt.Errorf("store components: %w", err)
	}
	if err := e.store.StoreRelationships(res.Relationships); err != nil {
		return fmt.Errorf("store relationships: %w", err)
	}
	return e.store.UpsertFile(&graph.FileRecord{
		Path:        rel,
		Language:    language,
		Hash:        hash,
		LastIndexed: time.Now(),
	})
}

// RemoveFile deletes everything indexed for a path: its components, every
// relationship touching them, and the file record itself.
func (e *Engine) RemoveFile(path string) error {
	rel := graph.NormalizePath(e.root, path)
	return e.store.DeleteComponentsInFile(rel)
}

package lattice

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"lattice/internal/graph"
	"lattice/internal/lang"
)

// workItem holds everything a parallel analysis worker needs.
type workItem struct {
	path    string
	rel     string
	hash    string
	content []byte
}

// analysis is a worker's output, committed serially in phase C.
type analysis struct {
	item workItem
	dec  lang.Decision
	res  *lang.Result
	err  error
}

// indexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Read content, hash check, skip unchanged files.
//	Phase B (parallel): Route and analyze via worker pool.
//	Phase C (serial):   Commit results to SQLite.
//
// SQLite takes all writes from the single phase-C goroutine, so workers
// never contend on the database.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) ([]FileReport, error) {
	reports := make([]FileReport, 0, len(paths))

	// ---- Phase A: serial file preparation ----
	var items []workItem
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		item, rep, skip, err := e.prepareFile(path)
		if err != nil {
			e.logger.Warn("prepare failed", "path", path, "error", err)
			rep.Err = err.Error()
			reports = append(reports, rep)
			continue
		}
		if skip {
			reports = append(reports, rep)
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return reports, nil
	}

	// ---- Phase B: parallel analysis ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	resultCh := make(chan analysis, len(items))
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each call builds fresh parsers, so tree-sitter use is
			// goroutine-safe.
			for item := range workCh {
				resultCh <- e.analyzeItem(ctx, item)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: serial commit ----
	for a := range resultCh {
		rep := FileReport{Path: a.item.rel, Language: a.dec.Primary, Route: a.dec.Kind.String()}
		if a.err != nil {
			e.logger.Warn("analyze failed", "path", a.item.rel, "error", a.err)
			rep.Err = a.err.Error()
			reports = append(reports, rep)
			continue
		}
		if a.res == nil {
			rep.Skipped = true // language filter
			reports = append(reports, rep)
			continue
		}
		if err := e.persist(a.item.rel, a.dec.Primary, a.item.hash, a.res); err != nil {
			if pingErr := e.store.Ping(); pingErr != nil {
				return reports, fmt.Errorf("store unreachable after %s: %w", a.item.rel, pingErr)
			}
			rep.Err = err.Error()
			reports = append(reports, rep)
			continue
		}
		rep.Components = len(a.res.Components)
		rep.Relationships = len(a.res.Relationships)
		for _, w := range a.res.Warnings {
			rep.Warnings = append(rep.Warnings, w.String())
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// prepareFile does phase A for a single file: read, hash, unchanged check.
// skip=true means the file needs no work.
func (e *Engine) prepareFile(path string) (workItem, FileReport, bool, error) {
	rel := graph.NormalizePath(e.root, path)
	rep := FileReport{Path: rel}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, rep, false, fmt.Errorf("read file: %w", err)
	}
	hash := graph.HashContent(content)

	existing, err := e.store.FileByPath(rel)
	if err != nil {
		return workItem{}, rep, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !e.force {
		rep.Language = existing.Language
		rep.Skipped = true
		return workItem{}, rep, true, nil
	}

	return workItem{path: path, rel: rel, hash: hash, content: content}, rep, false, nil
}

// analyzeItem does phase B for a single file: route, analyze, hash, derive
// containment. A nil Result with nil error means the language filter
// excluded the file.
func (e *Engine) analyzeItem(ctx context.Context, item workItem) analysis {
	dec := e.router.Decide(item.rel, item.content)
	if e.languages != nil && dec.Primary != "" && !e.languages[dec.Primary] {
		return analysis{item: item, dec: dec}
	}
	res := e.orch.Analyze(ctx, dec, item.content, item.rel)
	finishResult(res)
	return analysis{item: item, dec: dec, res: res}
}

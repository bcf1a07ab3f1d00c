// Package resolve implements the decoupled batch pass that matches
// placeholder relationship endpoints against the component index. It runs
// after parsing quiesces, reads in bounded pages, and commits each page
// independently, so a crash mid-run leaves committed pages resolved and the
// rest retryable. Resolution is idempotent and monotonic: re-running only
// ever resolves more edges, never un-resolves existing ones.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"lattice/internal/graph"
	"lattice/internal/store"
)

// DefaultPageSize bounds how many unresolved rows are held in memory at once.
const DefaultPageSize = 200

// Stats summarizes one resolver run.
type Stats struct {
	Examined        int
	ResolvedTargets int
	ResolvedSources int
	LeftUnresolved  int
}

// Resolver matches pending placeholder endpoints against indexed components.
type Resolver struct {
	store    *store.Store
	logger   *slog.Logger
	pageSize int
}

// New builds a Resolver. pageSize <= 0 uses DefaultPageSize.
func New(s *store.Store, logger *slog.Logger, pageSize int) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Resolver{store: s, logger: logger, pageSize: pageSize}
}

// Run resolves what it can and leaves the rest for a future run. Targets
// and sources are fetched independently because an edge can be
// half-resolved.
func (r *Resolver) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	resolvedT, err := r.resolveEnd(ctx, r.store.UnresolvedTargets, func(row *store.RelationshipRow, id string) store.RelationshipPatch {
		return store.RelationshipPatch{ID: row.ID, ResolvedTarget: id}
	}, func(row *store.RelationshipRow) string { return row.Target })
	if err != nil {
		return stats, fmt.Errorf("resolve targets: %w", err)
	}
	stats.ResolvedTargets = resolvedT.resolved
	stats.Examined += resolvedT.examined
	stats.LeftUnresolved += resolvedT.left

	resolvedS, err := r.resolveEnd(ctx, r.store.UnresolvedSources, func(row *store.RelationshipRow, id string) store.RelationshipPatch {
		return store.RelationshipPatch{ID: row.ID, ResolvedSource: id}
	}, func(row *store.RelationshipRow) string { return row.Source })
	if err != nil {
		return stats, fmt.Errorf("resolve sources: %w", err)
	}
	stats.ResolvedSources = resolvedS.resolved
	stats.Examined += resolvedS.examined
	stats.LeftUnresolved += resolvedS.left

	return stats, nil
}

type endStats struct {
	examined, resolved, left int
}

// resolveEnd pages through one endpoint's unresolved set. Each page's
// patches commit in their own transaction before the next page is fetched;
// the offset advances only past rows left unresolved, since patched rows
// drop out of the unresolved set.
func (r *Resolver) resolveEnd(
	ctx context.Context,
	fetch func(limit, offset int) ([]*store.RelationshipRow, error),
	patch func(row *store.RelationshipRow, id string) store.RelationshipPatch,
	encoded func(row *store.RelationshipRow) string,
) (endStats, error) {
	var stats endStats
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := fetch(r.pageSize, offset)
		if err != nil {
			return stats, fmt.Errorf("fetch unresolved page: %w", err)
		}
		if len(page) == 0 {
			return stats, nil
		}

		var patches []store.RelationshipPatch
		for _, row := range page {
			stats.examined++
			ref := graph.DecodeRef(encoded(row))
			if ref.Kind != graph.RefPending {
				stats.left++
				continue
			}
			candidates, err := r.store.ComponentsByNormalizedName(normalizeName(ref.Value))
			if err != nil {
				return stats, fmt.Errorf("lookup candidates for %q: %w", ref.Value, err)
			}
			winner := pickCandidate(ref.Value, candidates)
			if winner == nil {
				// No match: leave it for a future run. A false positive
				// corrupts the graph worse than a missing edge.
				stats.left++
				continue
			}
			patches = append(patches, patch(row, winner.ID))
		}

		if err := r.store.UpdateRelationshipsBulk(patches); err != nil {
			return stats, fmt.Errorf("commit resolution page: %w", err)
		}
		stats.resolved += len(patches)
		offset += len(page) - len(patches)
	}
}

// typeRank orders candidate component types: definitions people reference
// by name (classes, interfaces) outrank callables, which outrank the rest.
func typeRank(componentType string) int {
	switch componentType {
	case graph.ComponentClass, graph.ComponentInterface, graph.ComponentStruct, graph.ComponentEnum:
		return 0
	case graph.ComponentFunction, graph.ComponentMethod:
		return 1
	default:
		return 2
	}
}

// vendorSegments mark paths that belong to bundled third-party code.
var vendorSegments = []string{"vendor/", "node_modules/", "third_party/", "dist/", "build/"}

func isVendorPath(path string) bool {
	for _, seg := range vendorSegments {
		if strings.Contains(path, seg) {
			return true
		}
	}
	return false
}

// normalizeName folds case and leading underscores for the exact-match
// tie-break.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimLeft(name, "_"))
}

// pickCandidate applies the deterministic tie-break chain:
// exact name match > exact normalized match > type preference
// (class/interface > function/method > other) > non-vendor path >
// alphabetical (file path, then id). Returns nil when no candidate's
// normalized name matches at all.
func pickCandidate(name string, candidates []*graph.Component) *graph.Component {
	matched := candidates[:0:0]
	for _, c := range candidates {
		if c.Name == name || normalizeName(c.Name) == normalizeName(name) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		aExact, bExact := a.Name == name, b.Name == name
		if aExact != bExact {
			return aExact
		}
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		if va, vb := isVendorPath(a.FilePath), isVendorPath(b.FilePath); va != vb {
			return !va
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.ID < b.ID
	})
	return matched[0]
}

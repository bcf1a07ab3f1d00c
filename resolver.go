package lattice

import (
	"context"

	"lattice/internal/resolve"
)

// ResolveStats summarizes one resolution pass.
type ResolveStats = resolve.Stats

// Resolve runs the batch resolution pass: pending relationship endpoints
// are matched by name against the component index and resolved ids written
// back. Safe to call repeatedly; already-resolved edges are never revisited
// and unresolvable edges are left for a future run.
func (e *Engine) Resolve(ctx context.Context) (ResolveStats, error) {
	r := resolve.New(e.store, e.logger, 0)
	return r.Run(ctx)
}

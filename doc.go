// Package lattice parses source trees into a persistent component graph.
// It pairs tree-sitter analyzers with a SQLite store to produce stable,
// deterministically-identified components (files, classes, functions,
// sections, rules) and typed relationships between them, including across
// language boundaries inside mixed-content files such as HTML.
//
// # Pipeline
//
// Indexing a file runs four stages:
//
//  1. Route: inspect the path and content, and decide between the fast
//     single-language path, full multi-language orchestration, or a
//     single-language parse with a boundary scan.
//
//  2. Analyze: the primary language analyzer extracts components and
//     relationships. For multi-language files, the orchestrator slices out
//     embedded fragments (script tags, inline handlers, tagged templates),
//     re-invokes the matching analyzers, and remaps their output into the
//     host file's coordinates.
//
//  3. Persist: components get content hashes and are upserted; components
//     that vanished from the file are deleted along with every relationship
//     touching them.
//
//  4. Resolve: a separate batch pass ([Engine.Resolve]) matches pending
//     relationship endpoints against the component index by name and writes
//     resolved ids, leaving genuinely unresolvable edges for a future run.
//
// # Usage
//
// Create an Engine, index a directory, resolve, and query:
//
//	e, err := lattice.New("lattice.db", lattice.WithRoot("path/to/project"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	reports, err := e.IndexDirectory(ctx, "path/to/project")
//	stats, err := e.Resolve(ctx)
//
//	q := e.Query()
//	comps, err := q.Components(lattice.SearchCriteria{Name: "Render"})
//
// # Incremental Indexing
//
// [Engine.IndexFiles] hashes file content and skips files whose hash matches
// the stored record; [WithForce] disables the skip. Component ids are
// deterministic from path, qualified name, and type, so re-indexing an
// unchanged file is a no-op at the storage layer and downstream consumers
// (like the embedding subsystem) see churn only when meaning changes.
//
// # Scripted Analyzers
//
// Languages without a compiled-in analyzer can be covered by Risor scripts
// loaded via [WithScriptsFS]. A script declares its extensions in a comment
// directive and emits components, relationships, and boundaries through host
// functions; it plugs into the same analyzer contract as the built-ins. See
// the scripts directory for examples.
package lattice

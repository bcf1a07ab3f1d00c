package lattice

import (
	"lattice/internal/graph"
	"lattice/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. These are Go type aliases (=), identical to the
// internal types at compile time; no conversion is needed.

type Component = graph.Component
type Relationship = graph.Relationship
type Location = graph.Location
type Ref = graph.Ref
type Boundary = graph.Boundary
type FileRecord = graph.FileRecord
type EmbeddingRecord = graph.EmbeddingRecord

type Store = store.Store
type SearchCriteria = store.SearchCriteria
type RelationshipRow = store.RelationshipRow

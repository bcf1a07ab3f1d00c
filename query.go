package lattice

import (
	"fmt"

	"lattice/internal/store"
)

// QueryBuilder provides a consumer-facing read API over the Store. Rule
// engines and embedding pipelines sit on top of these calls.
type QueryBuilder struct {
	store *store.Store
}

// Components searches the component index. Zero-value criteria fields are
// ignored; an empty criteria returns the first page of everything.
func (q *QueryBuilder) Components(criteria SearchCriteria) ([]*Component, error) {
	return q.store.SearchComponents(criteria)
}

// Component fetches a single component by id. Returns nil when absent.
func (q *QueryBuilder) Component(id string) (*Component, error) {
	return q.store.GetComponent(id)
}

// ComponentsInFile returns every component indexed for a project-relative
// path.
func (q *QueryBuilder) ComponentsInFile(path string) ([]*Component, error) {
	return q.store.ComponentsByFile(path)
}

// Outgoing returns relationships whose source is the given component,
// either directly or via a resolved placeholder.
func (q *QueryBuilder) Outgoing(componentID string) ([]*Relationship, error) {
	rows, err := q.store.RelationshipsBySource(componentID)
	if err != nil {
		return nil, fmt.Errorf("outgoing relationships: %w", err)
	}
	return rowsToRelationships(rows), nil
}

// Incoming returns relationships whose target is the given component,
// either directly or via a resolved placeholder.
func (q *QueryBuilder) Incoming(componentID string) ([]*Relationship, error) {
	rows, err := q.store.RelationshipsByTarget(componentID)
	if err != nil {
		return nil, fmt.Errorf("incoming relationships: %w", err)
	}
	return rowsToRelationships(rows), nil
}

// Relationships returns every relationship of the given type.
func (q *QueryBuilder) Relationships(relType string) ([]*Relationship, error) {
	rows, err := q.store.RelationshipsByType(relType)
	if err != nil {
		return nil, fmt.Errorf("relationships by type: %w", err)
	}
	return rowsToRelationships(rows), nil
}

// Unresolved returns a page of relationships still carrying a pending
// target endpoint.
func (q *QueryBuilder) Unresolved(limit, offset int) ([]*Relationship, error) {
	rows, err := q.store.UnresolvedTargets(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("unresolved relationships: %w", err)
	}
	return rowsToRelationships(rows), nil
}

// StaleEmbeddings returns components whose content hash differs from the
// hash recorded with their embedding, plus components with no embedding at
// all. This is the feed for the embedding subsystem.
func (q *QueryBuilder) StaleEmbeddings() ([]*Component, error) {
	return q.store.ComponentsNeedingEmbeddings()
}

// Files returns the change-detection records for every indexed file.
func (q *QueryBuilder) Files() ([]*FileRecord, error) {
	return q.store.Files()
}

func rowsToRelationships(rows []*store.RelationshipRow) []*Relationship {
	rels := make([]*Relationship, len(rows))
	for i, row := range rows {
		rels[i] = row.Relationship()
	}
	return rels
}

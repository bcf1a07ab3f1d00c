package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"lattice/internal/graph"
)

// RelationshipRow is the storage shape of a relationship: endpoints in the
// RESOLVE:/EXTERNAL: string encoding plus the resolved_* audit columns the
// resolver fills in. The placeholder strings are kept intact after
// resolution.
type RelationshipRow struct {
	ID             string
	Type           string
	Source         string
	Target         string
	ResolvedSource string
	ResolvedTarget string
	Location       graph.Location
	Metadata       map[string]any
}

// Relationship converts the row to the in-memory shape: a resolved audit
// column wins over the stored placeholder.
func (r *RelationshipRow) Relationship() *graph.Relationship {
	rel := &graph.Relationship{
		ID:       r.ID,
		Type:     r.Type,
		Source:   graph.DecodeRef(r.Source),
		Target:   graph.DecodeRef(r.Target),
		Location: r.Location,
		Metadata: r.Metadata,
	}
	if r.ResolvedSource != "" {
		rel.Source = graph.ResolvedRef(r.ResolvedSource)
	}
	if r.ResolvedTarget != "" {
		rel.Target = graph.ResolvedRef(r.ResolvedTarget)
	}
	return rel
}

const relationshipCols = `id, type, source, target, resolved_source, resolved_target,
	start_line, end_line, start_column, end_column, metadata`

// StoreRelationships upserts a batch of relationships in one transaction.
// Resolution audit columns are preserved on conflict so a re-parse never
// un-resolves an edge; already-resolved endpoints are written straight into
// the audit columns.
func (s *Store) StoreRelationships(batch []*graph.Relationship) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range batch {
		metaJSON, err := json.Marshal(orEmpty(r.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		var resolvedSource, resolvedTarget any
		if r.Source.IsResolved() {
			resolvedSource = r.Source.Value
		}
		if r.Target.IsResolved() {
			resolvedTarget = r.Target.Value
		}
		_, err = tx.Exec(`
			INSERT INTO relationships (`+relationshipCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				metadata = excluded.metadata,
				resolved_source = COALESCE(relationships.resolved_source, excluded.resolved_source),
				resolved_target = COALESCE(relationships.resolved_target, excluded.resolved_target)`,
			r.ID, r.Type, r.Source.Encode(), r.Target.Encode(), resolvedSource, resolvedTarget,
			r.Location.StartLine, r.Location.EndLine, r.Location.StartColumn, r.Location.EndColumn,
			string(metaJSON),
		)
		if err != nil {
			return fmt.Errorf("upsert relationship %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// UnresolvedTargets pages through relationships whose target is a pending
// placeholder with no resolution yet. External targets are excluded: they
// are flagged as leaving the project, not awaiting resolution.
func (s *Store) UnresolvedTargets(limit, offset int) ([]*RelationshipRow, error) {
	return s.queryRows(`
		SELECT `+relationshipCols+` FROM relationships
		WHERE target LIKE 'RESOLVE:%' AND (resolved_target IS NULL OR resolved_target = '')
		ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

// UnresolvedSources pages through relationships whose source is a pending
// placeholder. An edge can be half-resolved, so sources are fetched
// independently of targets.
func (s *Store) UnresolvedSources(limit, offset int) ([]*RelationshipRow, error) {
	return s.queryRows(`
		SELECT `+relationshipCols+` FROM relationships
		WHERE source LIKE 'RESOLVE:%' AND (resolved_source IS NULL OR resolved_source = '')
		ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

// RelationshipsBySource returns rows whose effective source is the id.
func (s *Store) RelationshipsBySource(id string) ([]*RelationshipRow, error) {
	return s.queryRows(
		"SELECT "+relationshipCols+" FROM relationships WHERE source = ? OR resolved_source = ? ORDER BY id", id, id)
}

// RelationshipsByTarget returns rows whose effective target is the id.
func (s *Store) RelationshipsByTarget(id string) ([]*RelationshipRow, error) {
	return s.queryRows(
		"SELECT "+relationshipCols+" FROM relationships WHERE target = ? OR resolved_target = ? ORDER BY id", id, id)
}

// RelationshipsByType returns rows of one relationship type.
func (s *Store) RelationshipsByType(relType string) ([]*RelationshipRow, error) {
	return s.queryRows(
		"SELECT "+relationshipCols+" FROM relationships WHERE type = ? ORDER BY id", relType)
}

// DeleteRelationshipsFromSources removes edges whose effective source is one
// of the given component ids, except edges whose id appears in keep. A
// re-parse calls this to supersede a file's edges: ones dropped from the
// source are deleted, surviving ones keep their resolution audit columns.
func (s *Store) DeleteRelationshipsFromSources(sourceIDs, keep []string) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	ph := placeholderList(len(sourceIDs))
	query := "DELETE FROM relationships WHERE (source IN (" + ph + ") OR resolved_source IN (" + ph + "))"
	args := append(append([]any{}, stringsToArgs(sourceIDs)...), stringsToArgs(sourceIDs)...)
	if len(keep) > 0 {
		query += " AND id NOT IN (" + placeholderList(len(keep)) + ")"
		args = append(args, stringsToArgs(keep)...)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("supersede relationships: %w", err)
	}
	return nil
}

// RelationshipPatch writes a resolved id into one audit column of one row.
// The placeholder string in source/target stays intact for audit.
type RelationshipPatch struct {
	ID             string
	ResolvedSource string // empty = leave alone
	ResolvedTarget string // empty = leave alone
}

// UpdateRelationshipsBulk applies patches inside one transaction, one
// UPDATE per row, so an interrupted run never leaves a half-written edge:
// either the whole page committed or none of it did.
func (s *Store) UpdateRelationshipsBulk(patches []RelationshipPatch) error {
	if len(patches) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range patches {
		if p.ResolvedSource != "" {
			if _, err := tx.Exec(
				"UPDATE relationships SET resolved_source = ? WHERE id = ?",
				p.ResolvedSource, p.ID); err != nil {
				return fmt.Errorf("patch source of %s: %w", p.ID, err)
			}
		}
		if p.ResolvedTarget != "" {
			if _, err := tx.Exec(
				"UPDATE relationships SET resolved_target = ? WHERE id = ?",
				p.ResolvedTarget, p.ID); err != nil {
				return fmt.Errorf("patch target of %s: %w", p.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *Store) queryRows(query string, args ...any) ([]*RelationshipRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*RelationshipRow
	for rows.Next() {
		r := &RelationshipRow{}
		var resolvedSource, resolvedTarget sql.NullString
		var metaJSON string
		if err := rows.Scan(&r.ID, &r.Type, &r.Source, &r.Target, &resolvedSource, &resolvedTarget,
			&r.Location.StartLine, &r.Location.EndLine, &r.Location.StartColumn, &r.Location.EndColumn,
			&metaJSON); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.ResolvedSource = resolvedSource.String
		r.ResolvedTarget = resolvedTarget.String
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

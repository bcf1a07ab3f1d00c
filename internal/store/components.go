package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"lattice/internal/graph"
)

const componentCols = `id, name, type, language, file_path,
	start_line, end_line, start_column, end_column,
	parent_id, code, metadata, content_hash`

// qualifyCols prefixes each column in a comma-separated list with a table
// alias, for queries that join tables sharing column names.
func qualifyCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// StoreComponents upserts a batch of components in one transaction.
// Metadata merges key-wise with whatever is already persisted — new keys
// win on conflict, but keys owned by other subsystems survive a re-parse of
// the same id.
func (s *Store) StoreComponents(batch []*graph.Component) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range batch {
		existing, err := componentMetadata(tx, c.ID)
		if err != nil {
			return err
		}
		merged := mergeMetadata(existing, c.Metadata)
		metaJSON, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", c.ID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO components (`+componentCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				type = excluded.type,
				language = excluded.language,
				file_path = excluded.file_path,
				start_line = excluded.start_line,
				end_line = excluded.end_line,
				start_column = excluded.start_column,
				end_column = excluded.end_column,
				parent_id = excluded.parent_id,
				code = excluded.code,
				metadata = excluded.metadata,
				content_hash = excluded.content_hash`,
			c.ID, c.Name, c.Type, c.Language, c.FilePath,
			c.Location.StartLine, c.Location.EndLine, c.Location.StartColumn, c.Location.EndColumn,
			nullable(c.ParentID), nullable(c.Code), string(metaJSON), nullable(c.ContentHash),
		)
		if err != nil {
			return fmt.Errorf("upsert component %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// componentMetadata reads the persisted metadata map for an id inside tx.
func componentMetadata(tx *sql.Tx, id string) (map[string]any, error) {
	var raw string
	err := tx.QueryRow("SELECT metadata FROM components WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata for %s: %w", id, err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	return m, nil
}

// mergeMetadata overlays incoming keys onto existing ones. Existing keys
// absent from incoming are kept, never wholesale-replaced.
func mergeMetadata(existing, incoming map[string]any) map[string]any {
	if existing == nil && incoming == nil {
		return map[string]any{}
	}
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// GetComponent returns a component by id, or nil when absent.
func (s *Store) GetComponent(id string) (*graph.Component, error) {
	row := s.db.QueryRow("SELECT "+componentCols+" FROM components WHERE id = ?", id)
	c, err := scanComponent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ComponentsByFile returns all components for a project-relative file path.
func (s *Store) ComponentsByFile(path string) ([]*graph.Component, error) {
	return s.queryComponents("SELECT "+componentCols+" FROM components WHERE file_path = ? ORDER BY start_line, start_column", path)
}

// ComponentsByName returns resolution candidates for a bare symbol name.
func (s *Store) ComponentsByName(name string) ([]*graph.Component, error) {
	return s.queryComponents("SELECT "+componentCols+" FROM components WHERE name = ? ORDER BY file_path, id", name)
}

// ComponentsByNormalizedName returns resolution candidates whose name matches
// after case and leading-underscore folding. name must already be folded the
// same way.
func (s *Store) ComponentsByNormalizedName(name string) ([]*graph.Component, error) {
	return s.queryComponents(
		"SELECT "+componentCols+" FROM components WHERE LOWER(LTRIM(name, '_')) = ? ORDER BY file_path, id", name)
}

// SearchCriteria filters SearchComponents. Zero fields are ignored; Limit 0
// means 100.
type SearchCriteria struct {
	Name      string
	Types     []string
	Languages []string
	FilePath  string
	Limit     int
	Offset    int
}

// SearchComponents runs a filtered, paginated component search.
func (s *Store) SearchComponents(criteria SearchCriteria) ([]*graph.Component, error) {
	query := "SELECT " + componentCols + " FROM components WHERE 1=1"
	var args []any
	if criteria.Name != "" {
		query += " AND name = ?"
		args = append(args, criteria.Name)
	}
	if len(criteria.Types) > 0 {
		query += " AND type IN (" + placeholderList(len(criteria.Types)) + ")"
		args = append(args, stringsToArgs(criteria.Types)...)
	}
	if len(criteria.Languages) > 0 {
		query += " AND language IN (" + placeholderList(len(criteria.Languages)) + ")"
		args = append(args, stringsToArgs(criteria.Languages)...)
	}
	if criteria.FilePath != "" {
		query += " AND file_path = ?"
		args = append(args, criteria.FilePath)
	}
	limit := criteria.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY file_path, start_line, start_column LIMIT ? OFFSET ?"
	args = append(args, limit, criteria.Offset)
	return s.queryComponents(query, args...)
}

// DeleteComponentsInFile removes a file's components and cascades the
// deletion to every relationship naming those ids as source or target
// (resolved or placeholder-resolved). The storage layer owns this invariant
// because nothing downstream has symbol-graph semantics.
func (s *Store) DeleteComponentsInFile(path string) error {
	rows, err := s.db.Query("SELECT id FROM components WHERE file_path = ?", path)
	if err != nil {
		return fmt.Errorf("query components for %s: %w", path, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan component id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	return s.DeleteComponents(ids, path)
}

// DeleteComponents removes the given component ids and their relationships.
// path may be "" when deleting a partial set during an upsert supersede.
func (s *Store) DeleteComponents(ids []string, path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(ids) > 0 {
		ph := placeholderList(len(ids))
		args := stringsToArgs(ids)

		relArgs := append(append(append(append([]any{}, args...), args...), args...), args...)
		if _, err := tx.Exec(
			`DELETE FROM relationships WHERE source IN (`+ph+`) OR target IN (`+ph+`)
			 OR resolved_source IN (`+ph+`) OR resolved_target IN (`+ph+`)`, relArgs...); err != nil {
			return fmt.Errorf("cascade relationship delete: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM components WHERE id IN ("+ph+")", args...); err != nil {
			return fmt.Errorf("delete components: %w", err)
		}
	}
	if path != "" {
		if _, err := tx.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
			return fmt.Errorf("delete file record: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) queryComponents(query string, args ...any) ([]*graph.Component, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comps []*graph.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanComponent(row rowScanner) (*graph.Component, error) {
	c := &graph.Component{}
	var parentID, code, contentHash sql.NullString
	var metaJSON string
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Language, &c.FilePath,
		&c.Location.StartLine, &c.Location.EndLine, &c.Location.StartColumn, &c.Location.EndColumn,
		&parentID, &code, &metaJSON, &contentHash)
	if err != nil {
		return nil, err
	}
	c.ParentID = parentID.String
	c.Code = code.String
	c.ContentHash = contentHash.String
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

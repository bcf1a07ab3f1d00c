package store

import (
	"database/sql"
	"fmt"
	"time"

	"lattice/internal/graph"
)

// Staleness contract with the embedding subsystem: a component needs a new
// embedding when it has no row, the recorded hash is null, or the recorded
// hash no longer matches the component's current content hash. That
// comparison is the entire interface; the vectors themselves are owned
// externally.

// ComponentsNeedingEmbeddings returns components whose derived embedding is
// missing or stale.
func (s *Store) ComponentsNeedingEmbeddings() ([]*graph.Component, error) {
	// content_hash exists on both tables, so the column list must carry the
	// components alias.
	return s.queryComponents(`
		SELECT ` + qualifyCols("c", componentCols) + ` FROM components c
		LEFT JOIN embeddings e ON e.entity_id = c.id
		WHERE e.entity_id IS NULL
		   OR e.content_hash IS NULL
		   OR e.content_hash != c.content_hash
		ORDER BY c.file_path, c.start_line`)
}

// UpsertEmbedding records an embedding row. Called by the embedding
// subsystem (and tests); the parsing core never writes vectors.
func (s *Store) UpsertEmbedding(rec *graph.EmbeddingRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO embeddings (entity_id, entity_type, vector, version, content_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			vector = excluded.vector,
			version = excluded.version,
			content_hash = excluded.content_hash`,
		rec.EntityID, rec.EntityType, rec.Vector, nullable(rec.Version), nullable(rec.ContentHash))
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", rec.EntityID, err)
	}
	return nil
}

// GetEmbedding returns the embedding row for an entity, or nil.
func (s *Store) GetEmbedding(entityID string) (*graph.EmbeddingRecord, error) {
	rec := &graph.EmbeddingRecord{}
	var version, hash sql.NullString
	err := s.db.QueryRow(
		"SELECT entity_id, entity_type, vector, version, content_hash FROM embeddings WHERE entity_id = ?",
		entityID).Scan(&rec.EntityID, &rec.EntityType, &rec.Vector, &version, &hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding %s: %w", entityID, err)
	}
	rec.Version = version.String
	rec.ContentHash = hash.String
	return rec, nil
}

// --- file records (whole-file change detection) ---

// FileByPath returns the indexed-file record for a path, or nil.
func (s *Store) FileByPath(path string) (*graph.FileRecord, error) {
	f := &graph.FileRecord{}
	var hash sql.NullString
	var lastIndexed sql.NullTime
	err := s.db.QueryRow(
		"SELECT path, language, hash, last_indexed FROM files WHERE path = ?",
		path).Scan(&f.Path, &f.Language, &hash, &lastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path %s: %w", path, err)
	}
	f.Hash = hash.String
	f.LastIndexed = lastIndexed.Time
	return f, nil
}

// UpsertFile records a file's language and content hash after indexing.
func (s *Store) UpsertFile(f *graph.FileRecord) error {
	if f.LastIndexed.IsZero() {
		f.LastIndexed = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO files (path, language, hash, last_indexed) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			language = excluded.language,
			hash = excluded.hash,
			last_indexed = excluded.last_indexed`,
		f.Path, f.Language, f.Hash, f.LastIndexed)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", f.Path, err)
	}
	return nil
}

// Files returns all indexed file records.
func (s *Store) Files() ([]*graph.FileRecord, error) {
	rows, err := s.db.Query("SELECT path, language, hash, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*graph.FileRecord
	for rows.Next() {
		f := &graph.FileRecord{}
		var hash sql.NullString
		var lastIndexed sql.NullTime
		if err := rows.Scan(&f.Path, &f.Language, &hash, &lastIndexed); err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		f.Hash = hash.String
		f.LastIndexed = lastIndexed.Time
		files = append(files, f)
	}
	return files, rows.Err()
}

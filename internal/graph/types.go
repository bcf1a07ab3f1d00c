package graph

import "time"

// Component types. These are the symbolic units the analyzers emit; every
// file parse produces at least one component of type ComponentFile.
const (
	ComponentFile      = "file"
	ComponentFragment  = "fragment"
	ComponentModule    = "module"
	ComponentNamespace = "namespace"
	ComponentClass     = "class"
	ComponentInterface = "interface"
	ComponentStruct    = "struct"
	ComponentEnum      = "enum"
	ComponentFunction  = "function"
	ComponentMethod    = "method"
	ComponentProperty  = "property"
	ComponentVariable  = "variable"
	ComponentConstant  = "constant"
	ComponentSection   = "section"
	ComponentRule      = "rule"
)

// Relationship types.
const (
	RelContains   = "contains"
	RelExtends    = "extends"
	RelImplements = "implements"
	RelCalls      = "calls"
	RelImports    = "imports"
	RelExports    = "exports"
	RelReferences = "references"
	RelRenders    = "renders"
)

// Location is a source span: 1-based lines, 0-based columns.
type Location struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartColumn int `json:"startColumn"`
	EndColumn   int `json:"endColumn"`
}

// DefaultLocation is what analyzers use when they cannot determine bounds.
func DefaultLocation() Location {
	return Location{StartLine: 1, EndLine: 1, StartColumn: 0, EndColumn: 0}
}

// IsZero reports whether the location was never set.
func (l Location) IsZero() bool {
	return l.StartLine == 0 && l.EndLine == 0 && l.StartColumn == 0 && l.EndColumn == 0
}

// Contains reports whether l fully encloses other. A span contains itself.
func (l Location) Contains(other Location) bool {
	if other.StartLine < l.StartLine || other.EndLine > l.EndLine {
		return false
	}
	if other.StartLine == l.StartLine && other.StartColumn < l.StartColumn {
		return false
	}
	if other.EndLine == l.EndLine && other.EndColumn > l.EndColumn {
		return false
	}
	return true
}

// Span returns the line count covered, used as a tightness measure when
// picking the smallest enclosing component.
func (l Location) Span() int {
	return l.EndLine - l.StartLine
}

// Component is a persisted symbolic unit of source.
//
// ID is deterministic from (FilePath, qualified name, Type, disambiguator),
// so re-parsing unchanged source reproduces the same id. FilePath is always
// project-relative with forward slashes. ParentID references a component in
// the same file. ContentHash covers meaning-relevant fields only (see
// ContentHash in hash.go); embedding fields are owned by the embedding
// subsystem and never written by the parsing core.
type Component struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Language    string         `json:"language"`
	FilePath    string         `json:"filePath"`
	Location    Location       `json:"location"`
	ParentID    string         `json:"parentId,omitempty"`
	Code        string         `json:"code,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ContentHash string         `json:"contentHash,omitempty"`
}

// Meta sets a metadata key, allocating the map on first use.
func (c *Component) Meta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Relationship is a typed edge between two components, or between a
// component and an unresolved reference. Source and Target are tagged
// unions in memory; the RESOLVE:/EXTERNAL: string encoding exists only at
// the storage boundary (see ref.go).
type Relationship struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Source   Ref            `json:"source"`
	Target   Ref            `json:"target"`
	Location Location       `json:"location,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Meta sets a metadata key, allocating the map on first use.
func (r *Relationship) Meta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Boundary marks a span of embedded foreign-language content inside a host
// file. Boundaries are transient: they drive orchestration and are never
// persisted.
type Boundary struct {
	Language    string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	Scope       string // e.g. "script_tag", "style_tag", "inline_handler", "template", "front_matter"
	Metadata    map[string]any
}

// Location returns the boundary's span as a Location.
func (b Boundary) Location() Location {
	return Location{
		StartLine:   b.StartLine,
		EndLine:     b.EndLine,
		StartColumn: b.StartColumn,
		EndColumn:   b.EndColumn,
	}
}

// FileRecord tracks a parsed file for whole-file change detection.
type FileRecord struct {
	Path        string
	Language    string
	Hash        string
	LastIndexed time.Time
}

// EmbeddingRecord mirrors the embedding subsystem's row shape. The parsing
// core only reads these for staleness comparison.
type EmbeddingRecord struct {
	EntityID    string
	EntityType  string
	Vector      []byte
	Version     string
	ContentHash string
}

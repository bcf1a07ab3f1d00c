package lang

import (
	"bytes"
	"regexp"

	"lattice/internal/graph"
)

// Generic cross-cutting boundary patterns. These are unioned with whatever
// the primary analyzer reports, so one-off embeds in otherwise
// single-language files (a tagged SQL string in Go, an html template literal
// in JS) still surface without per-analyzer support.

var (
	// sql`...` / html`...` / css`...` tagged template literals.
	taggedTemplateRe = regexp.MustCompile("(?s)\\b(sql|html|css|gql|graphql)`([^`]*)`")

	// Raw or quoted string literals that start like a SQL statement.
	sqlStringRe = regexp.MustCompile("(?is)([`\"'])\\s*(SELECT\\s+.+?\\s+FROM\\s+|INSERT\\s+INTO\\s+|UPDATE\\s+\\S+\\s+SET\\s+|DELETE\\s+FROM\\s+|CREATE\\s+TABLE\\s+)[^`\"']*([`\"'])")

	// Front matter fenced by --- at the top of the document.
	frontMatterRe = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---`)

	// Template delimiters that signal a templated page.
	templateMarkerRe = regexp.MustCompile(`\{\{.*?\}\}|<%.*?%>|\{%.*?%\}`)

	scriptTagRe = regexp.MustCompile(`(?i)<script\b`)
	styleTagRe  = regexp.MustCompile(`(?i)<style\b`)
)

// taggedLanguages maps template tags to language keys.
var taggedLanguages = map[string]string{
	"sql":     "sql",
	"html":    "html",
	"css":     "css",
	"gql":     "graphql",
	"graphql": "graphql",
}

// HasEmbeddedMarkers reports whether content carries any generic signal of
// embedded foreign-language material. Used by the router to keep the common
// single-language case on the fast path.
func HasEmbeddedMarkers(content []byte) bool {
	return taggedTemplateRe.Match(content) ||
		sqlStringRe.Match(content) ||
		templateMarkerRe.Match(content) ||
		scriptTagRe.Match(content) ||
		styleTagRe.Match(content) ||
		frontMatterRe.Match(content)
}

// scanGenericBoundaries runs the fixed pattern library over content and
// returns boundaries whose language differs from primary. Patterns that do
// not occur simply contribute nothing.
func scanGenericBoundaries(content []byte, primary string) []graph.Boundary {
	idx := newLineIndex(content)
	var bounds []graph.Boundary

	for _, m := range taggedTemplateRe.FindAllSubmatchIndex(content, -1) {
		lang := taggedLanguages[string(content[m[2]:m[3]])]
		if lang == "" || lang == primary {
			continue
		}
		// Span covers the template body, not the tag or backticks.
		bounds = append(bounds, boundaryAt(idx, m[4], m[5], lang, "tagged_template"))
	}

	if primary != "sql" {
		for _, m := range sqlStringRe.FindAllSubmatchIndex(content, -1) {
			start, end := m[3], m[6] // inside the quotes
			if end <= start {
				continue
			}
			bounds = append(bounds, boundaryAt(idx, start, end, "sql", "string_literal"))
		}
	}

	if m := frontMatterRe.FindSubmatchIndex(content); m != nil && primary != "yaml" {
		bounds = append(bounds, boundaryAt(idx, m[2], m[3], "yaml", "front_matter"))
	}

	return dedupeBoundaries(bounds)
}

// boundaryAt converts byte offsets into a Boundary in graph coordinates.
func boundaryAt(idx *lineIndex, start, end int, lang, scope string) graph.Boundary {
	sl, sc := idx.position(start)
	el, ec := idx.position(end)
	return graph.Boundary{
		Language:    lang,
		StartLine:   sl,
		StartColumn: sc,
		EndLine:     el,
		EndColumn:   ec,
		Scope:       scope,
	}
}

// boundaryKey identifies a span for deduplication. Metadata is excluded so
// that two pattern matches over the same bytes collapse to one boundary.
type boundaryKey struct {
	language    string
	startLine   int
	startColumn int
	endLine     int
	endColumn   int
	scope       string
}

// dedupeBoundaries drops exact duplicates (a span can match two patterns).
func dedupeBoundaries(bounds []graph.Boundary) []graph.Boundary {
	seen := make(map[boundaryKey]bool, len(bounds))
	kept := bounds[:0]
	for _, b := range bounds {
		key := boundaryKey{b.Language, b.StartLine, b.StartColumn, b.EndLine, b.EndColumn, b.Scope}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, b)
	}
	return kept
}

// lineIndex converts byte offsets to (1-based line, 0-based column).
type lineIndex struct {
	starts []int // byte offset of each line start
}

func newLineIndex(content []byte) *lineIndex {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (ix *lineIndex) position(offset int) (line, col int) {
	lo, hi := 0, len(ix.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if ix.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - ix.starts[lo]
}

// SliceBoundary extracts a boundary's exact sub-text from the host content.
// Returns the virtual document bytes; wrapper syntax is already excluded by
// the boundary coordinates the detectors emit.
func SliceBoundary(content []byte, b graph.Boundary) []byte {
	idx := newLineIndex(content)
	if b.StartLine < 1 || b.StartLine > len(idx.starts) || b.EndLine < b.StartLine {
		return nil
	}
	start := idx.starts[b.StartLine-1] + b.StartColumn
	var end int
	if b.EndLine > len(idx.starts) {
		end = len(content)
	} else {
		end = idx.starts[b.EndLine-1] + b.EndColumn
	}
	if start < 0 || start > len(content) {
		return nil
	}
	if end > len(content) {
		end = len(content)
	}
	if end <= start {
		return nil
	}
	return bytes.Clone(content[start:end])
}

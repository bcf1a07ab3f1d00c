package lang

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"

	"lattice/internal/graph"
)

// HTMLAnalyzer is the primary analyzer for markup documents. Besides its own
// components it reports script/style/inline-handler boundaries that drive
// the multi-language orchestrator.
type HTMLAnalyzer struct{}

func NewHTMLAnalyzer() *HTMLAnalyzer { return &HTMLAnalyzer{} }

func (a *HTMLAnalyzer) Language() string { return "html" }

func (a *HTMLAnalyzer) Extensions() []string { return []string{".html", ".htm", ".xhtml"} }

func (a *HTMLAnalyzer) CanParseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm" || ext == ".xhtml"
}

func (a *HTMLAnalyzer) ValidateContent(content []byte) bool {
	trimmed := bytes.TrimSpace(content)
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) ||
		bytes.HasPrefix(lower, []byte("<html")) ||
		bytes.Contains(lower, []byte("</")) && bytes.Contains(lower, []byte("<"))
}

func (a *HTMLAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	tree, err := parseTree(ctx, html.GetLanguage(), content)
	if err != nil {
		return []ParseWarning{{Message: err.Error()}}
	}
	defer tree.Close()
	return syntaxWarnings(tree.RootNode())
}

func (a *HTMLAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	tree, err := parseTree(ctx, html.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := newWalkState(a.Language(), filePath, content)
	file := w.emit(FileComponent(a.Language(), filePath, content))
	w.push(file)
	defer w.pop()

	// Elements carrying an id become addressable sections so embedded
	// fragments and CSS selectors have real components to attach to.
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "element" {
			if tag, id := elementTagAndID(n, content); id != "" {
				sec := &graph.Component{
					Name:     tag + "#" + id,
					Type:     graph.ComponentSection,
					Location: nodeLocation(n),
				}
				sec.Meta("tag", tag)
				sec.Meta("elementId", id)
				w.emit(sec)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return w.finish(), nil
}

// elementTagAndID reads the tag name and id attribute off an element's
// start tag.
func elementTagAndID(n *sitter.Node, content []byte) (tag, id string) {
	start := firstChildOfType(n, "start_tag")
	if start == nil {
		start = firstChildOfType(n, "self_closing_tag")
	}
	if start == nil {
		return "", ""
	}
	for i := 0; i < int(start.NamedChildCount()); i++ {
		c := start.NamedChild(i)
		switch c.Type() {
		case "tag_name":
			tag = c.Content(content)
		case "attribute":
			if attrName(c, content) == "id" {
				id = attrValue(c, content)
			}
		}
	}
	return tag, id
}

func attrName(attr *sitter.Node, content []byte) string {
	if n := firstChildOfType(attr, "attribute_name"); n != nil {
		return strings.ToLower(n.Content(content))
	}
	return ""
}

func attrValue(attr *sitter.Node, content []byte) string {
	if q := firstChildOfType(attr, "quoted_attribute_value"); q != nil {
		if v := firstChildOfType(q, "attribute_value"); v != nil {
			return v.Content(content)
		}
		return strings.Trim(q.Content(content), `"'`)
	}
	if v := firstChildOfType(attr, "attribute_value"); v != nil {
		return v.Content(content)
	}
	return ""
}

func (a *HTMLAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	tree, err := parseTree(ctx, html.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var rels []*graph.Relationship
	fileRef := fileComponentRef(components)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "element" || n.Type() == "script_element" || n.Type() == "style_element" {
			if start := firstChildOfType(n, "start_tag"); start != nil {
				for i := 0; i < int(start.NamedChildCount()); i++ {
					attr := start.NamedChild(i)
					if attr.Type() != "attribute" {
						continue
					}
					name := attrName(attr, content)
					if name != "src" && name != "href" {
						continue
					}
					spec := attrValue(attr, content)
					if spec == "" {
						continue
					}
					target := graph.ExternalRef(spec)
					if !strings.Contains(spec, "://") && !strings.HasPrefix(spec, "//") {
						// Relative asset reference inside the project: the
						// imported name is the target file's base name, which
						// matches that file's root component.
						target = graph.PendingRef(filepath.Base(spec))
					}
					rel := newRelationship(graph.RelImports, fileRef, target, nodeLocation(attr))
					rel.Meta("specifier", spec)
					rel.Meta("attribute", name)
					rels = append(rels, rel)
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return rels, nil
}

// DetectBoundaries reports script elements, style elements, and inline event
// handler attributes as embedded-language spans.
func (a *HTMLAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	tree, err := parseTree(ctx, html.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var bounds []graph.Boundary

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "script_element":
			// Empty elements (src-only scripts) parse with a zero-width raw
			// span; there is nothing to hand to an embedded analyzer.
			if raw := firstChildOfType(n, "raw_text"); raw != nil && raw.StartByte() < raw.EndByte() {
				loc := nodeLocation(raw)
				bounds = append(bounds, graph.Boundary{
					Language:    scriptLanguage(n, content),
					StartLine:   loc.StartLine,
					StartColumn: loc.StartColumn,
					EndLine:     loc.EndLine,
					EndColumn:   loc.EndColumn,
					Scope:       "script_tag",
				})
			}
		case "style_element":
			if raw := firstChildOfType(n, "raw_text"); raw != nil && raw.StartByte() < raw.EndByte() {
				loc := nodeLocation(raw)
				bounds = append(bounds, graph.Boundary{
					Language:    "css",
					StartLine:   loc.StartLine,
					StartColumn: loc.StartColumn,
					EndLine:     loc.EndLine,
					EndColumn:   loc.EndColumn,
					Scope:       "style_tag",
				})
			}
		case "element":
			if start := firstChildOfType(n, "start_tag"); start != nil {
				bounds = append(bounds, inlineHandlerBoundaries(start, content)...)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return bounds, nil
}

// scriptLanguage maps a script tag's type attribute to a language key;
// plain scripts default to javascript.
func scriptLanguage(script *sitter.Node, content []byte) string {
	start := firstChildOfType(script, "start_tag")
	if start == nil {
		return "javascript"
	}
	for i := 0; i < int(start.NamedChildCount()); i++ {
		attr := start.NamedChild(i)
		if attr.Type() != "attribute" || attrName(attr, content) != "type" {
			continue
		}
		switch strings.ToLower(attrValue(attr, content)) {
		case "", "text/javascript", "module", "application/javascript":
			return "javascript"
		case "text/typescript", "application/typescript":
			return "typescript"
		default:
			return "javascript"
		}
	}
	return "javascript"
}

// inlineHandlerBoundaries finds on* attributes whose values are javascript.
func inlineHandlerBoundaries(startTag *sitter.Node, content []byte) []graph.Boundary {
	var bounds []graph.Boundary
	for i := 0; i < int(startTag.NamedChildCount()); i++ {
		attr := startTag.NamedChild(i)
		if attr.Type() != "attribute" {
			continue
		}
		name := attrName(attr, content)
		if !strings.HasPrefix(name, "on") || len(name) < 4 {
			continue
		}
		q := firstChildOfType(attr, "quoted_attribute_value")
		if q == nil {
			continue
		}
		v := firstChildOfType(q, "attribute_value")
		if v == nil {
			continue
		}
		loc := nodeLocation(v)
		bounds = append(bounds, graph.Boundary{
			Language:    "javascript",
			StartLine:   loc.StartLine,
			StartColumn: loc.StartColumn,
			EndLine:     loc.EndLine,
			EndColumn:   loc.EndColumn,
			Scope:       "inline_handler",
			Metadata:    map[string]any{"event": name},
		})
	}
	return bounds
}

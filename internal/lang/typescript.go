package lang

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"

	"lattice/internal/graph"
)

// TypeScriptAnalyzer covers the javascript shapes plus interfaces, type
// aliases, enums, and implements clauses.
type TypeScriptAnalyzer struct{}

func NewTypeScriptAnalyzer() *TypeScriptAnalyzer { return &TypeScriptAnalyzer{} }

func (a *TypeScriptAnalyzer) Language() string { return "typescript" }

func (a *TypeScriptAnalyzer) Extensions() []string { return []string{".ts", ".tsx", ".mts", ".cts"} }

func (a *TypeScriptAnalyzer) CanParseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range a.Extensions() {
		if ext == e {
			return true
		}
	}
	return false
}

func (a *TypeScriptAnalyzer) ValidateContent(content []byte) bool {
	for _, marker := range [][]byte{
		[]byte("interface "), []byte(": string"), []byte(": number"),
		[]byte("type "), []byte("enum "), []byte("implements "),
	} {
		if bytes.Contains(content, marker) {
			return true
		}
	}
	return (&JavaScriptAnalyzer{}).ValidateContent(content)
}

func (a *TypeScriptAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	tree, err := parseTree(ctx, ts.GetLanguage(), content)
	if err != nil {
		return []ParseWarning{{Message: err.Error()}}
	}
	defer tree.Close()
	return syntaxWarnings(tree.RootNode())
}

func (a *TypeScriptAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	tree, err := parseTree(ctx, ts.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := newWalkState(a.Language(), filePath, content)
	file := w.emit(FileComponent(a.Language(), filePath, content))
	w.push(file)
	defer w.pop()

	walkTSDeclarations(w, tree.RootNode(), content, false)
	return w.finish(), nil
}

func walkTSDeclarations(w *walkState, n *sitter.Node, content []byte, exported bool) {
	switch n.Type() {
	case "export_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walkTSDeclarations(w, n.NamedChild(i), content, true)
		}
		return

	case "interface_declaration":
		iface := &graph.Component{
			Name:     fieldText(n, "name", content),
			Type:     graph.ComponentInterface,
			Location: nodeLocation(n),
			Code:     n.Content(content),
		}
		if exported {
			iface.Meta("exported", true)
		}
		w.emit(iface)
		return

	case "type_alias_declaration":
		alias := &graph.Component{
			Name:     fieldText(n, "name", content),
			Type:     graph.ComponentClass,
			Location: nodeLocation(n),
			Code:     n.Content(content),
		}
		alias.Meta("kind", "type_alias")
		if exported {
			alias.Meta("exported", true)
		}
		w.emit(alias)
		return

	case "enum_declaration":
		enum := &graph.Component{
			Name:     fieldText(n, "name", content),
			Type:     graph.ComponentEnum,
			Location: nodeLocation(n),
			Code:     n.Content(content),
		}
		if exported {
			enum.Meta("exported", true)
		}
		w.emit(enum)
		return

	case "internal_module", "module":
		// namespace Foo { ... }
		ns := &graph.Component{
			Name:     fieldText(n, "name", content),
			Type:     graph.ComponentNamespace,
			Location: nodeLocation(n),
		}
		if exported {
			ns.Meta("exported", true)
		}
		w.emit(ns)
		w.push(ns)
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				walkTSDeclarations(w, body.NamedChild(i), content, false)
			}
		}
		w.pop()
		return

	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "class", "abstract_class_declaration",
		"lexical_declaration", "variable_declaration":
		walkJSDeclarations(w, n, content, exported)
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkTSDeclarations(w, n.NamedChild(i), content, false)
	}
}

func (a *TypeScriptAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	tree, err := parseTree(ctx, ts.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	rels := jsRelationships(root, content, components)
	rels = append(rels, tsImplementsEdges(root, content, components)...)
	return rels, nil
}

// tsImplementsEdges emits implements relationships from class heritage
// clauses. Targets outside the file stay pending for the resolver.
func tsImplementsEdges(root *sitter.Node, content []byte, components []*graph.Component) []*graph.Relationship {
	var rels []*graph.Relationship
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "implements_clause" {
			className := ""
			if p := n.Parent(); p != nil {
				if pp := p.Parent(); pp != nil {
					className = fieldText(pp, "name", content)
				}
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				iface := n.NamedChild(i).Content(content)
				if iface == "" {
					continue
				}
				rels = append(rels, newRelationship(graph.RelImplements,
					refForName(components, className), refForName(components, iface), nodeLocation(n)))
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return rels
}

func (a *TypeScriptAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	return scanGenericBoundaries(content, a.Language()), nil
}

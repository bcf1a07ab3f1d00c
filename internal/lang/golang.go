package lang

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"lattice/internal/graph"
)

// GoAnalyzer extracts components and relationships from Go source.
type GoAnalyzer struct{}

func NewGoAnalyzer() *GoAnalyzer { return &GoAnalyzer{} }

func (a *GoAnalyzer) Language() string { return "go" }

func (a *GoAnalyzer) Extensions() []string { return []string{".go"} }

func (a *GoAnalyzer) CanParseFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".go")
}

func (a *GoAnalyzer) ValidateContent(content []byte) bool {
	return bytes.Contains(content, []byte("package ")) &&
		(bytes.Contains(content, []byte("func ")) || bytes.Contains(content, []byte("import ")) ||
			bytes.Contains(content, []byte("type ")) || bytes.Contains(content, []byte("var ")))
}

func (a *GoAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	tree, err := parseTree(ctx, golang.GetLanguage(), content)
	if err != nil {
		return []ParseWarning{{Message: err.Error()}}
	}
	defer tree.Close()
	return syntaxWarnings(tree.RootNode())
}

func (a *GoAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	tree, err := parseTree(ctx, golang.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := newWalkState(a.Language(), filePath, content)
	file := w.emit(FileComponent(a.Language(), filePath, content))
	w.push(file)
	defer w.pop()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_clause":
			if name := firstChildOfType(n, "package_identifier"); name != nil {
				pkg := &graph.Component{
					Name:     name.Content(content),
					Type:     graph.ComponentModule,
					Location: nodeLocation(n),
				}
				w.emit(pkg)
			}
		case "function_declaration":
			a.emitFunction(w, n, content)
		case "method_declaration":
			a.emitMethod(w, n, content)
		case "type_declaration":
			a.emitTypes(w, n, content)
		case "const_declaration":
			a.emitValueSpecs(w, n, "const_spec", graph.ComponentConstant, content)
		case "var_declaration":
			a.emitValueSpecs(w, n, "var_spec", graph.ComponentVariable, content)
		}
	}
	return w.finish(), nil
}

func (a *GoAnalyzer) emitFunction(w *walkState, n *sitter.Node, content []byte) {
	name := fieldText(n, "name", content)
	if name == "" {
		return
	}
	fn := &graph.Component{
		Name:     name,
		Type:     graph.ComponentFunction,
		Location: nodeLocation(n),
		Code:     n.Content(content),
	}
	fn.Meta("signature", goSignature(n, content))
	w.emit(fn)
}

func (a *GoAnalyzer) emitMethod(w *walkState, n *sitter.Node, content []byte) {
	name := fieldText(n, "name", content)
	if name == "" {
		return
	}
	m := &graph.Component{
		Name:     name,
		Type:     graph.ComponentMethod,
		Location: nodeLocation(n),
		Code:     n.Content(content),
	}
	if recv := n.ChildByFieldName("receiver"); recv != nil {
		recvType := strings.TrimLeft(recv.Content(content), "(")
		m.Meta("receiver", strings.TrimRight(recvType, ")"))
	}
	m.Meta("signature", goSignature(n, content))
	w.emit(m)
}

func (a *GoAnalyzer) emitTypes(w *walkState, n *sitter.Node, content []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		spec := n.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		name := fieldText(spec, "name", content)
		if name == "" {
			continue
		}
		ctype := graph.ComponentClass
		switch t := spec.ChildByFieldName("type"); {
		case t == nil:
		case t.Type() == "struct_type":
			ctype = graph.ComponentStruct
		case t.Type() == "interface_type":
			ctype = graph.ComponentInterface
		}
		w.emit(&graph.Component{
			Name:     name,
			Type:     ctype,
			Location: nodeLocation(spec),
			Code:     spec.Content(content),
		})
	}
}

func (a *GoAnalyzer) emitValueSpecs(w *walkState, n *sitter.Node, specType, ctype string, content []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		spec := n.NamedChild(i)
		if spec.Type() != specType {
			continue
		}
		if name := spec.ChildByFieldName("name"); name != nil {
			w.emit(&graph.Component{
				Name:     name.Content(content),
				Type:     ctype,
				Location: nodeLocation(spec),
			})
		}
	}
}

// goSignature renders "name(params) results" without the body.
func goSignature(n *sitter.Node, content []byte) string {
	var b strings.Builder
	b.WriteString(fieldText(n, "name", content))
	if p := n.ChildByFieldName("parameters"); p != nil {
		b.WriteString(p.Content(content))
	}
	if r := n.ChildByFieldName("result"); r != nil {
		b.WriteString(" ")
		b.WriteString(r.Content(content))
	}
	return b.String()
}

func (a *GoAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	tree, err := parseTree(ctx, golang.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var rels []*graph.Relationship
	fileRef := fileComponentRef(components)
	root := tree.RootNode()

	// Go import paths always leave the file; they are encoded external and
	// never become resolver candidates.
	var walkImports func(n *sitter.Node)
	walkImports = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			if path := n.ChildByFieldName("path"); path != nil {
				spec := strings.Trim(path.Content(content), "`\"")
				rel := newRelationship(graph.RelImports, fileRef, graph.ExternalRef(spec), nodeLocation(n))
				rel.Meta("specifier", spec)
				rels = append(rels, rel)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walkImports(n.NamedChild(i))
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if c := root.NamedChild(i); c.Type() == "import_declaration" {
			walkImports(c)
		}
	}

	rels = append(rels, callEdges(root, content, components, goCallee)...)
	return rels, nil
}

// goCallee extracts the callee name from a Go call_expression's function
// node. Selector calls report the rightmost identifier with the qualifier
// in metadata.
func goCallee(fn *sitter.Node, content []byte) (name, qualifier string) {
	switch fn.Type() {
	case "identifier":
		return fn.Content(content), ""
	case "selector_expression":
		return fieldText(fn, "field", content), fieldText(fn, "operand", content)
	}
	return "", ""
}

func (a *GoAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	return scanGenericBoundaries(content, a.Language()), nil
}

package lang

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"lattice/internal/graph"
)

// JavaScriptAnalyzer extracts components and relationships from JavaScript
// source, including embedded-fragment virtual documents sliced out of HTML.
type JavaScriptAnalyzer struct{}

func NewJavaScriptAnalyzer() *JavaScriptAnalyzer { return &JavaScriptAnalyzer{} }

func (a *JavaScriptAnalyzer) Language() string { return "javascript" }

func (a *JavaScriptAnalyzer) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

func (a *JavaScriptAnalyzer) CanParseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range a.Extensions() {
		if ext == e {
			return true
		}
	}
	return false
}

func (a *JavaScriptAnalyzer) ValidateContent(content []byte) bool {
	for _, marker := range [][]byte{
		[]byte("function "), []byte("=>"), []byte("const "), []byte("let "),
		[]byte("var "), []byte("import "), []byte("require("),
	} {
		if bytes.Contains(content, marker) {
			return true
		}
	}
	return false
}

func (a *JavaScriptAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	tree, err := parseTree(ctx, javascript.GetLanguage(), content)
	if err != nil {
		return []ParseWarning{{Message: err.Error()}}
	}
	defer tree.Close()
	return syntaxWarnings(tree.RootNode())
}

func (a *JavaScriptAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	tree, err := parseTree(ctx, javascript.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := newWalkState(a.Language(), filePath, content)
	file := w.emit(FileComponent(a.Language(), filePath, content))
	w.push(file)
	defer w.pop()

	walkJSDeclarations(w, tree.RootNode(), content, false)
	return w.finish(), nil
}

// walkJSDeclarations handles the declaration shapes shared by javascript and
// typescript. exported marks declarations wrapped in an export statement.
func walkJSDeclarations(w *walkState, n *sitter.Node, content []byte, exported bool) {
	switch n.Type() {
	case "export_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walkJSDeclarations(w, n.NamedChild(i), content, true)
		}
		return

	case "function_declaration", "generator_function_declaration", "function_signature":
		if name := fieldText(n, "name", content); name != "" {
			fn := &graph.Component{
				Name:     name,
				Type:     graph.ComponentFunction,
				Location: nodeLocation(n),
				Code:     n.Content(content),
			}
			fn.Meta("signature", jsSignature(n, content))
			if exported {
				fn.Meta("exported", true)
			}
			w.emit(fn)
			w.push(fn)
			if body := n.ChildByFieldName("body"); body != nil {
				walkJSChildren(w, body, content)
			}
			w.pop()
		}
		return

	case "class_declaration", "class":
		walkJSClass(w, n, content, exported)
		return

	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := fieldText(decl, "name", content)
			if name == "" {
				continue
			}
			ctype := graph.ComponentVariable
			value := decl.ChildByFieldName("value")
			if value != nil && (value.Type() == "arrow_function" || value.Type() == "function_expression" || value.Type() == "function") {
				ctype = graph.ComponentFunction
			}
			c := &graph.Component{
				Name:     name,
				Type:     ctype,
				Location: nodeLocation(decl),
				Code:     decl.Content(content),
			}
			if exported {
				c.Meta("exported", true)
			}
			w.emit(c)
			if ctype == graph.ComponentFunction && value != nil {
				w.push(c)
				if body := value.ChildByFieldName("body"); body != nil {
					walkJSChildren(w, body, content)
				}
				w.pop()
			}
		}
		return
	}

	walkJSChildren(w, n, content)
}

func walkJSChildren(w *walkState, n *sitter.Node, content []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkJSDeclarations(w, n.NamedChild(i), content, false)
	}
}

func walkJSClass(w *walkState, n *sitter.Node, content []byte, exported bool) {
	name := fieldText(n, "name", content)
	if name == "" {
		name = "anonymous"
	}
	cls := &graph.Component{
		Name:     name,
		Type:     graph.ComponentClass,
		Location: nodeLocation(n),
		Code:     n.Content(content),
	}
	if heritage := firstChildOfType(n, "class_heritage"); heritage != nil {
		if base := heritageBase(heritage, content); base != "" {
			cls.Meta("extends", base)
		}
	}
	if exported {
		cls.Meta("exported", true)
	}
	w.emit(cls)
	w.push(cls)
	defer w.pop()

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition":
			if mname := fieldText(member, "name", content); mname != "" {
				m := &graph.Component{
					Name:     mname,
					Type:     graph.ComponentMethod,
					Location: nodeLocation(member),
					Code:     member.Content(content),
				}
				m.Meta("signature", jsSignature(member, content))
				w.emit(m)
			}
		case "field_definition", "public_field_definition":
			if fname := fieldText(member, "property", content); fname != "" {
				w.emit(&graph.Component{
					Name:     fname,
					Type:     graph.ComponentProperty,
					Location: nodeLocation(member),
				})
			}
		}
	}
}

// heritageBase extracts the superclass expression from a class_heritage
// node. The typescript grammar nests an extends_clause next to any
// implements_clause; the javascript grammar puts "extends X" directly in
// the heritage node.
func heritageBase(heritage *sitter.Node, content []byte) string {
	src := heritage.Content(content)
	if ec := firstChildOfType(heritage, "extends_clause"); ec != nil {
		if v := ec.ChildByFieldName("value"); v != nil {
			return v.Content(content)
		}
		src = ec.Content(content)
	}
	return strings.TrimSpace(strings.TrimPrefix(src, "extends"))
}

func jsSignature(n *sitter.Node, content []byte) string {
	var b strings.Builder
	b.WriteString(fieldText(n, "name", content))
	if p := n.ChildByFieldName("parameters"); p != nil {
		b.WriteString(p.Content(content))
	}
	if r := n.ChildByFieldName("return_type"); r != nil {
		b.WriteString(r.Content(content))
	}
	return b.String()
}

func (a *JavaScriptAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	tree, err := parseTree(ctx, javascript.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return jsRelationships(tree.RootNode(), content, components), nil
}

// jsRelationships extracts imports, exports, extends edges, and call edges.
// Shared by the javascript and typescript analyzers.
func jsRelationships(root *sitter.Node, content []byte, components []*graph.Component) []*graph.Relationship {
	var rels []*graph.Relationship
	fileRef := fileComponentRef(components)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			rels = append(rels, jsImportEdges(n, content, fileRef)...)
		case "export_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				decl := n.NamedChild(i)
				if name := fieldText(decl, "name", content); name != "" {
					rels = append(rels, newRelationship(graph.RelExports, fileRef, refForName(components, name), nodeLocation(n)))
				}
			}
		case "class_declaration", "class":
			if heritage := firstChildOfType(n, "class_heritage"); heritage != nil {
				if base := heritageBase(heritage, content); base != "" {
					name := fieldText(n, "name", content)
					rels = append(rels, newRelationship(graph.RelExtends, refForName(components, name), refForName(components, base), nodeLocation(heritage)))
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	rels = append(rels, callEdges(root, content, components, jsCallee)...)
	return rels
}

// jsImportEdges emits one relationship per imported symbol. Relative
// specifiers stay in the project and become pending refs on the imported
// name; bare specifiers leave the project and are encoded external. Either
// way the unresolved endpoint is kept — never dropped.
func jsImportEdges(n *sitter.Node, content []byte, fileRef graph.Ref) []*graph.Relationship {
	source := strings.Trim(fieldText(n, "source", content), "'\"`")
	if source == "" {
		return nil
	}
	relative := strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../")

	var names []string
	if clause := firstChildOfType(n, "import_clause"); clause != nil {
		var collect func(c *sitter.Node)
		collect = func(c *sitter.Node) {
			switch c.Type() {
			case "identifier":
				names = append(names, c.Content(content))
			case "import_specifier":
				if name := fieldText(c, "name", content); name != "" {
					names = append(names, name)
				}
				return
			case "namespace_import":
				// import * as x — the module itself is the target.
				return
			}
			for i := 0; i < int(c.NamedChildCount()); i++ {
				collect(c.NamedChild(i))
			}
		}
		collect(clause)
	}

	loc := nodeLocation(n)
	target := func(name string) graph.Ref {
		if relative {
			return graph.PendingRef(name)
		}
		return graph.ExternalRef(source)
	}

	var rels []*graph.Relationship
	if len(names) == 0 {
		// Side-effect or namespace import: one edge for the module itself.
		t := graph.ExternalRef(source)
		if relative {
			t = graph.PendingRef(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
		}
		rel := newRelationship(graph.RelImports, fileRef, t, loc)
		rel.Meta("specifier", source)
		return append(rels, rel)
	}
	for _, name := range names {
		rel := newRelationship(graph.RelImports, fileRef, target(name), loc)
		rel.Meta("specifier", source)
		rel.Meta("importedName", name)
		rels = append(rels, rel)
	}
	return rels
}

func jsCallee(fn *sitter.Node, content []byte) (name, qualifier string) {
	switch fn.Type() {
	case "identifier":
		return fn.Content(content), ""
	case "member_expression":
		return fieldText(fn, "property", content), fieldText(fn, "object", content)
	}
	return "", ""
}

func (a *JavaScriptAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	return scanGenericBoundaries(content, a.Language()), nil
}

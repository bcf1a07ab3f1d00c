package lang

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"lattice/internal/graph"
)

// PythonAnalyzer extracts classes, functions, methods, module-level
// assignments, imports, and call edges from Python source.
type PythonAnalyzer struct{}

func NewPythonAnalyzer() *PythonAnalyzer { return &PythonAnalyzer{} }

func (a *PythonAnalyzer) Language() string { return "python" }

func (a *PythonAnalyzer) Extensions() []string { return []string{".py", ".pyi"} }

func (a *PythonAnalyzer) CanParseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".py" || ext == ".pyi"
}

func (a *PythonAnalyzer) ValidateContent(content []byte) bool {
	for _, marker := range [][]byte{
		[]byte("def "), []byte("class "), []byte("import "), []byte("from "),
	} {
		if bytes.Contains(content, marker) {
			return true
		}
	}
	return false
}

func (a *PythonAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	tree, err := parseTree(ctx, python.GetLanguage(), content)
	if err != nil {
		return []ParseWarning{{Message: err.Error()}}
	}
	defer tree.Close()
	return syntaxWarnings(tree.RootNode())
}

func (a *PythonAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	tree, err := parseTree(ctx, python.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := newWalkState(a.Language(), filePath, content)
	file := w.emit(FileComponent(a.Language(), filePath, content))
	w.push(file)
	defer w.pop()

	a.walk(w, tree.RootNode(), content, false)
	return w.finish(), nil
}

func (a *PythonAnalyzer) walk(w *walkState, n *sitter.Node, content []byte, insideClass bool) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil {
				a.emitDefinition(w, def, content, insideClass)
			}
		case "class_definition", "function_definition":
			a.emitDefinition(w, child, content, insideClass)
		case "expression_statement":
			// Module-level assignments become variables; UPPER_CASE names
			// are treated as constants by convention.
			if !insideClass && len(w.parents) == 1 {
				a.emitAssignment(w, child, content)
			}
		}
	}
}

func (a *PythonAnalyzer) emitDefinition(w *walkState, n *sitter.Node, content []byte, insideClass bool) {
	name := fieldText(n, "name", content)
	if name == "" {
		return
	}
	switch n.Type() {
	case "class_definition":
		cls := &graph.Component{
			Name:     name,
			Type:     graph.ComponentClass,
			Location: nodeLocation(n),
			Code:     n.Content(content),
		}
		if supers := n.ChildByFieldName("superclasses"); supers != nil {
			var bases []string
			for i := 0; i < int(supers.NamedChildCount()); i++ {
				bases = append(bases, supers.NamedChild(i).Content(content))
			}
			if len(bases) > 0 {
				cls.Meta("extends", strings.Join(bases, ","))
			}
		}
		w.emit(cls)
		w.push(cls)
		if body := n.ChildByFieldName("body"); body != nil {
			a.walk(w, body, content, true)
		}
		w.pop()

	case "function_definition":
		ctype := graph.ComponentFunction
		if insideClass {
			ctype = graph.ComponentMethod
		}
		fn := &graph.Component{
			Name:     name,
			Type:     ctype,
			Location: nodeLocation(n),
			Code:     n.Content(content),
		}
		if params := n.ChildByFieldName("parameters"); params != nil {
			fn.Meta("signature", name+params.Content(content))
		}
		w.emit(fn)
		w.push(fn)
		if body := n.ChildByFieldName("body"); body != nil {
			a.walk(w, body, content, false)
		}
		w.pop()
	}
}

func (a *PythonAnalyzer) emitAssignment(w *walkState, stmt *sitter.Node, content []byte) {
	assign := firstChildOfType(stmt, "assignment")
	if assign == nil {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := left.Content(content)
	ctype := graph.ComponentVariable
	if name == strings.ToUpper(name) && strings.ContainsAny(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		ctype = graph.ComponentConstant
	}
	w.emit(&graph.Component{
		Name:     name,
		Type:     ctype,
		Location: nodeLocation(assign),
	})
}

func (a *PythonAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	tree, err := parseTree(ctx, python.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var rels []*graph.Relationship
	fileRef := fileComponentRef(components)
	root := tree.RootNode()

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				mod := n.NamedChild(i)
				spec := mod.Content(content)
				if mod.Type() == "aliased_import" {
					spec = fieldText(mod, "name", content)
				}
				if spec == "" {
					continue
				}
				rel := newRelationship(graph.RelImports, fileRef, graph.ExternalRef(spec), nodeLocation(n))
				rel.Meta("specifier", spec)
				rels = append(rels, rel)
			}
		case "import_from_statement":
			module := fieldText(n, "module_name", content)
			relative := strings.HasPrefix(module, ".")
			for i := 0; i < int(n.NamedChildCount()); i++ {
				nameNode := n.NamedChild(i)
				if nameNode.Type() != "dotted_name" && nameNode.Type() != "aliased_import" {
					continue
				}
				name := nameNode.Content(content)
				if nameNode.Type() == "aliased_import" {
					name = fieldText(nameNode, "name", content)
				}
				if name == module || name == "" {
					continue
				}
				target := graph.ExternalRef(module + "." + name)
				if relative {
					target = graph.PendingRef(name)
				}
				rel := newRelationship(graph.RelImports, fileRef, target, nodeLocation(n))
				rel.Meta("specifier", module)
				rel.Meta("importedName", name)
				rels = append(rels, rel)
			}
		case "class_definition":
			if supers := n.ChildByFieldName("superclasses"); supers != nil {
				clsName := fieldText(n, "name", content)
				for i := 0; i < int(supers.NamedChildCount()); i++ {
					base := supers.NamedChild(i).Content(content)
					if base == "" || base == "object" {
						continue
					}
					rels = append(rels, newRelationship(graph.RelExtends,
						refForName(components, clsName), refForName(components, base), nodeLocation(supers)))
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)

	rels = append(rels, callEdges(root, content, components, pyCallee)...)
	return rels, nil
}

func pyCallee(fn *sitter.Node, content []byte) (name, qualifier string) {
	switch fn.Type() {
	case "identifier":
		return fn.Content(content), ""
	case "attribute":
		return fieldText(fn, "attribute", content), fieldText(fn, "object", content)
	}
	return "", ""
}

func (a *PythonAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	return scanGenericBoundaries(content, a.Language()), nil
}

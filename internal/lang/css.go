package lang

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"

	"lattice/internal/graph"
)

// CSSAnalyzer extracts rule components per selector and @import edges.
type CSSAnalyzer struct{}

func NewCSSAnalyzer() *CSSAnalyzer { return &CSSAnalyzer{} }

func (a *CSSAnalyzer) Language() string { return "css" }

func (a *CSSAnalyzer) Extensions() []string { return []string{".css"} }

func (a *CSSAnalyzer) CanParseFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".css")
}

func (a *CSSAnalyzer) ValidateContent(content []byte) bool {
	return bytes.Contains(content, []byte("{")) && bytes.Contains(content, []byte(":")) &&
		bytes.Contains(content, []byte("}"))
}

func (a *CSSAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	tree, err := parseTree(ctx, css.GetLanguage(), content)
	if err != nil {
		return []ParseWarning{{Message: err.Error()}}
	}
	defer tree.Close()
	return syntaxWarnings(tree.RootNode())
}

func (a *CSSAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	tree, err := parseTree(ctx, css.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := newWalkState(a.Language(), filePath, content)
	file := w.emit(FileComponent(a.Language(), filePath, content))
	w.push(file)
	defer w.pop()

	a.walkRules(w, tree.RootNode(), content)
	return w.finish(), nil
}

func (a *CSSAnalyzer) walkRules(w *walkState, n *sitter.Node, content []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "rule_set":
			selectors := firstChildOfType(child, "selectors")
			name := "rule"
			if selectors != nil {
				name = strings.Join(strings.Fields(selectors.Content(content)), " ")
			}
			rule := &graph.Component{
				Name:     name,
				Type:     graph.ComponentRule,
				Location: nodeLocation(child),
				Code:     child.Content(content),
			}
			rule.Meta("selector", name)
			w.emit(rule)
		case "media_statement", "supports_statement", "keyframes_statement":
			name := child.Type()
			if q := firstChildOfType(child, "feature_query"); q != nil {
				name = q.Content(content)
			} else if kn := firstChildOfType(child, "keyframes_name"); kn != nil {
				name = kn.Content(content)
			}
			sec := &graph.Component{
				Name:     name,
				Type:     graph.ComponentSection,
				Location: nodeLocation(child),
			}
			w.emit(sec)
			w.push(sec)
			if block := firstChildOfType(child, "block"); block != nil {
				a.walkRules(w, block, content)
			} else {
				a.walkRules(w, child, content)
			}
			w.pop()
		}
	}
}

func (a *CSSAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	tree, err := parseTree(ctx, css.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var rels []*graph.Relationship
	fileRef := fileComponentRef(components)
	root := tree.RootNode()

	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "import_statement" {
			continue
		}
		spec := strings.Trim(strings.TrimSpace(strings.TrimPrefix(n.Content(content), "@import")), `;"'`)
		spec = strings.Trim(strings.TrimSuffix(strings.TrimPrefix(spec, "url("), ")"), `"'`)
		if spec == "" {
			continue
		}
		target := graph.ExternalRef(spec)
		if !strings.Contains(spec, "://") {
			target = graph.PendingRef(filepath.Base(spec))
		}
		rel := newRelationship(graph.RelImports, fileRef, target, nodeLocation(n))
		rel.Meta("specifier", spec)
		rels = append(rels, rel)
	}
	return rels, nil
}

func (a *CSSAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	return nil, nil
}

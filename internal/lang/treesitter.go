package lang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"lattice/internal/graph"
)

// parseTree parses content with a fresh tree-sitter parser. Each call builds
// its own parser so analyzers stay safe for concurrent use. The caller must
// Close the returned tree.
func parseTree(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	return tree, nil
}

// nodeLocation converts a node's points into the graph coordinate space:
// 1-based lines, 0-based columns.
func nodeLocation(n *sitter.Node) graph.Location {
	if n == nil {
		return graph.DefaultLocation()
	}
	start := n.StartPoint()
	end := n.EndPoint()
	return graph.Location{
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column),
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column),
	}
}

// fieldText returns the text of a named field child, or "".
func fieldText(n *sitter.Node, field string, content []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(content)
}

// firstChildOfType returns the first named child with the given type, or nil.
func firstChildOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == nodeType {
			return c
		}
	}
	return nil
}

// syntaxWarnings walks the tree collecting ERROR and missing nodes as parse
// warnings. Best-effort: tree-sitter recovers from most errors, so the tree
// around them is still usable.
func syntaxWarnings(root *sitter.Node) []ParseWarning {
	if root == nil || !root.HasError() {
		return nil
	}
	var warnings []ParseWarning
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "ERROR" || n.IsMissing() {
			loc := nodeLocation(n)
			kind := "syntax error"
			if n.IsMissing() {
				kind = "missing " + n.Type()
			}
			warnings = append(warnings, ParseWarning{
				Message: kind,
				Line:    loc.StartLine,
				Column:  loc.StartColumn,
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if len(warnings) == 0 {
		warnings = append(warnings, ParseWarning{Message: "syntax error"})
	}
	return warnings
}

// walkState is the explicit parent-context stack threaded through a tree
// walk. It is scoped to one invocation and never shared.
type walkState struct {
	filePath   string
	language   string
	content    []byte
	components []*graph.Component
	parents    []*graph.Component // currently-open enclosing components
	parentOf   map[*graph.Component]*graph.Component
}

func newWalkState(language, filePath string, content []byte) *walkState {
	return &walkState{
		filePath: filePath,
		language: language,
		content:  content,
		parentOf: make(map[*graph.Component]*graph.Component),
	}
}

// push opens a component scope; pop closes it. emit records a component and
// wires parent qualified names into metadata so id assignment can
// disambiguate nested same-name symbols.
func (w *walkState) push(c *graph.Component) { w.parents = append(w.parents, c) }

func (w *walkState) pop() { w.parents = w.parents[:len(w.parents)-1] }

func (w *walkState) parent() *graph.Component {
	if len(w.parents) == 0 {
		return nil
	}
	return w.parents[len(w.parents)-1]
}

func (w *walkState) emit(c *graph.Component) *graph.Component {
	c.Language = w.language
	c.FilePath = w.filePath
	if c.Location.IsZero() {
		c.Location = graph.DefaultLocation()
	}
	if p := w.parent(); p != nil {
		parentQ := p.Name
		if v, ok := p.Metadata["qualifiedName"].(string); ok && v != "" {
			parentQ = v
		}
		c.Meta("qualifiedName", graph.QualifiedName(parentQ, c.Name))
		w.parentOf[c] = p
	}
	w.components = append(w.components, c)
	return c
}

// finish assigns deterministic ids and resolves ParentID pointers from the
// open-scope stack bookkeeping done during the walk.
func (w *walkState) finish() []*graph.Component {
	graph.AssignIDs(w.filePath, w.components)
	for c, p := range w.parentOf {
		c.ParentID = p.ID
	}
	return w.components
}

// componentByName finds a same-file component by bare name for direct
// relationship resolution. Returns nil when absent or ambiguous-by-absence;
// callers then fall back to a pending ref.
func componentByName(components []*graph.Component, name string) *graph.Component {
	for _, c := range components {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// refForName resolves a symbol name against same-file components, falling
// back to a pending same-project reference.
func refForName(components []*graph.Component, name string) graph.Ref {
	if c := componentByName(components, name); c != nil && c.ID != "" {
		return graph.ResolvedRef(c.ID)
	}
	return graph.PendingRef(name)
}

// fileComponentRef returns a resolved ref to the file-level root component.
func fileComponentRef(components []*graph.Component) graph.Ref {
	for _, c := range components {
		if c.Type == graph.ComponentFile {
			return graph.ResolvedRef(c.ID)
		}
	}
	if len(components) > 0 {
		return graph.ResolvedRef(components[0].ID)
	}
	return graph.Ref{}
}

// callableTypes are the component types a call edge may originate from.
var callableTypes = map[string]bool{
	graph.ComponentFunction: true,
	graph.ComponentMethod:   true,
}

// callerRef finds the tightest enclosing callable component for a call
// site, falling back to the file root.
func callerRef(components []*graph.Component, loc graph.Location) graph.Ref {
	var best *graph.Component
	for _, c := range components {
		if !callableTypes[c.Type] || !c.Location.Contains(loc) {
			continue
		}
		if best == nil || c.Location.Span() < best.Location.Span() {
			best = c
		}
	}
	if best != nil {
		return graph.ResolvedRef(best.ID)
	}
	return fileComponentRef(components)
}

// calleeExtractor pulls (name, qualifier) out of a call expression's
// function child; empty name means skip.
type calleeExtractor func(fn *sitter.Node, content []byte) (name, qualifier string)

// callEdges walks the tree emitting calls relationships. Same-file callees
// resolve directly; everything else becomes a pending same-project ref —
// extraction never blocks on cross-file knowledge.
func callEdges(root *sitter.Node, content []byte, components []*graph.Component, extract calleeExtractor) []*graph.Relationship {
	var rels []*graph.Relationship
	seen := make(map[string]bool)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" || n.Type() == "call" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				if name, qualifier := extract(fn, content); name != "" {
					loc := nodeLocation(n)
					rel := newRelationship(graph.RelCalls, callerRef(components, loc), refForName(components, name), loc)
					if qualifier != "" {
						rel.Meta("qualifier", qualifier)
					}
					if !seen[rel.ID] {
						seen[rel.ID] = true
						rels = append(rels, rel)
					}
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return rels
}

// newRelationship builds an edge with its deterministic id.
func newRelationship(relType string, source, target graph.Ref, loc graph.Location) *graph.Relationship {
	return &graph.Relationship{
		ID:       graph.RelationshipID(relType, source, target, loc),
		Type:     relType,
		Source:   source,
		Target:   target,
		Location: loc,
	}
}

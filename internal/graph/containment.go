package graph

import "sort"

// DeriveContainment produces contains edges from location nesting. For each
// component without an explicit ParentID, the smallest enclosing span in the
// same file wins; ties are broken by declaration order (earlier declaration
// wins). Components whose analyzer already set ParentID get an edge for that
// parent verbatim. Every analyzer shares this utility instead of rederiving
// nesting itself.
func DeriveContainment(components []*Component) []*Relationship {
	var edges []*Relationship
	for i, c := range components {
		parentID := c.ParentID
		if parentID == "" {
			parentID = enclosingID(components, i)
			c.ParentID = parentID
		}
		if parentID == "" || parentID == c.ID {
			continue
		}
		rel := &Relationship{
			Type:     RelContains,
			Source:   ResolvedRef(parentID),
			Target:   ResolvedRef(c.ID),
			Location: c.Location,
		}
		rel.ID = RelationshipID(rel.Type, rel.Source, rel.Target, rel.Location)
		edges = append(edges, rel)
	}
	return edges
}

// enclosingID finds the smallest component strictly enclosing components[idx].
func enclosingID(components []*Component, idx int) string {
	target := components[idx]
	bestIdx := -1
	for i, cand := range components {
		if i == idx || cand.ID == target.ID {
			continue
		}
		if !cand.Location.Contains(target.Location) {
			continue
		}
		// A same-span candidate only counts as enclosing when it was
		// declared earlier (e.g. a file root sharing the full span).
		if cand.Location == target.Location && i > idx {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		best := components[bestIdx]
		if cand.Location.Span() < best.Location.Span() ||
			(cand.Location.Span() == best.Location.Span() && i < bestIdx) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return ""
	}
	return components[bestIdx].ID
}

// SmallestEnclosing returns the component whose span most tightly encloses
// loc, or nil. Used by the orchestrator to attach embedded fragments to
// their real host component.
func SmallestEnclosing(components []*Component, loc Location) *Component {
	var best *Component
	bestOrder := -1
	for i, c := range components {
		if !c.Location.Contains(loc) {
			continue
		}
		if best == nil || c.Location.Span() < best.Location.Span() ||
			(c.Location.Span() == best.Location.Span() && i < bestOrder) {
			best = c
			bestOrder = i
		}
	}
	return best
}

// SortByDeclaration orders components by start line, then start column, then
// by wider span first so parents precede children at equal starts.
func SortByDeclaration(components []*Component) {
	sort.SliceStable(components, func(i, j int) bool {
		a, b := components[i].Location, components[j].Location
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.StartColumn != b.StartColumn {
			return a.StartColumn < b.StartColumn
		}
		return a.Span() > b.Span()
	})
}

package lang

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"lattice/internal/graph"
)

// Orchestrator executes the multi-language strategies: it runs the primary
// analyzer over the full content, extracts embedded spans as virtual
// documents, re-invokes the matching analyzers in isolation, remaps every
// emitted location into the host file's coordinate space, and synthesizes
// containment and cross-language edges.
type Orchestrator struct {
	registry *Registry
	invoker  *Invoker
	logger   *slog.Logger
}

func NewOrchestrator(registry *Registry, invoker *Invoker, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: registry, invoker: invoker, logger: logger}
}

// Analyze runs a routed decision to completion. Fast-path decisions run the
// primary analyzer only; everything else probes boundaries, and
// multi-language decisions orchestrate the embedded fragments.
func (o *Orchestrator) Analyze(ctx context.Context, dec Decision, content []byte, filePath string) *Result {
	primaryLang := dec.Primary
	if primaryLang == "" {
		primaryLang = "text"
	}

	primary, ok := o.registry.ForLanguage(dec.Primary)
	var res *Result
	if ok {
		res = o.invoker.Analyze(ctx, primary, content, filePath)
	} else {
		// No primary analyzer: degrade to a bare file-level component. The
		// boundary scan below still runs, so embedded spans are analyzed or
		// recorded rather than silently dropped with the host language.
		res = &Result{}
		res.Warnings = append(res.Warnings, ParseWarning{
			Message: fmt.Sprintf("no analyzer registered for language %q", dec.Primary),
		})
		res.Components = []*graph.Component{FileComponent(primaryLang, filePath, content)}
	}
	if dec.Kind == RouteFastPath {
		return res
	}

	boundaries := o.collectBoundaries(ctx, primary, primaryLang, content, filePath, res)
	if len(boundaries) == 0 {
		return res
	}
	o.processBoundaries(ctx, res, boundaries, content, filePath, primaryLang)

	// The fixed, additive matcher library runs over the combined,
	// offset-adjusted set. Unmatched patterns produce no edge.
	for _, match := range crossLanguageMatchers {
		res.Relationships = append(res.Relationships, match(res)...)
	}
	return res
}

// collectBoundaries unions analyzer-provided boundaries with the generic
// pattern library, drops spans in the primary language itself, and orders
// the rest by source position. primary may be nil when no analyzer is
// registered for the host language; the generic scan still applies.
func (o *Orchestrator) collectBoundaries(ctx context.Context, primary Analyzer, primaryLang string, content []byte, filePath string, res *Result) []graph.Boundary {
	var bounds []graph.Boundary
	if primary != nil {
		var warns []ParseWarning
		bounds, warns = o.invoker.Boundaries(ctx, primary, content, filePath)
		res.Warnings = append(res.Warnings, warns...)
	}
	bounds = append(bounds, scanGenericBoundaries(content, primaryLang)...)

	kept := bounds[:0]
	for _, b := range bounds {
		if b.Language != primaryLang {
			kept = append(kept, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].StartLine != kept[j].StartLine {
			return kept[i].StartLine < kept[j].StartLine
		}
		return kept[i].StartColumn < kept[j].StartColumn
	})
	return dedupeBoundaries(kept)
}

// processBoundaries handles each boundary in source order. Overlap policy:
// a boundary fully contained in an already-processed one is skipped, so the
// outermost span wins and no text is parsed twice.
func (o *Orchestrator) processBoundaries(ctx context.Context, res *Result, boundaries []graph.Boundary, content []byte, filePath, primaryLang string) {
	var processed []graph.Location

	for _, b := range boundaries {
		loc := b.Location()
		contained := false
		for _, prev := range processed {
			if prev.Contains(loc) {
				contained = true
				break
			}
		}
		if contained {
			continue
		}
		processed = append(processed, loc)

		analyzer, ok := o.registry.ForLanguage(b.Language)
		if !ok {
			// Graceful degradation: keep the boundary as metadata on the
			// file component, not an error.
			recordUnanalyzedBoundary(res, b)
			continue
		}

		sub := SliceBoundary(content, b)
		if len(sub) == 0 {
			continue
		}

		virtualPath := fmt.Sprintf("%s#%s_%d_%d", filePath, b.Language, b.StartLine, b.EndLine)
		embedded := o.invoker.Analyze(ctx, analyzer, sub, virtualPath)
		res.Warnings = append(res.Warnings, embedded.Warnings...)

		o.mergeEmbedded(res, embedded, b, filePath, sub)
	}
}

// mergeEmbedded remaps an embedded result into the host coordinate space
// and splices it into the host result. The virtual document's root becomes
// a fragment component attached to the smallest enclosing real component.
func (o *Orchestrator) mergeEmbedded(res *Result, embedded *Result, b graph.Boundary, filePath string, sub []byte) {
	offsetLine := b.StartLine - 1
	offsetCol := b.StartColumn

	remap := func(loc graph.Location) graph.Location {
		out := loc
		if out.StartLine == 1 {
			out.StartColumn += offsetCol
		}
		if out.EndLine == 1 {
			out.EndColumn += offsetCol
		}
		out.StartLine += offsetLine
		out.EndLine += offsetLine
		return out
	}

	var fragment *graph.Component
	for _, c := range embedded.Components {
		c.Location = remap(c.Location)
		// Locations are rewritten to the real file; the virtual path never
		// leaks into persisted components.
		c.FilePath = filePath
		if c.Type == graph.ComponentFile && fragment == nil {
			fragment = c
			c.Type = graph.ComponentFragment
			c.Name = fmt.Sprintf("%s_%d_%d", b.Language, b.StartLine, b.EndLine)
			c.Location = b.Location()
			c.Code = string(sub)
			c.Meta("embeddedLanguage", b.Language)
			c.Meta("scope", b.Scope)
		}
	}
	for _, r := range embedded.Relationships {
		if !r.Location.IsZero() {
			r.Location = remap(r.Location)
		}
	}

	// Synthesize containment from the smallest enclosing real component to
	// the fragment, tagged with the embedded language and scope.
	if fragment != nil {
		host := graph.SmallestEnclosing(res.Components, fragment.Location)
		if host == nil && len(res.Components) > 0 {
			host = res.Components[0]
		}
		if host != nil {
			fragment.ParentID = host.ID
			edge := newRelationship(graph.RelContains, graph.ResolvedRef(host.ID), graph.ResolvedRef(fragment.ID), fragment.Location)
			edge.Meta("embeddedLanguage", b.Language)
			edge.Meta("scope", b.Scope)
			res.Relationships = append(res.Relationships, edge)
		}
	}

	res.Components = append(res.Components, embedded.Components...)
	res.Relationships = append(res.Relationships, embedded.Relationships...)
}

// recordUnanalyzedBoundary notes a boundary with no registered analyzer in
// the file component's metadata.
func recordUnanalyzedBoundary(res *Result, b graph.Boundary) {
	if len(res.Components) == 0 {
		return
	}
	file := res.Components[0]
	entry := map[string]any{
		"language":  b.Language,
		"scope":     b.Scope,
		"startLine": b.StartLine,
		"endLine":   b.EndLine,
	}
	existing, _ := file.Metadata["unanalyzedBoundaries"].([]any)
	file.Meta("unanalyzedBoundaries", append(existing, entry))
}

// --- cross-language relationship matchers -----------------------------------

// crossLanguageMatcher inspects the combined, offset-adjusted result and
// emits additional edges. Matchers are additive and side-effect free; an
// unmatched pattern simply produces nothing.
type crossLanguageMatcher func(res *Result) []*graph.Relationship

var crossLanguageMatchers = []crossLanguageMatcher{
	matchTemplateInterpolation,
	matchInlineHandlers,
	matchSelectorTargets,
}

var interpolationRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}|\$\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}`)

// matchTemplateInterpolation links a host-language value interpolated into
// an embedded fragment back to the component that defines it.
func matchTemplateInterpolation(res *Result) []*graph.Relationship {
	var rels []*graph.Relationship
	for _, frag := range res.Components {
		if frag.Type != graph.ComponentFragment || frag.Code == "" {
			continue
		}
		for _, m := range interpolationRe.FindAllStringSubmatch(frag.Code, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			name = strings.Split(name, ".")[0]
			def := componentByName(res.Components, name)
			if def == nil || def.ID == frag.ID {
				continue
			}
			rel := newRelationship(graph.RelReferences, graph.ResolvedRef(frag.ID), graph.ResolvedRef(def.ID), frag.Location)
			rel.Meta("crossLanguage", true)
			rel.Meta("pattern", "interpolation")
			rels = append(rels, rel)
		}
	}
	return rels
}

var handlerCallRe = regexp.MustCompile(`^\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)

// matchInlineHandlers links inline event-handler fragments to the function
// they invoke, wherever that function is defined in the combined set.
func matchInlineHandlers(res *Result) []*graph.Relationship {
	var rels []*graph.Relationship
	for _, frag := range res.Components {
		if frag.Type != graph.ComponentFragment {
			continue
		}
		if scope, _ := frag.Metadata["scope"].(string); scope != "inline_handler" {
			continue
		}
		m := handlerCallRe.FindStringSubmatch(frag.Code)
		if m == nil {
			continue
		}
		rel := newRelationship(graph.RelReferences, graph.ResolvedRef(frag.ID), refForName(res.Components, m[1]), frag.Location)
		rel.Meta("crossLanguage", true)
		rel.Meta("pattern", "inline_handler")
		rels = append(rels, rel)
	}
	return rels
}

// matchSelectorTargets links CSS id-selector rules to the markup sections
// carrying those ids.
func matchSelectorTargets(res *Result) []*graph.Relationship {
	sections := make(map[string]*graph.Component)
	for _, c := range res.Components {
		if c.Type == graph.ComponentSection {
			if id, _ := c.Metadata["elementId"].(string); id != "" {
				sections[id] = c
			}
		}
	}
	if len(sections) == 0 {
		return nil
	}
	var rels []*graph.Relationship
	for _, c := range res.Components {
		if c.Type != graph.ComponentRule {
			continue
		}
		selector, _ := c.Metadata["selector"].(string)
		for id, sec := range sections {
			if !strings.Contains(selector, "#"+id) {
				continue
			}
			rel := newRelationship(graph.RelRenders, graph.ResolvedRef(c.ID), graph.ResolvedRef(sec.ID), c.Location)
			rel.Meta("crossLanguage", true)
			rel.Meta("pattern", "id_selector")
			rels = append(rels, rel)
		}
	}
	return rels
}

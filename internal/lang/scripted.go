package lang

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"lattice/internal/graph"
)

// ScriptedAnalyzer runs a user-supplied Risor script behind the standard
// Analyzer contract, so languages without a built-in tree-sitter analyzer
// can still be indexed. Scripts receive the document as globals and call
// emit_component / emit_relationship / emit_boundary host functions; the
// collected values flow through the same pipeline as native analyzers.
type ScriptedAnalyzer struct {
	language   string
	extensions []string
	source     string
}

// extensionsDirective lets a script declare the extensions it claims:
//
//	// extensions: .ini, .cfg
var extensionsDirective = regexp.MustCompile(`(?m)^(?://|#)\s*extensions:\s*(.+)$`)

// NewScriptedAnalyzer builds an analyzer for language from Risor source.
// Extensions come from the script's extensions directive, defaulting to
// ".<language>".
func NewScriptedAnalyzer(language, source string) *ScriptedAnalyzer {
	exts := []string{"." + language}
	if m := extensionsDirective.FindStringSubmatch(source); m != nil {
		exts = nil
		for _, e := range strings.Split(m[1], ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, strings.ToLower(e))
		}
	}
	return &ScriptedAnalyzer{language: language, extensions: exts, source: source}
}

// LoadScriptedAnalyzers walks fsys for analyze/<language>.risor scripts and
// returns an analyzer per script.
func LoadScriptedAnalyzers(fsys fs.FS) ([]*ScriptedAnalyzer, error) {
	var analyzers []*ScriptedAnalyzer
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".risor") {
			return nil
		}
		src, readErr := fs.ReadFile(fsys, path)
		if readErr != nil {
			return fmt.Errorf("loading script %s: %w", path, readErr)
		}
		lang := strings.TrimSuffix(filepath.Base(path), ".risor")
		analyzers = append(analyzers, NewScriptedAnalyzer(lang, string(src)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return analyzers, nil
}

func (a *ScriptedAnalyzer) Language() string { return a.language }

func (a *ScriptedAnalyzer) Extensions() []string { return a.extensions }

func (a *ScriptedAnalyzer) CanParseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range a.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateContent always declines: scripts have no cheap sniff, so routing
// ties never fall to a scripted analyzer.
func (a *ScriptedAnalyzer) ValidateContent(content []byte) bool { return false }

func (a *ScriptedAnalyzer) ValidateSyntax(ctx context.Context, content []byte) []ParseWarning {
	return nil
}

func (a *ScriptedAnalyzer) DetectComponents(ctx context.Context, content []byte, filePath string) ([]*graph.Component, error) {
	w := newWalkState(a.language, filePath, content)
	file := w.emit(FileComponent(a.language, filePath, content))
	w.push(file)

	byName := map[string]*graph.Component{}
	emit := object.NewBuiltin("emit_component", func(ctx context.Context, args ...object.Object) object.Object {
		m, errObj := scriptMap("emit_component", args)
		if errObj != nil {
			return errObj
		}
		c := &graph.Component{
			Name:     mapString(m, "name"),
			Type:     mapString(m, "type"),
			Location: mapLocation(m),
			Code:     mapString(m, "code"),
		}
		if c.Name == "" || c.Type == "" {
			return object.Errorf("emit_component: name and type are required")
		}
		if parent := mapString(m, "parent"); parent != "" {
			if p, ok := byName[parent]; ok {
				w.push(p)
				w.emit(c)
				w.pop()
				byName[c.Name] = c
				return object.Nil
			}
		}
		w.emit(c)
		byName[c.Name] = c
		return object.Nil
	})

	if err := a.eval(ctx, content, filePath, map[string]any{"emit_component": emit}); err != nil {
		return nil, err
	}
	w.pop()
	return w.finish(), nil
}

func (a *ScriptedAnalyzer) DetectRelationships(ctx context.Context, content []byte, filePath string, components []*graph.Component) ([]*graph.Relationship, error) {
	var rels []*graph.Relationship
	emit := object.NewBuiltin("emit_relationship", func(ctx context.Context, args ...object.Object) object.Object {
		m, errObj := scriptMap("emit_relationship", args)
		if errObj != nil {
			return errObj
		}
		relType := mapString(m, "type")
		if relType == "" {
			return object.Errorf("emit_relationship: type is required")
		}
		source := refForName(components, mapString(m, "source"))
		if mapString(m, "source") == "" {
			source = fileComponentRef(components)
		}
		var target graph.Ref
		switch {
		case mapString(m, "external") != "":
			target = graph.ExternalRef(mapString(m, "external"))
		case mapString(m, "target") != "":
			target = refForName(components, mapString(m, "target"))
		default:
			return object.Errorf("emit_relationship: target or external is required")
		}
		rels = append(rels, newRelationship(relType, source, target, mapLocation(m)))
		return object.Nil
	})

	if err := a.eval(ctx, content, filePath, map[string]any{"emit_relationship": emit}); err != nil {
		return nil, err
	}
	return rels, nil
}

func (a *ScriptedAnalyzer) DetectBoundaries(ctx context.Context, content []byte, filePath string) ([]graph.Boundary, error) {
	var bounds []graph.Boundary
	emit := object.NewBuiltin("emit_boundary", func(ctx context.Context, args ...object.Object) object.Object {
		m, errObj := scriptMap("emit_boundary", args)
		if errObj != nil {
			return errObj
		}
		loc := mapLocation(m)
		bounds = append(bounds, graph.Boundary{
			Language:    mapString(m, "language"),
			StartLine:   loc.StartLine,
			StartColumn: loc.StartColumn,
			EndLine:     loc.EndLine,
			EndColumn:   loc.EndColumn,
			Scope:       mapString(m, "scope"),
		})
		return object.Nil
	})
	if err := a.eval(ctx, content, filePath, map[string]any{"emit_boundary": emit}); err != nil {
		return nil, err
	}
	return append(bounds, scanGenericBoundaries(content, a.language)...), nil
}

// eval runs the script with the standard globals plus the stage's emit
// function. Emit functions belonging to other stages are bound to no-ops,
// so one script serves all three stages and only the active stage's calls
// take effect.
func (a *ScriptedAnalyzer) eval(ctx context.Context, content []byte, filePath string, extras map[string]any) error {
	noop := object.NewBuiltin("noop", func(ctx context.Context, args ...object.Object) object.Object {
		return object.Nil
	})
	globals := map[string]any{
		"content":           string(content),
		"file_path":         filePath,
		"language":          a.language,
		"emit_component":    noop,
		"emit_relationship": noop,
		"emit_boundary":     noop,
	}
	for name, val := range extras {
		globals[name] = val
	}
	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if _, err := risor.Eval(ctx, a.source, opts...); err != nil {
		return fmt.Errorf("scripted analyzer %s: %w", a.language, err)
	}
	return nil
}

// scriptMap validates the single-map argument convention shared by the
// emit host functions.
func scriptMap(fn string, args []object.Object) (map[string]object.Object, object.Object) {
	if len(args) != 1 {
		return nil, object.NewArgsError(fn, 1, len(args))
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, object.Errorf("%s: argument must be a map, got %s", fn, args[0].Type())
	}
	return m.Value(), nil
}

func mapString(m map[string]object.Object, key string) string {
	if v, ok := m[key].(*object.String); ok {
		return v.Value()
	}
	return ""
}

func mapInt(m map[string]object.Object, key string) int {
	if v, ok := m[key].(*object.Int); ok {
		return int(v.Value())
	}
	return 0
}

func mapLocation(m map[string]object.Object) graph.Location {
	loc := graph.Location{
		StartLine:   mapInt(m, "start_line"),
		EndLine:     mapInt(m, "end_line"),
		StartColumn: mapInt(m, "start_column"),
		EndColumn:   mapInt(m, "end_column"),
	}
	if loc.IsZero() {
		return graph.DefaultLocation()
	}
	if loc.EndLine < loc.StartLine {
		loc.EndLine = loc.StartLine
	}
	return loc
}

package lang

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Route strategies, cheapest first. FastPath runs one analyzer with no
// boundary probing; MultiLanguage runs the full orchestrator;
// SingleWithScan runs one analyzer but still probes for boundaries to catch
// one-off embeds.
type RouteKind int

const (
	RouteFastPath RouteKind = iota
	RouteMultiLanguage
	RouteSingleWithScan
)

func (k RouteKind) String() string {
	switch k {
	case RouteFastPath:
		return "fast-path"
	case RouteMultiLanguage:
		return "multi-language"
	default:
		return "single-with-scan"
	}
}

// Decision is the router's output for one file.
type Decision struct {
	Kind             RouteKind
	Primary          string   // language key of the primary analyzer
	ExpectedEmbedded []string // known composite formats declare their embedded set
}

// compositeFormat is a known multi-language file format: its extension, the
// primary language, the embedded languages to expect, and an indicator
// pattern that must match before the format is trusted.
type compositeFormat struct {
	primary   string
	embedded  []string
	indicator *regexp.Regexp
}

// compositeFormats is the explicit format-knowledge table; it is consulted
// before any generic sniffing because a known format beats a heuristic.
var compositeFormats = map[string]compositeFormat{
	".html":   {primary: "html", embedded: []string{"javascript", "css"}, indicator: regexp.MustCompile(`(?i)<script\b|<style\b|\son\w+\s*=`)},
	".htm":    {primary: "html", embedded: []string{"javascript", "css"}, indicator: regexp.MustCompile(`(?i)<script\b|<style\b|\son\w+\s*=`)},
	".vue":    {primary: "html", embedded: []string{"javascript", "typescript", "css"}, indicator: regexp.MustCompile(`(?i)<template\b|<script\b|<style\b`)},
	".svelte": {primary: "html", embedded: []string{"javascript", "typescript", "css"}, indicator: regexp.MustCompile(`(?i)<script\b|<style\b|\{#(if|each)`)},
	".php":    {primary: "html", embedded: []string{"php", "javascript", "css"}, indicator: regexp.MustCompile(`<\?php|<\?=`)},
	".erb":    {primary: "html", embedded: []string{"ruby", "javascript", "css"}, indicator: regexp.MustCompile(`<%.*?%>`)},
	".md":     {primary: "markdown", embedded: []string{"yaml"}, indicator: regexp.MustCompile(`(?s)\A---\r?\n`)},
}

// pureFormats are extensions whose files are single-language in practice;
// they take the fast path unless template markers appear in the content.
var pureFormats = map[string]string{
	".go":   "go",
	".py":   "python",
	".pyi":  "python",
	".css":  "css",
	".json": "json",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".c":    "c",
	".h":    "c",
}

// Router decides, per file, between the fast single-language path, full
// multi-language orchestration, and single-language-with-boundary-scan.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Decide implements the routing order from cheapest/most-reliable signal to
// most speculative:
//  1. pure-format allowlist with no embedded markers → fast path
//  2. known composite format whose indicator matches → multi-language
//  3. generic embedded markers present → multi-language, primary inferred
//  4. otherwise → single-with-scan
func (r *Router) Decide(path string, content []byte) Decision {
	ext := strings.ToLower(filepath.Ext(path))

	if lang, ok := pureFormats[ext]; ok && !HasEmbeddedMarkers(content) {
		return Decision{Kind: RouteFastPath, Primary: r.usable(lang, path, content)}
	}

	if format, ok := compositeFormats[ext]; ok && format.indicator.Match(content) {
		return Decision{
			Kind:             RouteMultiLanguage,
			Primary:          format.primary,
			ExpectedEmbedded: format.embedded,
		}
	}

	if HasEmbeddedMarkers(content) {
		return Decision{
			Kind:    RouteMultiLanguage,
			Primary: r.inferPrimary(path, content),
		}
	}

	return Decision{Kind: RouteSingleWithScan, Primary: r.inferPrimary(path, content)}
}

// Supported reports whether path's extension is claimed by a registered
// analyzer, the pure-format allowlist, or the composite-format table. Used
// by directory walkers to skip files no route could handle.
func (r *Router) Supported(path string) bool {
	if _, ok := r.registry.ForPath(path); ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := pureFormats[ext]; ok {
		return true
	}
	_, ok := compositeFormats[ext]
	return ok
}

// inferPrimary picks the primary language from the extension, falling back
// to a content sniff across registered analyzers (the ValidateContent
// tie-break), then to the allowlist language for the extension.
func (r *Router) inferPrimary(path string, content []byte) string {
	if a, ok := r.registry.ForPath(path); ok {
		return a.Language()
	}
	for _, lang := range sortedLanguages(r.registry) {
		a, _ := r.registry.ForLanguage(lang)
		if a.ValidateContent(content) {
			return lang
		}
	}
	if lang, ok := pureFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return ""
}

// usable returns lang if an analyzer is registered for it, else the best
// content-based fallback. Keeps the fast path honest when the allowlist
// names a language this build has no analyzer for.
func (r *Router) usable(lang, path string, content []byte) string {
	if _, ok := r.registry.ForLanguage(lang); ok {
		return lang
	}
	return r.inferPrimary(path, content)
}

// sortedLanguages gives a deterministic sniff order.
func sortedLanguages(reg *Registry) []string {
	langs := reg.Languages()
	sort.Strings(langs)
	return langs
}

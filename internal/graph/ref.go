package graph

import "strings"

// Storage-boundary prefixes for unresolved endpoints. Kept for compatibility
// with persisted data; in-memory code uses the Ref tagged union.
const (
	resolvePrefix  = "RESOLVE:"
	externalPrefix = "EXTERNAL:"
)

// RefKind discriminates the Ref union.
type RefKind int

const (
	// RefResolved means the endpoint is a known component id.
	RefResolved RefKind = iota
	// RefPending means the endpoint names a same-project symbol not yet
	// indexed (forward reference or cross-file import).
	RefPending
	// RefExternal means the endpoint leaves the project entirely.
	RefExternal
)

// Ref is a relationship endpoint: a resolved component id, a pending
// same-project symbol name, or an external specifier. The zero value is an
// empty resolved ref and is invalid in a stored relationship.
type Ref struct {
	Kind  RefKind `json:"kind"`
	Value string  `json:"value"`
}

// ResolvedRef returns an endpoint holding a component id.
func ResolvedRef(id string) Ref { return Ref{Kind: RefResolved, Value: id} }

// PendingRef returns an endpoint naming a same-project symbol to resolve later.
func PendingRef(name string) Ref { return Ref{Kind: RefPending, Value: name} }

// ExternalRef returns an endpoint for a reference leaving the project.
func ExternalRef(specifier string) Ref { return Ref{Kind: RefExternal, Value: specifier} }

// IsResolved reports whether the endpoint holds a component id.
func (r Ref) IsResolved() bool { return r.Kind == RefResolved }

// Encode renders the endpoint in the storage encoding: a raw component id,
// "RESOLVE:<name>", or "EXTERNAL:<specifier>".
func (r Ref) Encode() string {
	switch r.Kind {
	case RefPending:
		return resolvePrefix + r.Value
	case RefExternal:
		return externalPrefix + r.Value
	default:
		return r.Value
	}
}

// DecodeRef parses the storage encoding back into a Ref.
func DecodeRef(s string) Ref {
	switch {
	case strings.HasPrefix(s, resolvePrefix):
		return PendingRef(strings.TrimPrefix(s, resolvePrefix))
	case strings.HasPrefix(s, externalPrefix):
		return ExternalRef(strings.TrimPrefix(s, externalPrefix))
	default:
		return ResolvedRef(s)
	}
}

// String implements fmt.Stringer using the storage encoding.
func (r Ref) String() string { return r.Encode() }

package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
)

// ComponentID computes the deterministic id for a component. Identity is
// (filePath, qualifiedName, componentType, disambiguator): unchanged source
// reproduces the same id across runs, and same-name/same-type siblings in
// one file are kept distinct by the disambiguator (ordinal, assigned by
// AssignIDs).
func ComponentID(filePath, qualifiedName, componentType, disambiguator string) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte{0})
	h.Write([]byte(qualifiedName))
	h.Write([]byte{0})
	h.Write([]byte(componentType))
	h.Write([]byte{0})
	h.Write([]byte(disambiguator))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// RelationshipID computes a deterministic relationship id so re-parsing a
// file upserts edges instead of duplicating them. Endpoints use the storage
// encoding so pending/external endpoints hash stably.
func RelationshipID(relType string, source, target Ref, loc Location) string {
	h := sha256.New()
	h.Write([]byte(relType))
	h.Write([]byte{0})
	h.Write([]byte(source.Encode()))
	h.Write([]byte{0})
	h.Write([]byte(target.Encode()))
	h.Write([]byte{0})
	h.Write([]byte{byte(loc.StartLine >> 8), byte(loc.StartLine), byte(loc.StartColumn >> 8), byte(loc.StartColumn)})
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// NormalizePath converts path to the project-relative forward-slash form
// used everywhere in the graph. root may be empty, in which case path is
// only slash-normalized.
func NormalizePath(root, path string) string {
	p := path
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return filepath.ToSlash(p)
}

// QualifiedName joins a parent chain and a component name with dots. Empty
// segments are skipped.
func QualifiedName(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// AssignIDs fills in deterministic ids and parent links for a file's
// components. Components must be in declaration order; parent chains are
// derived from the Parent pointers set during the walk (via the name
// recorded in component metadata under "qualifiedName" when present, else
// the bare name). Same-(qualifiedName, type) siblings get ordinal
// disambiguators in declaration order, so a silent collision cannot
// overwrite an earlier sibling.
func AssignIDs(filePath string, components []*Component) {
	seen := make(map[string]int, len(components))
	for _, c := range components {
		qname := c.Name
		if v, ok := c.Metadata["qualifiedName"].(string); ok && v != "" {
			qname = v
		}
		key := qname + "\x00" + c.Type
		ordinal := seen[key]
		seen[key] = ordinal + 1

		disamb := ""
		if ordinal > 0 {
			disamb = strconv.Itoa(ordinal)
		}
		c.ID = ComponentID(filePath, qname, c.Type, disamb)
	}
}

package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ContentHash computes a canonical hash over a component's meaning-relevant
// fields: name, type, normalized code body, and signature metadata. Location
// and timestamps are deliberately excluded so a pure move or reformat does
// not register as a semantic change, while any real edit does. This hash is
// the entire staleness contract with the embedding subsystem.
func ContentHash(c *Component) string {
	h := sha256.New()
	fmt.Fprintf(h, "name:%s\n", c.Name)
	fmt.Fprintf(h, "type:%s\n", c.Type)
	fmt.Fprintf(h, "code:%s\n", NormalizeCode(c.Code))

	// Signature-bearing metadata keys, sorted for determinism. Volatile or
	// externally-owned keys never participate.
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		if signatureKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "meta:%s=%v\n", k, c.Metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// signatureKeys are the metadata keys that carry signature meaning and so
// participate in the content hash.
var signatureKeys = map[string]bool{
	"signature":  true,
	"parameters": true,
	"returns":    true,
	"receiver":   true,
	"extends":    true,
	"implements": true,
	"modifiers":  true,
}

// NormalizeCode collapses whitespace runs and normalizes line endings so
// formatting-only changes hash identically.
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(code))
	space := false
	for _, r := range code {
		if r == ' ' || r == '\t' {
			space = true
			continue
		}
		if space {
			// A single space stands in for any horizontal run, except at
			// line starts where indentation carries no meaning.
			if b.Len() > 0 && !endsWithNewline(&b) {
				b.WriteByte(' ')
			}
			space = false
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func endsWithNewline(b *strings.Builder) bool {
	s := b.String()
	return len(s) > 0 && s[len(s)-1] == '\n'
}

// HashContent hashes raw file bytes for whole-file change detection.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

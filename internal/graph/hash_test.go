package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash_MoveInvariant(t *testing.T) {
	t.Parallel()
	a := &Component{
		Name:     "Parse",
		Type:     ComponentFunction,
		Code:     "func Parse() error {\n\treturn nil\n}",
		Location: Location{StartLine: 10, EndLine: 12},
	}
	b := &Component{
		Name:     "Parse",
		Type:     ComponentFunction,
		Code:     "func Parse() error {\n\treturn nil\n}",
		Location: Location{StartLine: 200, EndLine: 202},
	}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_ReformatInvariant(t *testing.T) {
	t.Parallel()
	a := &Component{Name: "f", Type: ComponentFunction, Code: "x  =  1\r\ny = 2"}
	b := &Component{Name: "f", Type: ComponentFunction, Code: "x = 1\n    y = 2"}
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_ChangesOnEdit(t *testing.T) {
	t.Parallel()
	a := &Component{Name: "f", Type: ComponentFunction, Code: "return 1"}
	b := &Component{Name: "f", Type: ComponentFunction, Code: "return 2"}
	assert.NotEqual(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_SignatureMetadataParticipates(t *testing.T) {
	t.Parallel()
	a := &Component{Name: "f", Type: ComponentFunction}
	a.Meta("signature", "f(x int)")
	b := &Component{Name: "f", Type: ComponentFunction}
	b.Meta("signature", "f(x string)")
	assert.NotEqual(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_VolatileMetadataIgnored(t *testing.T) {
	t.Parallel()
	a := &Component{Name: "f", Type: ComponentFunction}
	b := &Component{Name: "f", Type: ComponentFunction}
	b.Meta("lastSeen", "2026-08-26")
	b.Meta("qualifiedName", "pkg.f")
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHash_MetadataOrderIndependent(t *testing.T) {
	t.Parallel()
	a := &Component{Name: "f", Type: ComponentFunction}
	a.Meta("signature", "f()")
	a.Meta("returns", "error")
	b := &Component{Name: "f", Type: ComponentFunction}
	b.Meta("returns", "error")
	b.Meta("signature", "f()")
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b", NormalizeCode("a \t b"))
	assert.Equal(t, "a\nb", NormalizeCode("  a\r\n\tb  "))
	assert.Equal(t, "", NormalizeCode("   \t "))
}

func TestHashContent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, HashContent([]byte("x")), HashContent([]byte("x")))
	assert.NotEqual(t, HashContent([]byte("x")), HashContent([]byte("y")))
}

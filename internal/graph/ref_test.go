package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefEncode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc123", ResolvedRef("abc123").Encode())
	assert.Equal(t, "RESOLVE:Logger", PendingRef("Logger").Encode())
	assert.Equal(t, "EXTERNAL:react", ExternalRef("react").Encode())
}

func TestDecodeRef(t *testing.T) {
	t.Parallel()

	r := DecodeRef("RESOLVE:Logger")
	assert.Equal(t, RefPending, r.Kind)
	assert.Equal(t, "Logger", r.Value)

	r = DecodeRef("EXTERNAL:net/http")
	assert.Equal(t, RefExternal, r.Kind)
	assert.Equal(t, "net/http", r.Value)

	// Anything without a prefix is a resolved component id.
	r = DecodeRef("abc123")
	assert.Equal(t, RefResolved, r.Kind)
	assert.Equal(t, "abc123", r.Value)
	assert.True(t, r.IsResolved())
}

func TestRefRoundTrip(t *testing.T) {
	t.Parallel()
	for _, ref := range []Ref{
		ResolvedRef("deadbeef"),
		PendingRef("handleClick"),
		ExternalRef("lodash/debounce"),
	} {
		assert.Equal(t, ref, DecodeRef(ref.Encode()))
	}
}

func TestDecodeRef_PrefixOnlyAppearsAtStorageBoundary(t *testing.T) {
	t.Parallel()
	// A pending name that itself contains a colon survives the round trip.
	r := DecodeRef(PendingRef("ns:thing").Encode())
	assert.Equal(t, RefPending, r.Kind)
	assert.Equal(t, "ns:thing", r.Value)
}

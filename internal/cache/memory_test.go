package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testRecord stands in for regdata.CanonicalRecord in these tests: the
// cache package is JSON-encoded and type-agnostic, so a minimal local type
// is enough to exercise Get/Set/Invalidate without this package importing
// the root package (which imports this one).
type testRecord struct {
	Domain    string
	Registrar *string
}

func strPtr(s string) *string { return &s }

func TestMemory_PutGetRoundTrip(t *testing.T) {
	c := NewMemory(10, time.Hour)
	rec := testRecord{Domain: "example.com", Registrar: strPtr("Example Registrar")}
	require.NoError(t, c.Set("example.com", rec, time.Hour))

	var got testRecord
	ok, err := c.Get("example.com", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "example.com", got.Domain)
	require.Equal(t, "Example Registrar", *got.Registrar)
}

func TestMemory_MissReturnsFalse(t *testing.T) {
	c := NewMemory(10, time.Hour)
	var got testRecord
	ok, err := c.Get("nope.example", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_InvalidateRemovesEntry(t *testing.T) {
	c := NewMemory(10, time.Hour)
	require.NoError(t, c.Set("example.com", testRecord{Domain: "example.com"}, time.Hour))
	require.NoError(t, c.Invalidate("example.com"))

	var got testRecord
	ok, _ := c.Get("example.com", &got)
	require.False(t, ok)
}

func TestMemory_CapacityBoundEvicts(t *testing.T) {
	c := NewMemory(2, time.Hour)
	require.NoError(t, c.Set("a.com", testRecord{Domain: "a.com"}, time.Hour))
	require.NoError(t, c.Set("b.com", testRecord{Domain: "b.com"}, time.Hour))
	require.NoError(t, c.Set("c.com", testRecord{Domain: "c.com"}, time.Hour))

	present := 0
	for _, k := range []string{"a.com", "b.com", "c.com"} {
		var got testRecord
		if ok, _ := c.Get(k, &got); ok {
			present++
		}
	}
	require.Equal(t, 2, present)
}

func TestMemory_SetDoesNotAliasCallerRecord(t *testing.T) {
	c := NewMemory(10, time.Hour)
	rec := testRecord{Domain: "example.com"}
	require.NoError(t, c.Set("example.com", rec, time.Hour))
	rec.Domain = "mutated.example"

	var got testRecord
	ok, _ := c.Get("example.com", &got)
	require.True(t, ok)
	require.Equal(t, "example.com", got.Domain)
}

func TestMemory_GetCopyMutationDoesNotAffectStore(t *testing.T) {
	c := NewMemory(10, time.Hour)
	require.NoError(t, c.Set("example.com", testRecord{Domain: "example.com"}, time.Hour))

	var got testRecord
	ok, _ := c.Get("example.com", &got)
	require.True(t, ok)
	got.Domain = "mutated.example"

	var got2 testRecord
	ok, _ = c.Get("example.com", &got2)
	require.True(t, ok)
	require.Equal(t, "example.com", got2.Domain)
}

package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_GetReleaseReusesBuffer(t *testing.T) {
	p := New(1, 64)

	b1 := p.Get()
	require.Equal(t, 0, len(b1.B))
	require.Equal(t, 64, cap(b1.B))
	b1.B = append(b1.B, "hello"...)
	b1.Release()

	b2 := p.Get()
	require.Equal(t, 0, len(b2.B), "length must be reset on acquire")
	require.Same(t, b1, b2, "released buffer should be reused when pool has room")
}

func TestPool_GetBeyondCapacityAllocatesFresh(t *testing.T) {
	p := New(1, 32)

	b1 := p.Get()
	b2 := p.Get()
	require.NotSame(t, b1, b2)
	require.Equal(t, 32, cap(b2.B))

	// Releasing both: the first back into the pool, the second discarded
	// because the free-list already has one slot.
	b1.Release()
	b2.Release()
}

func TestBuffer_ReleaseNilIsSafe(t *testing.T) {
	var b *Buffer
	require.NotPanics(t, func() { b.Release() })
}

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	a := New[string]()

	h1 := a.Insert("one")
	h2 := a.Insert("two")
	require.NotEqual(t, h1, h2)
	assert.False(t, h1.IsNull())
	assert.Equal(t, 2, a.Len())

	v, ok := a.Get(h1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok = a.Get(h2)
	require.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestNullNeverResolves(t *testing.T) {
	a := New[int]()
	a.Insert(1)

	_, ok := a.Get(Null)
	assert.False(t, ok)
	assert.False(t, a.Contains(Null))

	_, ok = a.Remove(Null)
	assert.False(t, ok)
	assert.Equal(t, 1, a.Len())
}

func TestUnknownHandle(t *testing.T) {
	a := New[int]()
	a.Insert(1)

	_, ok := a.Get(newHandle(7, 1))
	assert.False(t, ok, "index past the end")

	_, ok = a.Get(newHandle(0, 9))
	assert.False(t, ok, "generation never issued")
}

// ---------------------------------------------------------------------------
// Stale handles must never alias a reused slot.
// ---------------------------------------------------------------------------

func TestStaleHandleAfterReuse(t *testing.T) {
	a := New[string]()

	old := a.Insert("first")
	v, ok := a.Remove(old)
	require.True(t, ok)
	assert.Equal(t, "first", v)

	fresh := a.Insert("second")
	assert.Equal(t, old.Index(), fresh.Index(), "slot should be reused")
	assert.NotEqual(t, old, fresh)
	assert.Greater(t, fresh.Generation(), old.Generation())

	_, ok = a.Get(old)
	assert.False(t, ok)

	v, ok = a.Get(fresh)
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestRemoveTwice(t *testing.T) {
	a := New[int]()
	h := a.Insert(42)

	_, ok := a.Remove(h)
	require.True(t, ok)
	_, ok = a.Remove(h)
	assert.False(t, ok)
	assert.Equal(t, 0, a.Len())
}

func TestGenerationWrapSkipsZero(t *testing.T) {
	a := New[int]()
	h := a.Insert(1)
	a.slots[h.Index()].gen = ^uint32(0)
	h = newHandle(h.Index(), ^uint32(0))

	_, ok := a.Remove(h)
	require.True(t, ok)

	next := a.Insert(2)
	assert.Equal(t, uint32(1), next.Generation())
	assert.False(t, next.IsNull())
}

func TestHandlesSnapshot(t *testing.T) {
	a := New[int]()
	var hs []Handle
	for i := 0; i < 5; i++ {
		hs = append(hs, a.Insert(i))
	}
	a.Remove(hs[1])
	a.Remove(hs[3])

	live := a.Handles()
	assert.Equal(t, []Handle{hs[0], hs[2], hs[4]}, live)

	for _, h := range live {
		a.Remove(h)
	}
	assert.Equal(t, 0, a.Len())
	assert.Empty(t, a.Handles())
}

func TestHandleEncoding(t *testing.T) {
	h := newHandle(3, 5)
	assert.Equal(t, uint32(3), h.Index())
	assert.Equal(t, uint32(5), h.Generation())
	assert.Equal(t, Handle(5<<32|3), h)
	assert.Equal(t, "handle(3:5)", h.String())
	assert.Equal(t, "handle(null)", Null.String())
}

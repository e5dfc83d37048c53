// Package arena provides the handle-indexed table that holds every socket
// record owned by the host. Handles pair a slot index with a generation so a
// handle kept past its socket's removal can never resolve to whatever record
// later reuses the slot.
package arena

import "fmt"

// Handle identifies one record in an Arena. The low 32 bits hold the slot
// index and the high 32 bits the slot generation at insertion time.
type Handle uint64

// Null is the reserved handle that never refers to a record. Generations
// start at 1, so no Insert can return it.
const Null Handle = 0

func newHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

// Index returns the slot index encoded in the handle.
func (h Handle) Index() uint32 { return uint32(h) }

// Generation returns the slot generation encoded in the handle.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// IsNull reports whether h is the reserved Null handle.
func (h Handle) IsNull() bool { return h == Null }

func (h Handle) String() string {
	if h.IsNull() {
		return "handle(null)"
	}
	return fmt.Sprintf("handle(%d:%d)", h.Index(), h.Generation())
}

type slot[T any] struct {
	gen      uint32
	occupied bool
	value    T
}

// Arena is a generational slot table. It is not safe for concurrent use; the
// host thread is its only owner.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	n     int
}

// New returns an empty Arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v in a free slot and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{gen: 1})
	}

	s := &a.slots[idx]
	s.occupied = true
	s.value = v
	a.n++
	return newHandle(idx, s.gen)
}

// Get returns the value stored under h. The second result is false for the
// Null handle, for handles that were never issued, and for stale handles.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	s := a.lookup(h)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Contains reports whether h currently refers to a live record.
func (a *Arena[T]) Contains(h Handle) bool {
	return a.lookup(h) != nil
}

// Remove deletes the record under h and returns it. The slot's generation is
// bumped so h and every copy of it become stale.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	s := a.lookup(h)
	if s == nil {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.occupied = false
	s.gen++
	if s.gen == 0 {
		// Wrapped: skip 0 so Null stays unreachable.
		s.gen = 1
	}
	a.free = append(a.free, h.Index())
	a.n--
	return v, true
}

// Len returns the number of live records.
func (a *Arena[T]) Len() int {
	return a.n
}

// Handles returns a snapshot of every live handle in slot order. The
// snapshot stays valid to iterate while records are removed.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.n)
	for i := range a.slots {
		if a.slots[i].occupied {
			out = append(out, newHandle(uint32(i), a.slots[i].gen))
		}
	}
	return out
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.IsNull() {
		return nil
	}
	idx := h.Index()
	if int(idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.occupied || s.gen != h.Generation() {
		return nil
	}
	return s
}

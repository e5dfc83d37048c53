package main

import (
	"math"
	"runtime/cgo"
	"sync"
)

// registry holds the contexts issued by pollnet_init and not yet released by
// pollnet_shutdown. Lookups go through the map rather than cgo.Handle.Value,
// which panics on a released or made-up value. C callers may use different
// threads for init, shutdown and polling, hence the mutex.
type registry struct {
	mu   sync.Mutex
	live map[uintptr]*library
}

func newRegistry() *registry {
	return &registry{live: make(map[uintptr]*library)}
}

func (r *registry) add(lib *library) uintptr {
	id := uintptr(cgo.NewHandle(lib))
	r.mu.Lock()
	r.live[id] = lib
	r.mu.Unlock()
	return id
}

func (r *registry) get(id uintptr) *library {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[id]
}

// remove forgets id and returns its library, or nil when id is unknown or
// already removed.
func (r *registry) remove(id uintptr) *library {
	r.mu.Lock()
	lib, ok := r.live[id]
	delete(r.live, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	cgo.Handle(id).Delete()
	return lib
}

// payloadLen converts a C buffer length to a Go length. Lengths that do not
// fit a C int are rejected since C.GoBytes takes one.
func payloadLen(n uint32) (int, bool) {
	if uint64(n) > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

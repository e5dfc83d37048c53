package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := newRegistry()
	lib := &library{}

	id := r.add(lib)
	require.NotZero(t, id)
	assert.Same(t, lib, r.get(id))

	assert.Same(t, lib, r.remove(id))
	assert.Nil(t, r.get(id))
}

func TestRegistryRemoveTwiceIsNoop(t *testing.T) {
	r := newRegistry()
	id := r.add(&library{})

	require.NotNil(t, r.remove(id))
	assert.NotPanics(t, func() {
		assert.Nil(t, r.remove(id))
	})
}

func TestRegistryUnknownID(t *testing.T) {
	r := newRegistry()
	assert.NotPanics(t, func() {
		assert.Nil(t, r.get(12345))
		assert.Nil(t, r.remove(12345))
	})
}

func TestPayloadLen(t *testing.T) {
	n, ok := payloadLen(16)
	assert.True(t, ok)
	assert.Equal(t, 16, n)

	n, ok = payloadLen(math.MaxInt32)
	assert.True(t, ok)
	assert.Equal(t, math.MaxInt32, n)

	_, ok = payloadLen(math.MaxInt32 + 1)
	assert.False(t, ok)

	_, ok = payloadLen(math.MaxUint32)
	assert.False(t, ok)
}

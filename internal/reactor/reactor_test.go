package reactor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReactor(t *testing.T, config Config) *Reactor {
	t.Helper()
	r, err := New(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func TestGoRunsTask(t *testing.T) {
	r := newReactor(t, DefaultConfig())

	ran := make(chan struct{})
	require.NoError(t, r.Go("once", func(ctx context.Context) {
		close(ran)
	}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestPanicIsContained(t *testing.T) {
	r := newReactor(t, DefaultConfig())

	require.NoError(t, r.Go("bad", func(ctx context.Context) {
		panic("boom")
	}))

	ran := make(chan struct{})
	require.NoError(t, r.Go("good", func(ctx context.Context) {
		close(ran)
	}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("healthy task did not run after a panic")
	}
}

func TestShutdownCancelsTasks(t *testing.T) {
	r, err := New(Config{ShutdownGrace: time.Second})
	require.NoError(t, err)

	var exited atomic.Bool
	started := make(chan struct{})
	require.NoError(t, r.Go("parked", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		exited.Store(true)
	}))
	<-started

	start := time.Now()
	require.NoError(t, r.Shutdown())
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, exited.Load())

	assert.NoError(t, r.Shutdown(), "second shutdown is a no-op")
}

func TestShutdownHonorsGrace(t *testing.T) {
	r, err := New(Config{ShutdownGrace: 50 * time.Millisecond})
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, r.Go("stubborn", func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	start := time.Now()
	err = r.Shutdown()
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGoAfterShutdown(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())

	err = r.Go("late", func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrStopped)

	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed after shutdown")
	}
}

func TestBoundedPoolRejectsOverload(t *testing.T) {
	r := newReactor(t, Config{MaxTasks: 1, ShutdownGrace: time.Second})

	started := make(chan struct{})
	require.NoError(t, r.Go("first", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	err := r.Go("second", func(ctx context.Context) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ants.ErrPoolOverload))
	assert.Equal(t, 1, r.Running())
}

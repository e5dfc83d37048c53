// Package reactor hosts every connection task behind one scheduler. Tasks
// run on a goroutine pool and share a root context that is cancelled when
// the reactor shuts down, so a task parked in a select always has a way out.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/whisper/pollnet/internal/log"
	"github.com/whisper/pollnet/internal/metrics"
)

// ErrStopped is returned by Go after Shutdown.
var ErrStopped = errors.New("reactor: stopped")

// Config holds reactor tuning parameters.
type Config struct {
	MaxTasks      int           // pool capacity; 0 means unbounded
	ShutdownGrace time.Duration // how long Shutdown waits for tasks to finish
}

// DefaultConfig returns an unbounded pool with a short grace period.
func DefaultConfig() Config {
	return Config{
		MaxTasks:      0,
		ShutdownGrace: 250 * time.Millisecond,
	}
}

// Task is a unit of work hosted by the reactor. ctx is cancelled on shutdown.
type Task func(ctx context.Context)

// Reactor schedules tasks onto a goroutine pool.
type Reactor struct {
	config Config
	pool   *ants.Pool
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *logrus.Entry
}

// New creates a running reactor.
func New(config Config) (*Reactor, error) {
	logger := log.NewLogger("reactor")

	size := config.MaxTasks
	if size <= 0 {
		size = -1
	}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithLogger(logger),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Errorf("reactor: task panicked: %v", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("reactor: create pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		config: config,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}, nil
}

// Go schedules task without blocking the caller. It fails with ErrStopped
// after Shutdown and with ants.ErrPoolOverload when MaxTasks tasks are
// already running.
func (r *Reactor) Go(name string, task Task) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}

	err := r.pool.Submit(func() {
		metrics.TasksRunning.Inc()
		defer metrics.TasksRunning.Dec()
		r.logger.WithField("task", name).Debug("reactor: task started")
		task(r.ctx)
		r.logger.WithField("task", name).Debug("reactor: task finished")
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrStopped
	}
	if err != nil {
		return fmt.Errorf("reactor: schedule %s: %w", name, err)
	}
	return nil
}

// Running returns the number of tasks currently executing.
func (r *Reactor) Running() int {
	return r.pool.Running()
}

// Done is closed once Shutdown has started.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}

// Shutdown cancels every task's context and waits up to the configured grace
// period for them to return. Tasks still running after the grace period are
// abandoned; they hold no host state and finish on their own. Shutdown is
// idempotent.
func (r *Reactor) Shutdown() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	r.cancel()

	grace := r.config.ShutdownGrace
	if grace <= 0 {
		grace = DefaultConfig().ShutdownGrace
	}
	if err := r.pool.ReleaseTimeout(grace); err != nil {
		r.logger.Warnf("reactor: %d task(s) still running after %s", r.pool.Running(), grace)
		return fmt.Errorf("reactor: shutdown: %w", err)
	}
	r.logger.Debug("reactor: stopped")
	return nil
}

package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/storekit/internal/observer"
)

// InitFunc produces the initial snapshot of a container.
type InitFunc[T any] func(ctx context.Context) (T, error)

// Initializer pairs an InitFunc with its execution mode.
// Build one with Sync or Async.
type Initializer[T any] struct {
	fn    InitFunc[T]
	async bool
}

// Sync runs fn inside Reload; the snapshot is committed before Reload returns.
func Sync[T any](fn InitFunc[T]) Initializer[T] {
	return Initializer[T]{fn: fn}
}

// Async runs fn on its own goroutine; the snapshot is committed when fn returns.
func Async[T any](fn InitFunc[T]) Initializer[T] {
	return Initializer[T]{fn: fn, async: true}
}

// Value is a convenience Sync initializer returning a fixed snapshot.
func Value[T any](v T) Initializer[T] {
	return Sync(func(context.Context) (T, error) { return v, nil })
}

// IsAsync reports whether the initializer runs asynchronously.
func (i Initializer[T]) IsAsync() bool {
	return i.async
}

// Listener receives the committed snapshot and the one it replaced.
type Listener[T any] func(next, prev T)

// Option configures a Container.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for initialization failures.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Container owns one model's state snapshot.
//
// Thread-safety model:
//   - Get, Set, Subscribe, Reload, Ready, Wait: safe from any goroutine
//   - listeners run on the goroutine that called Set, never under the lock
//
// INVARIANTS:
//   - the snapshot is replaced wholesale on Set, never mutated in place
//   - listeners for one commit run in registration order, after the commit
type Container[T any] struct {
	name   string
	init   Initializer[T]
	logger *slog.Logger

	mu          sync.RWMutex
	state       T
	initialized bool
	pending     chan struct{} // non-nil while an async initializer is in flight

	listeners *observer.Registry[Listener[T]]
}

// New creates a container and runs its initializer once.
//
// For async initializers New returns immediately; use Wait to block until the
// first snapshot is committed.
func New[T any](ctx context.Context, name string, init Initializer[T], opts ...Option) *Container[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container[T]{
		name:      name,
		init:      init,
		logger:    o.logger,
		listeners: observer.New[Listener[T]](),
	}
	c.Reload(ctx)
	return c
}

// Name returns the container's name.
func (c *Container[T]) Name() string {
	return c.name
}

// Get returns the current snapshot.
// Before the first successful initialization this is the zero value of T.
func (c *Container[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Set replaces the snapshot and synchronously notifies all current listeners
// in registration order with (next, prev).
func (c *Container[T]) Set(next T) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.initialized = true
	c.mu.Unlock()

	for _, fn := range c.listeners.Snapshot() {
		fn(next, prev)
	}
}

// Subscribe registers fn for every future commit.
// The returned function unsubscribes; calling it more than once is a no-op.
func (c *Container[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	return c.listeners.Add(fn)
}

// Ready reports whether the container has committed at least one snapshot and
// no async initialization is pending.
func (c *Container[T]) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized && c.pending == nil
}

// Wait blocks until any pending async initialization settles or ctx is done.
// It returns immediately when nothing is pending.
func (c *Container[T]) Wait(ctx context.Context) error {
	c.mu.RLock()
	pending := c.pending
	c.mu.RUnlock()
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload reruns the initializer.
//
// Sync initializers commit before Reload returns. Async initializers are
// started on a new goroutine and Reload returns at once; the previous snapshot
// stays visible until the result is committed. Failures are logged as
// InitError and never returned.
func (c *Container[T]) Reload(ctx context.Context) {
	if c.init.fn == nil {
		return
	}
	if !c.init.async {
		c.run(ctx)
		return
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.pending = done
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			if c.pending == done {
				c.pending = nil
			}
			c.mu.Unlock()
			close(done)
		}()
		c.run(ctx)
	}()
}

// run calls the initializer, recovering panics, and commits on success.
func (c *Container[T]) run(ctx context.Context) {
	next, err := c.call(ctx)
	if err != nil {
		c.logger.Error("container initialization failed",
			"container", c.name,
			"async", c.init.async,
			"error", err,
		)
		return
	}
	c.Set(next)
	c.logger.Debug("container initialized", "container", c.name, "async", c.init.async)
}

func (c *Container[T]) call(ctx context.Context) (next T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InitError{Container: c.name, Panic: true, Err: fmt.Errorf("%v", r)}
		}
	}()
	next, err = c.init.fn(ctx)
	if err != nil {
		return next, &InitError{Container: c.name, Err: err}
	}
	return next, nil
}

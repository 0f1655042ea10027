package pipeline

import (
	"context"
	"fmt"

	"github.com/roach88/storekit/internal/observer"
)

// Guard decides whether a write may happen at all.
type Guard[T any] func(ctx context.Context, next, prev T) bool

// Intercept replaces the proposed state. Returning an error aborts the write.
type Intercept[T any] func(ctx context.Context, next, prev T) (T, error)

// Context is what middleware sees for one write.
// State may be replaced before calling the continuation.
type Context[T any] struct {
	State     T
	PrevState T
}

// Next continues the chain.
type Next[T any] func(ctx context.Context, wc *Context[T]) error

// Middleware wraps the rest of the chain.
type Middleware[T any] func(ctx context.Context, wc *Context[T], next Next[T]) error

// CommitFunc is the terminal step of a dispatch.
type CommitFunc[T any] func(state T)

// Result describes the outcome of one dispatch.
type Result struct {
	// Committed is true when the terminal commit ran.
	Committed bool

	// Vetoed is true when a guard rejected the write.
	Vetoed bool
}

// Pipeline holds the guards, intercepts and middleware of one container.
//
// Thread-safety: registration and Dispatch are safe from any goroutine.
// Dispatch works on a snapshot of the registered hooks taken when it starts,
// so an unsubscribe takes effect from the next dispatch. Concurrent dispatches
// are not serialized; the last commit wins.
type Pipeline[T any] struct {
	commit      CommitFunc[T]
	guards      *observer.Registry[Guard[T]]
	intercepts  *observer.Registry[Intercept[T]]
	middlewares *observer.Registry[Middleware[T]]
}

// New creates a pipeline that ends in commit.
func New[T any](commit CommitFunc[T]) *Pipeline[T] {
	return &Pipeline[T]{
		commit:      commit,
		guards:      observer.New[Guard[T]](),
		intercepts:  observer.New[Intercept[T]](),
		middlewares: observer.New[Middleware[T]](),
	}
}

// UseGuard registers a guard.
func (p *Pipeline[T]) UseGuard(g Guard[T]) (unsubscribe func()) {
	return p.guards.Add(g)
}

// UseIntercept registers an intercept.
func (p *Pipeline[T]) UseIntercept(i Intercept[T]) (unsubscribe func()) {
	return p.intercepts.Add(i)
}

// UseMiddleware registers a middleware.
func (p *Pipeline[T]) UseMiddleware(m Middleware[T]) (unsubscribe func()) {
	return p.middlewares.Add(m)
}

// Dispatch runs next through the pipeline against prev.
//
// A guard veto is not an error: Dispatch returns a zero-commit Result and nil.
// Intercept and middleware errors abort the write and are returned wrapped.
func (p *Pipeline[T]) Dispatch(ctx context.Context, next, prev T) (Result, error) {
	for _, g := range p.guards.Snapshot() {
		if !g(ctx, next, prev) {
			return Result{Vetoed: true}, nil
		}
	}

	for i, ic := range p.intercepts.Snapshot() {
		out, err := ic(ctx, next, prev)
		if err != nil {
			return Result{}, fmt.Errorf("intercept %d: %w", i, err)
		}
		next = out
	}

	var res Result
	chain := Next[T](func(_ context.Context, wc *Context[T]) error {
		p.commit(wc.State)
		res.Committed = true
		return nil
	})
	chain = compose(p.middlewares.Snapshot(), chain)

	if err := chain(ctx, &Context[T]{State: next, PrevState: prev}); err != nil {
		return res, fmt.Errorf("middleware: %w", err)
	}
	return res, nil
}

// compose folds mws right-to-left around terminal, so mws[0] runs first.
func compose[T any](mws []Middleware[T], terminal Next[T]) Next[T] {
	chain := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], chain
		chain = func(ctx context.Context, wc *Context[T]) error {
			return mw(ctx, wc, inner)
		}
	}
	return chain
}

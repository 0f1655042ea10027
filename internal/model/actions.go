package model

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/storekit/internal/observer"
	"github.com/roach88/storekit/internal/pipeline"
)

// ActionFunc is the body of a bound action.
type ActionFunc func(ctx context.Context, args ...any) (any, error)

// ActionListener observes calls to an action.
type ActionListener func(args ...any)

// Getter reads the current state of a model.
type Getter[T any] func() T

// Setter writes to a model; arg is interpreted as for StaticModel.SetState.
type Setter func(ctx context.Context, arg any, replace bool) (pipeline.Result, error)

// ActionFactory builds a set of named actions for one model container.
type ActionFactory[T any] func(get Getter[T], set Setter, deps Dependencies) map[string]ActionFunc

// Action is a named, observable action.
//
// Rebinding a name replaces the body but keeps the action's subscribers.
type Action struct {
	name      string
	mu        sync.RWMutex
	fn        ActionFunc
	listeners *observer.Registry[ActionListener]
}

// Name returns the action name.
func (a *Action) Name() string {
	return a.name
}

// Call notifies the action's subscribers with args, then runs the action.
func (a *Action) Call(ctx context.Context, args ...any) (any, error) {
	for _, l := range a.listeners.Snapshot() {
		l(args...)
	}
	a.mu.RLock()
	fn := a.fn
	a.mu.RUnlock()
	return fn(ctx, args...)
}

// SubscribeAction registers fn for every future call of the action.
func (a *Action) SubscribeAction(fn ActionListener) (unsubscribe func()) {
	return a.listeners.Add(fn)
}

// actionTable accumulates actions across BindActions calls.
type actionTable struct {
	mu      sync.RWMutex
	actions map[string]*Action
}

func newActionTable() *actionTable {
	return &actionTable{actions: make(map[string]*Action)}
}

// merge adds fns; colliding names take the new body.
func (t *actionTable) merge(fns map[string]ActionFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, fn := range fns {
		if fn == nil {
			continue
		}
		if a, ok := t.actions[name]; ok {
			a.mu.Lock()
			a.fn = fn
			a.mu.Unlock()
			continue
		}
		t.actions[name] = &Action{name: name, fn: fn, listeners: observer.New[ActionListener]()}
	}
}

func (t *actionTable) snapshot() map[string]*Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.actions)
}

func (t *actionTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.actions))
}

// GetterFunc derives a value from the state.
type GetterFunc[T any] func(state T) any

type getterTable[T any] struct {
	mu      sync.RWMutex
	getters map[string]GetterFunc[T]
}

func newGetterTable[T any]() *getterTable[T] {
	return &getterTable[T]{getters: make(map[string]GetterFunc[T])}
}

func (t *getterTable[T]) merge(fns map[string]GetterFunc[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, fn := range fns {
		if fn != nil {
			t.getters[name] = fn
		}
	}
}

func (t *getterTable[T]) eval(state T) map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]any, len(t.getters))
	for name, fn := range t.getters {
		out[name] = fn(state)
	}
	return out
}

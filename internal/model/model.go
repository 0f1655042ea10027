package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/storekit/internal/container"
	"github.com/roach88/storekit/internal/pipeline"
)

// InitFunc produces a model's initial state from its dependencies.
type InitFunc[T any] func(ctx context.Context, deps Dependencies) (T, error)

// Initializer pairs an InitFunc with its execution mode.
type Initializer[T any] struct {
	fn    InitFunc[T]
	async bool
}

// Sync builds an initializer that runs before the model definition returns.
func Sync[T any](fn InitFunc[T]) Initializer[T] {
	return Initializer[T]{fn: fn}
}

// Async builds an initializer that runs on its own goroutine. Until it
// settles the model serves the zero state; use Wait to block on it.
func Async[T any](fn InitFunc[T]) Initializer[T] {
	return Initializer[T]{fn: fn, async: true}
}

// Value builds a sync initializer returning v.
func Value[T any](v T) Initializer[T] {
	return Sync(func(context.Context, Dependencies) (T, error) { return v, nil })
}

// bind closes over deps. deps is called on every (re)initialization so each
// run receives a fresh copy of the context.
func (i Initializer[T]) bind(deps func() Dependencies) container.Initializer[T] {
	if i.fn == nil {
		return container.Initializer[T]{}
	}
	fn := func(ctx context.Context) (T, error) { return i.fn(ctx, deps()) }
	if i.async {
		return container.Async(fn)
	}
	return container.Sync(fn)
}

// binding is one container plus the pipeline every write to it goes through.
type binding[T any] struct {
	name   string
	c      *container.Container[T]
	p      *pipeline.Pipeline[T]
	logger *slog.Logger
}

func newBinding[T any](name string, c *container.Container[T], logger *slog.Logger) *binding[T] {
	p := pipeline.New(c.Set)
	p.UseMiddleware(pipeline.Logging[T](logger, name))
	return &binding[T]{name: name, c: c, p: p, logger: logger}
}

func (b *binding[T]) get() T {
	return b.c.Get()
}

func (b *binding[T]) setState(ctx context.Context, arg any, replace bool) (pipeline.Result, error) {
	prev := b.c.Get()
	next, err := nextState(prev, arg, replace)
	if err != nil {
		var me *Error
		if errors.As(err, &me) {
			me.Model = b.name
		}
		return pipeline.Result{}, fmt.Errorf("set %s: %w", b.name, err)
	}
	res, err := b.p.Dispatch(ctx, next, prev)
	if err != nil {
		return res, fmt.Errorf("set %s: %w", b.name, err)
	}
	if res.Vetoed {
		b.logger.Debug("write vetoed", "model", b.name)
	}
	return res, nil
}

func (b *binding[T]) bindActions(t *actionTable, f ActionFactory[T], deps Dependencies) {
	t.merge(f(b.get, b.setState, deps))
}

func resolve[T any](ctx context.Context, s *Store, key string, init container.Initializer[T]) (*container.Container[T], error) {
	name := container.Key(s.name, key)
	return container.Resolve(s.registry, s.name, key, func() *container.Container[T] {
		return container.New(ctx, name, init, container.WithLogger(s.logger))
	})
}

// BoundOutput is the instantiated view of a model.
type BoundOutput[T any] struct {
	// State is the snapshot at instantiation.
	State T

	// Getters holds every bound getter evaluated against State.
	Getters map[string]any

	// Actions holds every bound action by name.
	Actions map[string]*Action

	model string
	c     *container.Container[T]
}

func newBoundOutput[T any](b *binding[T], actions *actionTable, getters *getterTable[T]) *BoundOutput[T] {
	state := b.get()
	return &BoundOutput[T]{
		State:   state,
		Getters: getters.eval(state),
		Actions: actions.snapshot(),
		model:   b.name,
		c:       b.c,
	}
}

// Subscribe registers fn for every commit to the model's container.
func (o *BoundOutput[T]) Subscribe(fn func(newState, oldState T)) (unsubscribe func()) {
	return o.c.Subscribe(container.Listener[T](fn))
}

// Call runs the named action.
func (o *BoundOutput[T]) Call(ctx context.Context, name string, args ...any) (any, error) {
	a, ok := o.Actions[name]
	if !ok {
		return nil, &Error{Code: ErrCodeUnknownAction, Model: o.model, Message: fmt.Sprintf("no action %q", name)}
	}
	return a.Call(ctx, args...)
}

// Current returns the latest snapshot, which may be newer than State.
func (o *BoundOutput[T]) Current() T {
	return o.c.Get()
}

// StaticModel is a singleton model: one container per definition.
type StaticModel[T any] struct {
	store   *Store
	key     string
	b       *binding[T]
	actions *actionTable
	getters *getterTable[T]
}

// DefineStatic defines a static model in store and runs its initializer.
func DefineStatic[T any](ctx context.Context, store *Store, init Initializer[T]) (*StaticModel[T], error) {
	key := store.keys.Generate()
	c, err := resolve(ctx, store, key, init.bind(func() Dependencies {
		return store.dependencies("", false)
	}))
	if err != nil {
		return nil, fmt.Errorf("define static model: %w", err)
	}
	store.logger.Debug("model defined", "store", store.name, "key", key, "dynamic", false)
	return &StaticModel[T]{
		store:   store,
		key:     key,
		b:       newBinding(c.Name(), c, store.logger),
		actions: newActionTable(),
		getters: newGetterTable[T](),
	}, nil
}

// Key returns the model's container key within its store.
func (m *StaticModel[T]) Key() string { return m.key }

// Get returns the current state.
func (m *StaticModel[T]) Get() T { return m.b.get() }

// SetState proposes a new state.
//
// arg is a func(T) Patch, a Patch (or map[string]any) or a T. Patches are
// merged at the top level unless replace is true; updater results are always
// merged. A guard veto is reported through Result, not as an error.
func (m *StaticModel[T]) SetState(ctx context.Context, arg any, replace bool) (pipeline.Result, error) {
	return m.b.setState(ctx, arg, replace)
}

// Set is SetState with replace false.
func (m *StaticModel[T]) Set(ctx context.Context, arg any) (pipeline.Result, error) {
	return m.b.setState(ctx, arg, false)
}

// Replace is SetState with replace true.
func (m *StaticModel[T]) Replace(ctx context.Context, arg any) (pipeline.Result, error) {
	return m.b.setState(ctx, arg, true)
}

// UseGuard registers a guard on the model's pipeline.
func (m *StaticModel[T]) UseGuard(g pipeline.Guard[T]) func() { return m.b.p.UseGuard(g) }

// UseIntercept registers an intercept on the model's pipeline.
func (m *StaticModel[T]) UseIntercept(i pipeline.Intercept[T]) func() { return m.b.p.UseIntercept(i) }

// UseMiddleware registers middleware on the model's pipeline.
func (m *StaticModel[T]) UseMiddleware(mw pipeline.Middleware[T]) func() {
	return m.b.p.UseMiddleware(mw)
}

// Subscribe registers fn for every commit.
func (m *StaticModel[T]) Subscribe(fn func(newState, oldState T)) func() {
	return m.b.c.Subscribe(container.Listener[T](fn))
}

// BindActions calls f and merges the actions it returns into the model.
func (m *StaticModel[T]) BindActions(f ActionFactory[T]) *StaticModel[T] {
	m.b.bindActions(m.actions, f, m.store.dependencies("", false))
	return m
}

// BindGetters merges getters into the model.
func (m *StaticModel[T]) BindGetters(getters map[string]GetterFunc[T]) *StaticModel[T] {
	m.getters.merge(getters)
	return m
}

// ActionNames returns the bound action names in sorted order.
func (m *StaticModel[T]) ActionNames() []string { return m.actions.names() }

// Instance returns the bound output of the model.
func (m *StaticModel[T]) Instance() *BoundOutput[T] {
	return newBoundOutput(m.b, m.actions, m.getters)
}

// Ready reports whether the initializer has settled.
func (m *StaticModel[T]) Ready() bool { return m.b.c.Ready() }

// Wait blocks until a pending async initializer settles.
func (m *StaticModel[T]) Wait(ctx context.Context) error { return m.b.c.Wait(ctx) }

// Reload reruns the initializer with fresh dependencies.
func (m *StaticModel[T]) Reload(ctx context.Context) { m.b.c.Reload(ctx) }

// DynamicModel is a model parameterized by an instance id; every id owns its
// own container.
type DynamicModel[T any] struct {
	store   *Store
	key     string
	init    Initializer[T]
	getters *getterTable[T]

	mu        sync.Mutex
	factories []ActionFactory[T]
	instances map[string]*instance[T]
}

type instance[T any] struct {
	b       *binding[T]
	actions *actionTable
	deps    Dependencies
}

// DefineDynamic defines a dynamic model in store. No initializer runs until
// the first Instance call.
func DefineDynamic[T any](store *Store, init Initializer[T]) *DynamicModel[T] {
	key := store.keys.Generate()
	store.logger.Debug("model defined", "store", store.name, "key", key, "dynamic", true)
	return &DynamicModel[T]{
		store:     store,
		key:       key,
		init:      init,
		getters:   newGetterTable[T](),
		instances: make(map[string]*instance[T]),
	}
}

// Key returns the model's key prefix within its store.
func (m *DynamicModel[T]) Key() string { return m.key }

// BindActions records f and applies it to every existing and future instance.
func (m *DynamicModel[T]) BindActions(f ActionFactory[T]) *DynamicModel[T] {
	m.mu.Lock()
	m.factories = append(m.factories, f)
	existing := slices.Collect(maps.Values(m.instances))
	m.mu.Unlock()

	for _, inst := range existing {
		inst.b.bindActions(inst.actions, f, inst.deps)
	}
	return m
}

// BindGetters merges getters into the model.
func (m *DynamicModel[T]) BindGetters(getters map[string]GetterFunc[T]) *DynamicModel[T] {
	m.getters.merge(getters)
	return m
}

// Instance returns the bound output for id, creating its container and
// running the initializer with id-aware dependencies on first use.
func (m *DynamicModel[T]) Instance(ctx context.Context, id string) (*BoundOutput[T], error) {
	inst, err := m.instance(ctx, id)
	if err != nil {
		return nil, err
	}
	return newBoundOutput(inst.b, inst.actions, m.getters), nil
}

// Wait blocks until the initializer of id settles. It does not create the
// instance.
func (m *DynamicModel[T]) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return inst.b.c.Wait(ctx)
}

// IDs returns the ids instantiated so far in sorted order.
func (m *DynamicModel[T]) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.instances))
}

func (m *DynamicModel[T]) instance(ctx context.Context, id string) (*instance[T], error) {
	m.mu.Lock()
	if inst, ok := m.instances[id]; ok {
		m.mu.Unlock()
		return inst, nil
	}
	m.mu.Unlock()

	deps := m.store.dependencies(id, true)
	c, err := resolve(ctx, m.store, m.key+":"+id, m.init.bind(func() Dependencies {
		return m.store.dependencies(id, true)
	}))
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", id, err)
	}

	m.mu.Lock()
	if inst, ok := m.instances[id]; ok {
		m.mu.Unlock()
		return inst, nil
	}
	inst := &instance[T]{
		b:       newBinding(c.Name(), c, m.store.logger),
		actions: newActionTable(),
		deps:    deps,
	}
	m.instances[id] = inst
	factories := slices.Clone(m.factories)
	m.mu.Unlock()

	for _, f := range factories {
		inst.b.bindActions(inst.actions, f, deps)
	}
	return inst, nil
}

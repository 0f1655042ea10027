package model

import (
	"log/slog"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/roach88/storekit/internal/clock"
	"github.com/roach88/storekit/internal/container"
)

// Dependencies is what initializers and action factories receive.
//
// Context is a private deep copy; mutating it never affects the store or
// other consumers.
type Dependencies struct {
	Context    map[string]any
	CreatedAt  time.Time
	DynamicKey string
	IsDynamic  bool
}

// Store groups models under one name and shares a read-only context with them.
type Store struct {
	name     string
	context  map[string]any
	registry *container.Registry
	logger   *slog.Logger
	clock    clock.Clock
	keys     KeyGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger passed to every container of the store.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock stamping Dependencies.CreatedAt.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = clock.OrSystem(c)
	}
}

// WithRegistry shares a container registry between stores.
// Default: a registry private to the store.
func WithRegistry(r *container.Registry) Option {
	return func(s *Store) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithKeyGenerator sets how model definitions are keyed in the registry.
// Default: UUIDv7Generator.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.keys = g
		}
	}
}

// DefineStore creates a store. context is deep-copied; later changes to the
// caller's map are not seen by the store.
func DefineStore(name string, context map[string]any, opts ...Option) *Store {
	s := &Store{
		name:    name,
		context: copyContext(context),
		logger:  slog.Default(),
		clock:   clock.System{},
		keys:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = container.NewRegistry()
	}
	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Context returns a deep copy of the store context.
func (s *Store) Context() map[string]any {
	return copyContext(s.context)
}

// Registry returns the registry holding the store's containers.
func (s *Store) Registry() *container.Registry {
	return s.registry
}

func (s *Store) dependencies(dynamicKey string, dynamic bool) Dependencies {
	return Dependencies{
		Context:    copyContext(s.context),
		CreatedAt:  s.clock.Now(),
		DynamicKey: dynamicKey,
		IsDynamic:  dynamic,
	}
}

func copyContext(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(m).(map[string]any)
}

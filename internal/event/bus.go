// Package event is a named-event bus scoped to one document.
//
// Persistence adapters announce changes on a Bus: the durable adapter under
// "<store>-event-storage", the history navigator under NavigationEvent.
// Handlers run synchronously on the dispatching goroutine, in registration
// order. A panicking handler is logged and does not stop the others.
package event

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/storekit/internal/observer"
)

// Event is one dispatched notification.
type Event struct {
	Name   string
	Detail any
}

// Handler receives events.
type Handler func(Event)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus routes events by name.
//
// Thread-safety: safe for concurrent use. Handlers are never called with the
// bus lock held, so a handler may dispatch or subscribe.
type Bus struct {
	mu       sync.Mutex
	handlers map[string]*observer.Registry[Handler]
	logger   *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string]*observer.Registry[Handler]),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBus = NewBus()

// Default returns the process-wide bus used when no bus is configured.
func Default() *Bus {
	return defaultBus
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	reg, ok := b.handlers[name]
	if !ok {
		reg = observer.New[Handler]()
		b.handlers[name] = reg
	}
	b.mu.Unlock()
	return reg.Add(h)
}

// Dispatch delivers an event to every handler of name and returns how many
// handlers ran.
func (b *Bus) Dispatch(name string, detail any) int {
	b.mu.Lock()
	reg, ok := b.handlers[name]
	b.mu.Unlock()
	if !ok {
		return 0
	}

	ev := Event{Name: name, Detail: detail}
	handlers := reg.Snapshot()
	for _, h := range handlers {
		b.call(h, ev)
	}
	return len(handlers)
}

// Names returns every event name with at least one live handler.
func (b *Bus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.handlers))
	for _, name := range slices.Sorted(maps.Keys(b.handlers)) {
		if b.handlers[name].Len() > 0 {
			names = append(names, name)
		}
	}
	return names
}

func (b *Bus) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", ev.Name,
				"error", fmt.Errorf("%v", r),
			)
		}
	}()
	h(ev)
}

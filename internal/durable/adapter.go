package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/roach88/storekit/internal/clock"
	"github.com/roach88/storekit/internal/event"
	"github.com/roach88/storekit/internal/hashid"
	"github.com/roach88/storekit/internal/kv"
	"github.com/roach88/storekit/internal/schema"
)

// ErrValidation is returned by writes in strict mode when the snapshot fails
// its schema. The returned error also wraps the *schema.ValidationError.
var ErrValidation = errors.New("durable: validation failed")

// Envelope is the serialized form of a slot.
type Envelope struct {
	Date  int64          `json:"date"`
	State map[string]any `json:"state"`
}

// Change is the detail of a storage event.
type Change struct {
	Prev map[string]any
	Cur  map[string]any
}

// Listener receives the new and previous snapshot of an accepted write.
type Listener func(cur, prev map[string]any)

// Option configures an Adapter.
type Option func(*Adapter)

// WithBus sets the bus storage events are dispatched on.
// Default: event.Default().
func WithBus(bus *event.Bus) Option {
	return func(a *Adapter) {
		if bus != nil {
			a.bus = bus
		}
	}
}

// WithClock sets the clock stamping Envelope.Date.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) {
		a.clock = clock.OrSystem(c)
	}
}

// WithLogger sets the adapter's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithKey stores the envelope under key instead of the store name.
func WithKey(key string) Option {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}

// WithStrict makes writes that fail validation return ErrValidation instead
// of nil. The write is discarded either way.
func WithStrict() Option {
	return func(a *Adapter) {
		a.strict = true
	}
}

// Adapter is the single writer of one store's KV slot.
//
// Thread-safety: safe for concurrent use. Writes are serialized; storage
// events are dispatched after the write lock is released, so listeners may
// write to the adapter.
type Adapter struct {
	name      string
	key       string
	kv        kv.KV
	validator schema.Validator
	bus       *event.Bus
	clock     clock.Clock
	logger    *slog.Logger
	strict    bool

	mu sync.Mutex
}

// New creates an adapter for store name over store. A nil validator accepts
// every snapshot.
func New(name string, store kv.KV, validator schema.Validator, opts ...Option) *Adapter {
	if validator == nil {
		validator = schema.Any
	}
	a := &Adapter{
		name:      name,
		key:       name,
		kv:        store,
		validator: validator,
		bus:       event.Default(),
		clock:     clock.System{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the store name.
func (a *Adapter) Name() string { return a.name }

// Key returns the KV key of the slot.
func (a *Adapter) Key() string { return a.key }

// EventName returns the bus event name of this store.
func (a *Adapter) EventName() string { return EventName(a.name) }

// EventName returns the bus event name for store name.
func EventName(name string) string { return name + "-event-storage" }

// GetStoreData returns the stored snapshot, or an empty one when nothing is
// stored. The result is a fresh copy.
func (a *Adapter) GetStoreData(ctx context.Context) (map[string]any, error) {
	env, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	return env.State, nil
}

// GetEnvelope returns the stored envelope. Date is zero when nothing is stored.
func (a *Adapter) GetEnvelope(ctx context.Context) (Envelope, error) {
	return a.read(ctx)
}

// GetItem returns the stored value of key, or def when key is absent or null.
func (a *Adapter) GetItem(ctx context.Context, key string, def any) (any, error) {
	state, err := a.GetStoreData(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := state[key]; ok && v != nil {
		return v, nil
	}
	return def, nil
}

// SetItem validates the snapshot with key set to value and, when it passes,
// persists it and announces the change.
func (a *Adapter) SetItem(ctx context.Context, key string, value any) error {
	normalized, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", a.name, key, err)
	}
	return a.commit(ctx, "set_item", func(state map[string]any) map[string]any {
		state[key] = normalized
		return state
	})
}

// SetStoreData validates data as the whole snapshot and, when it passes,
// persists it and announces the change.
func (a *Adapter) SetStoreData(ctx context.Context, data map[string]any) error {
	normalized, err := normalize(data)
	if err != nil {
		return fmt.Errorf("set %s: %w", a.name, err)
	}
	next, _ := normalized.(map[string]any)
	if next == nil {
		next = map[string]any{}
	}
	return a.commit(ctx, "set_store_data", func(map[string]any) map[string]any {
		return next
	})
}

// RemoveItem deletes key from the snapshot and persists the result. The
// snapshot is not validated and no event is dispatched.
func (a *Adapter) RemoveItem(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	env, err := a.read(ctx)
	if err != nil {
		return err
	}
	if _, ok := env.State[key]; !ok {
		return nil
	}
	delete(env.State, key)
	if err := a.write(ctx, env.State); err != nil {
		return err
	}
	a.logger.Debug("durable item removed", "store", a.name, "key", key)
	return nil
}

// Subscribe registers fn for every accepted write. Each call receives its
// own copies of the snapshots.
func (a *Adapter) Subscribe(fn Listener) (unsubscribe func()) {
	return a.bus.Subscribe(a.EventName(), func(ev event.Event) {
		c, ok := ev.Detail.(Change)
		if !ok {
			return
		}
		fn(copyState(c.Cur), copyState(c.Prev))
	})
}

// commit runs one validated write: read, apply, validate, persist, announce.
func (a *Adapter) commit(ctx context.Context, op string, apply func(state map[string]any) map[string]any) error {
	a.mu.Lock()

	env, err := a.read(ctx)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	prev := env.State
	next := apply(copyState(prev))

	if err := a.validator.Validate(ctx, next); err != nil {
		a.mu.Unlock()
		a.logger.Error("durable write rejected",
			"store", a.name,
			"op", op,
			"error", err,
		)
		if a.strict {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil
	}

	if err := a.write(ctx, next); err != nil {
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()

	a.logger.Debug("durable write", "store", a.name, "op", op)
	a.bus.Dispatch(a.EventName(), Change{Prev: prev, Cur: next})
	return nil
}

func (a *Adapter) read(ctx context.Context) (Envelope, error) {
	raw, err := a.kv.Get(ctx, a.key)
	if errors.Is(err, kv.ErrNotFound) {
		return Envelope{State: map[string]any{}}, nil
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("read %s: %w", a.name, err)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		a.logger.Error("durable slot unreadable, treating as empty",
			"store", a.name,
			"error", err,
		)
		return Envelope{State: map[string]any{}}, nil
	}
	if env.State == nil {
		env.State = map[string]any{}
	}
	return env, nil
}

func (a *Adapter) write(ctx context.Context, state map[string]any) error {
	data, err := hashid.MarshalCanonical(Envelope{Date: a.clock.Now().UnixMilli(), State: state})
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.name, err)
	}
	if err := a.kv.Set(ctx, a.key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", a.name, err)
	}
	return nil
}

// normalize converts v to the shape it has after a round trip through
// storage: objects become map[string]any, numbers float64.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func copyState(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(state).(map[string]any)
}

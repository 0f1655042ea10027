package history

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mohae/deepcopy"

	"github.com/roach88/storekit/internal/change"
	"github.com/roach88/storekit/internal/clock"
	"github.com/roach88/storekit/internal/event"
	"github.com/roach88/storekit/internal/observer"
)

// Record is one keyed value stored in a navigation entry.
type Record struct {
	Key       string `json:"key" mapstructure:"key"`
	Data      any    `json:"data" mapstructure:"data"`
	CreatedAt int64  `json:"createdAt" mapstructure:"createdAt"` // epoch milliseconds
}

// Listener receives the new and previous value of one key.
type Listener func(value, old any)

type subscription struct {
	key string
	fn  Listener
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock sets the clock stamping Record.CreatedAt.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) {
		a.clock = clock.OrSystem(c)
	}
}

// Adapter is the single writer of the record map in a Navigator's entries.
//
// Thread-safety: safe for concurrent use. Writes are serialized with each
// other; navigation events may arrive on any goroutine. Subscribers run
// after the write is in the entry, on the writing goroutine, with no adapter
// lock held.
type Adapter struct {
	nav    Navigator
	logger *slog.Logger
	clock  clock.Clock

	wmu     sync.Mutex // serializes read-modify-write of the entry
	mu      sync.RWMutex
	records map[string]Record

	subs      *observer.Registry[subscription]
	detachBus func()
}

// New creates an adapter over nav, listening for navigation on bus.
// A nil bus means event.Default(). The record map is loaded from the current
// entry.
func New(nav Navigator, bus *event.Bus, opts ...Option) *Adapter {
	if bus == nil {
		bus = event.Default()
	}
	a := &Adapter{
		nav:    nav,
		logger: slog.Default(),
		clock:  clock.System{},
		subs:   observer.New[subscription](),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.records = a.readEntry()
	a.detachBus = bus.Subscribe(NavigationEvent, a.onNavigation)
	return a
}

// Close stops following navigation events.
func (a *Adapter) Close() {
	a.detachBus()
}

// SetValue stores value under key and reports whether anything changed.
//
// The write and its notifications are suppressed when value deep-equals the
// current value. Otherwise a new record replaces the old one, the whole map
// is written into the current entry, and subscribers of key are called with
// (value, old).
func (a *Adapter) SetValue(key string, value any) bool {
	a.wmu.Lock()

	a.mu.RLock()
	prev, ok := a.records[key]
	a.mu.RUnlock()

	var old any
	if ok {
		old = prev.Data
	}
	if change.Deep(old, value) {
		a.wmu.Unlock()
		return false
	}

	rec := Record{Key: key, Data: deepcopy.Copy(value), CreatedAt: a.clock.Now().UnixMilli()}
	a.mu.Lock()
	next := maps.Clone(a.records)
	next[key] = rec
	a.records = next
	a.mu.Unlock()

	a.writeEntry(next)
	a.wmu.Unlock()

	a.logger.Debug("history record written", "key", key)
	a.notify(key, value, old)
	return true
}

// GetItem returns a copy of the record for key.
func (a *Adapter) GetItem(key string) (Record, bool) {
	a.mu.RLock()
	rec, ok := a.records[key]
	a.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	rec.Data = deepcopy.Copy(rec.Data)
	return rec, true
}

// GetValue returns a copy of the value for key, or nil.
func (a *Adapter) GetValue(key string) any {
	rec, ok := a.GetItem(key)
	if !ok {
		return nil
	}
	return rec.Data
}

// RemoveItem drops the record for key and reports whether it existed.
// Subscribers are not notified.
func (a *Adapter) RemoveItem(key string) bool {
	a.wmu.Lock()
	defer a.wmu.Unlock()

	a.mu.Lock()
	if _, ok := a.records[key]; !ok {
		a.mu.Unlock()
		return false
	}
	next := maps.Clone(a.records)
	delete(next, key)
	a.records = next
	a.mu.Unlock()

	a.writeEntry(next)
	return true
}

// Keys returns the stored keys in sorted order.
func (a *Adapter) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Sorted(maps.Keys(a.records))
}

// Subscribe registers fn for changes to key.
func (a *Adapter) Subscribe(key string, fn Listener) (unsubscribe func()) {
	return a.subs.Add(subscription{key: key, fn: fn})
}

func (a *Adapter) notify(key string, value, old any) {
	for _, s := range a.subs.Snapshot() {
		if s.key == key {
			s.fn(deepcopy.Copy(value), deepcopy.Copy(old))
		}
	}
}

func (a *Adapter) onNavigation(ev event.Event) {
	nav, ok := ev.Detail.(Navigation)
	if !ok {
		return
	}
	switch nav.Action {
	case ActionPush:
		a.mu.RLock()
		current := a.records
		a.mu.RUnlock()
		a.writeEntry(current)
	case ActionReplace, ActionPop:
		records := a.readEntry()
		a.mu.Lock()
		a.records = records
		a.mu.Unlock()
	case ActionUnload:
		a.mu.Lock()
		a.records = map[string]Record{}
		a.mu.Unlock()
		state := a.nav.State()
		delete(state, ReservedKey)
		a.nav.ReplaceState(state)
	}
	a.logger.Debug("history navigation", "action", nav.Action, "index", nav.Index)
}

// writeEntry stores records under ReservedKey in the current entry, keeping
// the rest of the entry's state.
func (a *Adapter) writeEntry(records map[string]Record) {
	state := a.nav.State()
	state[ReservedKey] = deepcopy.Copy(records)
	a.nav.ReplaceState(state)
}

// readEntry decodes the record map of the current entry. Malformed records
// are logged and skipped.
func (a *Adapter) readEntry() map[string]Record {
	records := map[string]Record{}
	switch raw := a.nav.State()[ReservedKey].(type) {
	case nil:
	case map[string]Record:
		maps.Copy(records, raw)
	case map[string]any:
		for key, v := range raw {
			rec, err := decodeRecord(v)
			if err != nil {
				a.logger.Error("history record dropped", "key", key, "error", err)
				continue
			}
			records[key] = rec
		}
	default:
		a.logger.Error("history entry ignored",
			"error", fmt.Errorf("%s holds %T", ReservedKey, raw))
	}
	return records
}

func decodeRecord(v any) (Record, error) {
	if rec, ok := v.(Record); ok {
		return rec, nil
	}
	var rec Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Record{}, err
	}
	if err := decoder.Decode(v); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

package durable

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/roach88/storekit/internal/change"
)

// Selector picks the part of a snapshot a subscriber cares about.
type Selector func(state map[string]any) any

// SelectorSubscribe registers fn for accepted writes that change the selected
// slice. Slices are compared with change.Shallow.
func (a *Adapter) SelectorSubscribe(selector Selector, fn Listener) (unsubscribe func()) {
	return a.Subscribe(func(cur, prev map[string]any) {
		if change.Shallow(selector(cur), selector(prev)) {
			return
		}
		fn(cur, prev)
	})
}

// Decode converts a snapshot into T using json field names.
func Decode[T any](state map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(state); err != nil {
		return out, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}

// Load reads the stored snapshot of a as T.
func Load[T any](ctx context.Context, a *Adapter) (T, error) {
	state, err := a.GetStoreData(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](state)
}

// Mirror returns a commit listener that writes every committed snapshot to a
// as a whole-object write. Register it with a model's Subscribe. Rejected or
// failed writes are logged by the adapter.
func Mirror[T any](ctx context.Context, a *Adapter) func(next, prev T) {
	return func(next, _ T) {
		state, err := toState(next)
		if err != nil {
			a.logger.Error("durable mirror skipped", "store", a.name, "error", err)
			return
		}
		if err := a.SetStoreData(ctx, state); err != nil {
			a.logger.Error("durable mirror failed", "store", a.name, "error", err)
		}
	}
}

func toState(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("snapshot is not an object: %w", err)
	}
	return state, nil
}

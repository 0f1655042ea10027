package history

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mohae/deepcopy"

	"github.com/roach88/storekit/internal/hashid"
)

// RecordKey derives the record key of a binding from its initial value and
// the caller's instance id. Two bindings with equal initial values but
// different ids never share a record.
func RecordKey(initial any, instanceID string) (string, error) {
	h, err := hashid.Hash(initial)
	if err != nil {
		return "", fmt.Errorf("record key: %w", err)
	}
	return h + "/" + instanceID, nil
}

// Binding is a typed view of one record.
type Binding[T any] struct {
	a       *Adapter
	key     string
	initial T
}

// Bind returns a typed view of the record keyed by RecordKey(initial, instanceID).
func Bind[T any](a *Adapter, initial T, instanceID string) (*Binding[T], error) {
	key, err := RecordKey(initial, instanceID)
	if err != nil {
		return nil, err
	}
	return &Binding[T]{a: a, key: key, initial: initial}, nil
}

// Key returns the record key.
func (b *Binding[T]) Key() string {
	return b.key
}

// Value returns the stored value, or the initial value when the record is
// absent or cannot be decoded as T.
func (b *Binding[T]) Value() T {
	v, ok := b.decode(b.a.GetValue(b.key))
	if !ok {
		return copyOf(b.initial)
	}
	return v
}

// Set stores v and reports whether it changed the record.
func (b *Binding[T]) Set(v T) bool {
	return b.a.SetValue(b.key, v)
}

// Subscribe registers fn for changes to the record.
func (b *Binding[T]) Subscribe(fn func(value, old T)) (unsubscribe func()) {
	return b.a.Subscribe(b.key, func(value, old any) {
		next, _ := b.decode(value)
		prev, ok := b.decode(old)
		if !ok {
			prev = b.initial
		}
		fn(next, prev)
	})
}

// decode converts a stored value to T. Values written through a Binding are
// already T; values restored from an entry written elsewhere may be maps.
func (b *Binding[T]) decode(v any) (T, bool) {
	var out T
	if v == nil {
		return out, false
	}
	if t, ok := v.(T); ok {
		return t, true
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, false
	}
	if err := decoder.Decode(v); err != nil {
		b.a.logger.Debug("history value not decodable", "key", b.key, "error", err)
		return out, false
	}
	return out, true
}

// Mirror returns a commit listener that copies every committed snapshot into
// the record for key. Register it with a model's Subscribe.
func Mirror[T any](a *Adapter, key string) func(next, prev T) {
	return func(next, _ T) {
		a.SetValue(key, next)
	}
}

func copyOf[T any](v T) T {
	c, ok := deepcopy.Copy(v).(T)
	if !ok {
		return v
	}
	return c
}

// Package kv provides the key-value backends behind durable stores.
//
// Each store occupies one slot: one key holding one serialized string. The
// durable adapter is the only writer of its slot.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: not found")

// KV is a string key-value backend.
type KV interface {
	// Get returns the value of key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys in sorted order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

package container

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds at most one container per (store name, container key) for
// its whole lifetime.
//
// Thread-safety: safe for concurrent use. Each key is created exactly once;
// goroutines resolving the same key wait for the first factory call. The
// registry lock is not held while a factory runs, so initializers may resolve
// other keys.
type Registry struct {
	mu         sync.Mutex
	containers map[string]*slot
}

type slot struct {
	once sync.Once
	c    any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{containers: make(map[string]*slot)}
}

// Key joins a store name and a container key into a registry key.
func Key(storeName, containerKey string) string {
	return storeName + "/" + containerKey
}

// Resolve returns the container bound to (storeName, containerKey), calling
// factory to create it on first use.
//
// Returns TypeMismatchError when the key is already bound to a container of a
// different state type.
func Resolve[T any](r *Registry, storeName, containerKey string, factory func() *Container[T]) (*Container[T], error) {
	key := Key(storeName, containerKey)

	r.mu.Lock()
	s, ok := r.containers[key]
	if !ok {
		s = &slot{}
		r.containers[key] = s
	}
	r.mu.Unlock()

	s.once.Do(func() {
		c := factory()
		r.mu.Lock()
		s.c = c
		r.mu.Unlock()
	})

	c, ok := s.c.(*Container[T])
	if !ok {
		return nil, &TypeMismatchError{
			Key:      key,
			Existing: fmt.Sprintf("%T", s.c),
			Wanted:   fmt.Sprintf("%T", (*Container[T])(nil)),
		}
	}
	return c, nil
}

// Keys returns all registry keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.containers))
	for k := range r.containers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of registered containers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.containers)
}

// Package observer provides the ordered callback registry behind every
// Subscribe method in storekit.
//
// Callbacks are kept in registration order. Removal is idempotent and takes
// effect before the next Snapshot, so a callback unsubscribed during a
// notification still receives the notification already in flight but no
// later ones.
package observer

import "sync"

// Registry is an ordered set of callback handles.
// Thread-safety: all methods are safe for concurrent use. Callbacks are never
// invoked by the registry itself, so callers control which locks are held.
type Registry[F any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[F]
}

type entry[F any] struct {
	id uint64
	fn F
}

// New creates an empty registry.
func New[F any]() *Registry[F] {
	return &Registry[F]{}
}

// Add registers fn and returns a function that removes it.
// Adding the same function twice registers two independent handles.
func (r *Registry[F]) Add(fn F) (remove func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, entry[F]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry[F]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			// Copy instead of reslicing in place so snapshots handed out
			// earlier keep their contents.
			next := make([]entry[F], 0, len(r.entries)-1)
			next = append(next, r.entries[:i]...)
			next = append(next, r.entries[i+1:]...)
			r.entries = next
			return
		}
	}
}

// Snapshot returns the registered callbacks in registration order.
// The returned slice is owned by the caller.
func (r *Registry[F]) Snapshot() []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]F, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.fn
	}
	return out
}

// Len returns the number of registered callbacks.
func (r *Registry[F]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

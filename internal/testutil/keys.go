package testutil

import (
	"fmt"
	"sync"
)

// SequenceKeys generates predictable keys: prefix-1, prefix-2, ...
//
// Models and adapters take a key generator so tests can name containers and
// instances deterministically. The same sequence of calls with the same
// prefix always produces the same keys, which keeps golden traces stable.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceKeys creates a generator. An empty prefix becomes "key".
func NewSequenceKeys(prefix string) *SequenceKeys {
	if prefix == "" {
		prefix = "key"
	}
	return &SequenceKeys{prefix: prefix}
}

// Generate returns the next key.
func (g *SequenceKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedKey always returns the same key.
//
// Thread-safety: FixedKey is stateless and safe for concurrent use.
type FixedKey string

// Generate returns the fixed key, or "test-key" when empty.
func (k FixedKey) Generate() string {
	if k == "" {
		return "test-key"
	}
	return string(k)
}

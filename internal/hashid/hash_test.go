package hashid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHash(t *testing.T, v any) string {
	t.Helper()
	h, err := Hash(v)
	require.NoError(t, err)
	return h
}

func TestHashDeterminism(t *testing.T) {
	data := map[string]any{
		"query": "shoes",
		"page":  2,
		"tags":  []string{"a", "b"},
	}

	h1, err := Hash(data)
	require.NoError(t, err)
	h2, err := Hash(data)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "Hash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashIgnoresKeyOrderAndRepresentation(t *testing.T) {
	type filter struct {
		Page  int    `json:"page"`
		Query string `json:"query"`
	}

	fromStruct := mustHash(t, filter{Page: 2, Query: "shoes"})
	fromMap := mustHash(t, map[string]any{"query": "shoes", "page": 2})

	assert.Equal(t, fromStruct, fromMap)
}

func TestHashChangesWithInput(t *testing.T) {
	h1 := mustHash(t, map[string]any{"a": 1})
	h2 := mustHash(t, map[string]any{"a": 2})
	h3 := mustHash(t, map[string]any{"b": 1})

	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestSnapshotHashUsesSeparateDomain(t *testing.T) {
	state := map[string]any{"count": 1}

	record := mustHash(t, state)
	snapshot, err := SnapshotHash(state)
	require.NoError(t, err)

	assert.NotEqual(t, record, snapshot)
}

func TestHashRejectsUnsupported(t *testing.T) {
	_, err := Hash(func() {})
	assert.Error(t, err)

	_, err = SnapshotHash(make(chan int))
	assert.Error(t, err)
}

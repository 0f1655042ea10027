package container

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveIsSingletonPerKey(t *testing.T) {
	r := NewRegistry()
	var created atomic.Int32
	factory := func() *Container[counter] {
		created.Add(1)
		return New(context.Background(), "c", Value(counter{}), WithLogger(quietLogger()))
	}

	var wg sync.WaitGroup
	results := make([]*Container[counter], 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := Resolve(r, "app", "counter", factory)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestRegistry_DistinctKeysAreIndependent(t *testing.T) {
	r := NewRegistry()
	a, err := Resolve(r, "app", "a", func() *Container[counter] {
		return New(context.Background(), "a", Value(counter{Count: 1}), WithLogger(quietLogger()))
	})
	require.NoError(t, err)
	b, err := Resolve(r, "other", "a", func() *Container[counter] {
		return New(context.Background(), "b", Value(counter{Count: 2}), WithLogger(quietLogger()))
	})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, []string{"app/a", "other/a"}, r.Keys())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_TypeMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := Resolve(r, "app", "x", func() *Container[counter] {
		return New(context.Background(), "x", Value(counter{}), WithLogger(quietLogger()))
	})
	require.NoError(t, err)

	_, err = Resolve(r, "app", "x", func() *Container[string] {
		t.Fatal("factory must not run for an existing key")
		return nil
	})
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "app/x", mismatch.Key)
}

func TestRegistry_FactoryMayResolveOtherKeys(t *testing.T) {
	r := NewRegistry()
	outer, err := Resolve(r, "app", "outer", func() *Container[counter] {
		inner, err := Resolve(r, "app", "inner", func() *Container[counter] {
			return New(context.Background(), "inner", Value(counter{Count: 3}), WithLogger(quietLogger()))
		})
		require.NoError(t, err)
		return New(context.Background(), "outer", Value(counter{Count: inner.Get().Count + 1}), WithLogger(quietLogger()))
	})
	require.NoError(t, err)
	assert.Equal(t, 4, outer.Get().Count)
}

package model

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storekit/internal/testutil"
)

type counter struct {
	Count int      `json:"count"`
	Label string   `json:"label"`
	Tags  []string `json:"tags,omitempty"`
}

func newTestStore(opts ...Option) *Store {
	base := []Option{
		WithKeyGenerator(testutil.NewSequenceKeys("model")),
		WithClock(testutil.NewDeterministicClock()),
	}
	return DefineStore("app", map[string]any{"region": "eu"}, append(base, opts...)...)
}

func defineCounter(t *testing.T, s *Store, initial counter) *StaticModel[counter] {
	t.Helper()
	m, err := DefineStatic(context.Background(), s, Value(initial))
	require.NoError(t, err)
	return m
}

func TestSetState_MapMergeAndReplace(t *testing.T) {
	ctx := context.Background()
	m, err := DefineStatic(ctx, newTestStore(), Value(map[string]any{"a": 0, "b": 2}))
	require.NoError(t, err)

	_, err = m.SetState(ctx, map[string]any{"a": 1}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, m.Get())

	_, err = m.SetState(ctx, map[string]any{"a": 1}, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, m.Get())
}

func TestSetState_StructMerge(t *testing.T) {
	ctx := context.Background()
	m := defineCounter(t, newTestStore(), counter{Count: 1, Label: "clicks"})

	t.Run("patch merges top level", func(t *testing.T) {
		_, err := m.Set(ctx, Patch{"count": 3})
		require.NoError(t, err)
		assert.Equal(t, counter{Count: 3, Label: "clicks"}, m.Get())
	})

	t.Run("patch values are converted", func(t *testing.T) {
		_, err := m.Set(ctx, Patch{"count": float64(4), "tags": []any{"x"}})
		require.NoError(t, err)
		assert.Equal(t, counter{Count: 4, Label: "clicks", Tags: []string{"x"}}, m.Get())
	})

	t.Run("patch may set zero values", func(t *testing.T) {
		_, err := m.Set(ctx, Patch{"label": ""})
		require.NoError(t, err)
		assert.Equal(t, "", m.Get().Label)
		assert.Equal(t, 4, m.Get().Count)
	})

	t.Run("replace patch drops other fields", func(t *testing.T) {
		_, err := m.Replace(ctx, Patch{"label": "fresh"})
		require.NoError(t, err)
		assert.Equal(t, counter{Label: "fresh"}, m.Get())
	})

	t.Run("whole value replaces", func(t *testing.T) {
		_, err := m.Set(ctx, counter{Count: 9})
		require.NoError(t, err)
		assert.Equal(t, counter{Count: 9}, m.Get())
	})

	t.Run("updater always merges", func(t *testing.T) {
		_, err := m.SetState(ctx, func(c counter) Patch {
			return Patch{"label": "n"}
		}, true)
		require.NoError(t, err)
		assert.Equal(t, counter{Count: 9, Label: "n"}, m.Get())
	})
}

func TestSetState_PreviousSnapshotIsNotMutated(t *testing.T) {
	ctx := context.Background()
	m, err := DefineStatic(ctx, newTestStore(), Value(map[string]any{"a": 0}))
	require.NoError(t, err)

	before := m.Get()
	_, err = m.Set(ctx, Patch{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 0}, before)
}

func TestSetState_Errors(t *testing.T) {
	ctx := context.Background()
	m := defineCounter(t, newTestStore(), counter{Count: 1})

	_, err := m.Set(ctx, Patch{"missing": 1})
	require.Error(t, err)
	assert.True(t, hasCode(err, ErrCodeUnknownField))
	assert.Contains(t, err.Error(), "model=app/model-1")

	_, err = m.Set(ctx, 42)
	assert.True(t, hasCode(err, ErrCodeUnsupportedArg))

	_, err = m.Set(ctx, Patch{"count": "not a number"})
	assert.True(t, hasCode(err, ErrCodeDecode))

	assert.Equal(t, counter{Count: 1}, m.Get(), "failed writes leave state untouched")
}

func TestSetState_LogsWrites(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()
	m := defineCounter(t, newTestStore(WithLogger(logger)), counter{})

	_, err := m.Set(ctx, Patch{"count": 1})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "msg=write")
	assert.Contains(t, logs.String(), "model=app/"+m.Key())
}

func TestGuardVeto(t *testing.T) {
	ctx := context.Background()
	m := defineCounter(t, newTestStore(), counter{Count: 1})

	var notified int
	m.Subscribe(func(newState, oldState counter) { notified++ })
	m.UseGuard(func(ctx context.Context, next, prev counter) bool { return next.Count >= 0 })

	res, err := m.Set(ctx, Patch{"count": -5})
	require.NoError(t, err)

	assert.False(t, res.Committed)
	assert.Equal(t, counter{Count: 1}, m.Get())
	assert.Zero(t, notified)

	res, err = m.Set(ctx, Patch{"count": 5})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, 1, notified)
}

func TestIntercept(t *testing.T) {
	ctx := context.Background()
	m := defineCounter(t, newTestStore(), counter{})

	m.UseIntercept(func(ctx context.Context, next, prev counter) (counter, error) {
		if next.Count > 10 {
			next.Count = 10
		}
		return next, nil
	})

	_, err := m.Set(ctx, Patch{"count": 50})
	require.NoError(t, err)
	assert.Equal(t, 10, m.Get().Count)
}

func TestBindActions_Accumulate(t *testing.T) {
	ctx := context.Background()
	m := defineCounter(t, newTestStore(), counter{})

	constant := func(v string) ActionFunc {
		return func(context.Context, ...any) (any, error) { return v, nil }
	}

	m.BindActions(func(get Getter[counter], set Setter, deps Dependencies) map[string]ActionFunc {
		return map[string]ActionFunc{"x": constant("x1")}
	})
	m.BindActions(func(get Getter[counter], set Setter, deps Dependencies) map[string]ActionFunc {
		return map[string]ActionFunc{"y": constant("y1")}
	})

	out := m.Instance()
	assert.Contains(t, out.Actions, "x")
	assert.Contains(t, out.Actions, "y")
	assert.Equal(t, []string{"x", "y"}, m.ActionNames())

	var heard [][]any
	out.Actions["x"].SubscribeAction(func(args ...any) { heard = append(heard, args) })

	m.BindActions(func(get Getter[counter], set Setter, deps Dependencies) map[string]ActionFunc {
		return map[string]ActionFunc{"x": constant("x2")}
	})

	got, err := m.Instance().Call(ctx, "x", 1, "two")
	require.NoError(t, err)
	assert.Equal(t, "x2", got, "rebinding overwrites")
	assert.Equal(t, [][]any{{1, "two"}}, heard, "subscribers survive rebinding")

	_, err = m.Instance().Call(ctx, "nope")
	assert.True(t, hasCode(err, ErrCodeUnknownAction))
}

func TestBindActions_GetAndSet(t *testing.T) {
	ctx := context.Background()
	m := defineCounter(t, newTestStore(), counter{Count: 1})

	m.BindActions(func(get Getter[counter], set Setter, deps Dependencies) map[string]ActionFunc {
		return map[string]ActionFunc{
			"add": func(ctx context.Context, args ...any) (any, error) {
				_, err := set(ctx, Patch{"count": get().Count + args[0].(int)}, false)
				return get().Count, err
			},
		}
	})

	var transitions [][2]int
	out := m.Instance()
	unsubscribe := out.Subscribe(func(newState, oldState counter) {
		transitions = append(transitions, [2]int{oldState.Count, newState.Count})
	})

	got, err := out.Call(ctx, "add", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, out.Current().Count)
	assert.Equal(t, 1, out.State.Count, "State is the snapshot at instantiation")

	unsubscribe()
	_, err = out.Call(ctx, "add", 1)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}}, transitions)
}

func TestBindGetters(t *testing.T) {
	m := defineCounter(t, newTestStore(), counter{Count: 2, Label: "x"})
	m.BindGetters(map[string]GetterFunc[counter]{
		"double": func(c counter) any { return c.Count * 2 },
	})
	m.BindGetters(map[string]GetterFunc[counter]{
		"shout": func(c counter) any { return c.Label + "!" },
	})

	out := m.Instance()
	assert.Equal(t, map[string]any{"double": 4, "shout": "x!"}, out.Getters)
}

func TestDependencies(t *testing.T) {
	ctx := context.Background()
	nested := map[string]any{"inner": "v"}
	source := map[string]any{"nested": nested}
	s := DefineStore("app", source,
		WithClock(testutil.NewDeterministicClock()),
		WithKeyGenerator(testutil.NewSequenceKeys("model")),
	)
	nested["inner"] = "changed after define"

	var got Dependencies
	_, err := DefineStatic(ctx, s, Sync(func(ctx context.Context, deps Dependencies) (counter, error) {
		got = deps
		deps.Context["nested"].(map[string]any)["inner"] = "mutated by consumer"
		return counter{}, nil
	}))
	require.NoError(t, err)

	assert.False(t, got.IsDynamic)
	assert.Empty(t, got.DynamicKey)
	assert.Equal(t, testutil.Epoch.Add(time.Millisecond), got.CreatedAt)
	assert.Equal(t, map[string]any{"nested": map[string]any{"inner": "v"}}, s.Context())
}

func TestAsyncInitializer(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	m, err := DefineStatic(ctx, newTestStore(), Async(func(ctx context.Context, deps Dependencies) (counter, error) {
		<-release
		return counter{Count: 7}, nil
	}))
	require.NoError(t, err)

	assert.False(t, m.Ready())
	assert.Equal(t, counter{}, m.Get())

	close(release)
	require.NoError(t, m.Wait(ctx))
	assert.True(t, m.Ready())
	assert.Equal(t, 7, m.Get().Count)
}

func TestDynamicModel_InstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	var seen []Dependencies
	var mu sync.Mutex
	m := DefineDynamic(s, Sync(func(ctx context.Context, deps Dependencies) (counter, error) {
		mu.Lock()
		seen = append(seen, deps)
		mu.Unlock()
		return counter{Label: deps.DynamicKey}, nil
	}))
	m.BindActions(func(get Getter[counter], set Setter, deps Dependencies) map[string]ActionFunc {
		return map[string]ActionFunc{
			"inc": func(ctx context.Context, args ...any) (any, error) {
				_, err := set(ctx, func(c counter) Patch { return Patch{"count": c.Count + 1} }, false)
				return nil, err
			},
			"key": func(context.Context, ...any) (any, error) { return deps.DynamicKey, nil },
		}
	})

	a, err := m.Instance(ctx, "a")
	require.NoError(t, err)
	b, err := m.Instance(ctx, "b")
	require.NoError(t, err)

	_, err = a.Call(ctx, "inc")
	require.NoError(t, err)
	_, err = a.Call(ctx, "inc")
	require.NoError(t, err)

	assert.Equal(t, counter{Count: 2, Label: "a"}, a.Current())
	assert.Equal(t, counter{Label: "b"}, b.Current())

	key, err := b.Call(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "b", key)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsDynamic)
	assert.Equal(t, "a", seen[0].DynamicKey)

	again, err := m.Instance(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.State.Count, "same id resolves the same container")
	assert.Len(t, seen, 2, "initializer runs once per id")

	assert.Equal(t, []string{"a", "b"}, m.IDs())
	assert.Equal(t, []string{"app/model-1:a", "app/model-1:b"}, s.Registry().Keys())
}

func TestDynamicModel_LateBindActionsReachExistingInstances(t *testing.T) {
	ctx := context.Background()
	m := DefineDynamic(newTestStore(), Value(counter{}))

	_, err := m.Instance(ctx, "a")
	require.NoError(t, err)

	m.BindActions(func(get Getter[counter], set Setter, deps Dependencies) map[string]ActionFunc {
		return map[string]ActionFunc{
			"ping": func(context.Context, ...any) (any, error) { return "pong", nil },
		}
	})

	out, err := m.Instance(ctx, "a")
	require.NoError(t, err)
	got, err := out.Call(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

func TestDynamicModel_WaitUnknownID(t *testing.T) {
	m := DefineDynamic(newTestStore(), Value(counter{}))
	assert.NoError(t, m.Wait(context.Background(), "never"))
}

func TestSharedRegistry(t *testing.T) {
	ctx := context.Background()
	s1 := newTestStore()
	s2 := DefineStore("other", nil, WithRegistry(s1.Registry()), WithKeyGenerator(testutil.FixedKey("m")))

	defineCounter(t, s1, counter{})
	_, err := DefineStatic(ctx, s2, Value(counter{}))
	require.NoError(t, err)

	assert.Same(t, s1.Registry(), s2.Registry())
	assert.Equal(t, []string{"app/model-1", "other/m"}, s1.Registry().Keys())
	assert.Equal(t, map[string]any{}, s2.Context())
}

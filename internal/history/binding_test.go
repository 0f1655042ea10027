package history

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storekit/internal/event"
	"github.com/roach88/storekit/internal/hashid"
	"github.com/roach88/storekit/internal/model"
	"github.com/roach88/storekit/internal/testutil"
)

type filters struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
}

func TestRecordKey(t *testing.T) {
	initial := filters{Page: 1}

	k1, err := RecordKey(initial, "list")
	require.NoError(t, err)
	k2, err := RecordKey(initial, "sidebar")
	require.NoError(t, err)
	again, err := RecordKey(filters{Page: 1}, "list")
	require.NoError(t, err)

	sum, err := hashid.Hash(initial)
	require.NoError(t, err)
	assert.Equal(t, sum+"/list", k1)
	assert.NotEqual(t, k1, k2, "same initial value, different ids")
	assert.Equal(t, k1, again)

	_, err = RecordKey(func() {}, "x")
	assert.Error(t, err)
}

func TestBinding_ValueSetSubscribe(t *testing.T) {
	a, _ := newAdapter(t)
	b, err := Bind(a, filters{Page: 1}, "list")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(b.Key(), "/list"))

	assert.Equal(t, filters{Page: 1}, b.Value(), "initial value before any write")

	var got [][2]filters
	b.Subscribe(func(value, old filters) { got = append(got, [2]filters{value, old}) })

	assert.True(t, b.Set(filters{Query: "shoes", Page: 2}))
	assert.False(t, b.Set(filters{Query: "shoes", Page: 2}))

	assert.Equal(t, filters{Query: "shoes", Page: 2}, b.Value())
	assert.Equal(t, [][2]filters{{{Query: "shoes", Page: 2}, {Page: 1}}}, got)
}

func TestBinding_DecodesRestoredMaps(t *testing.T) {
	bus := event.NewBus()
	nav := NewMemoryNavigator(bus)

	key, err := RecordKey(filters{}, "list")
	require.NoError(t, err)
	nav.ReplaceState(map[string]any{
		ReservedKey: map[string]any{
			key: map[string]any{"key": key, "data": map[string]any{"query": "hats", "page": 3.0}},
		},
	})

	a := New(nav, bus)
	defer a.Close()

	b, err := Bind(a, filters{}, "list")
	require.NoError(t, err)
	assert.Equal(t, filters{Query: "hats", Page: 3}, b.Value())
}

func TestBinding_InstancesDoNotCollide(t *testing.T) {
	a, _ := newAdapter(t)
	left, err := Bind(a, filters{}, "left")
	require.NoError(t, err)
	right, err := Bind(a, filters{}, "right")
	require.NoError(t, err)

	left.Set(filters{Page: 4})
	assert.Equal(t, filters{}, right.Value())
}

func TestMirror_PersistsCommittedSnapshots(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	store := model.DefineStore("app", nil, model.WithKeyGenerator(testutil.NewSequenceKeys("m")))
	m, err := model.DefineStatic(ctx, store, model.Value(filters{Page: 1}))
	require.NoError(t, err)
	m.UseGuard(func(ctx context.Context, next, prev filters) bool { return next.Page > 0 })
	m.Subscribe(Mirror[filters](a, "filters"))

	_, err = m.Set(ctx, model.Patch{"page": 2})
	require.NoError(t, err)
	_, err = m.Set(ctx, model.Patch{"page": -1})
	require.NoError(t, err)

	assert.Equal(t, filters{Page: 2}, a.GetValue("filters"))
}

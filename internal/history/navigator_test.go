package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/storekit/internal/event"
)

func recordNavigation(bus *event.Bus) *[]Navigation {
	var got []Navigation
	bus.Subscribe(NavigationEvent, func(ev event.Event) {
		got = append(got, ev.Detail.(Navigation))
	})
	return &got
}

func TestMemoryNavigator_PushAndGo(t *testing.T) {
	bus := event.NewBus()
	events := recordNavigation(bus)
	nav := NewMemoryNavigator(bus)

	assert.Equal(t, map[string]any{}, nav.State())

	nav.PushState(map[string]any{"page": 1})
	nav.PushState(map[string]any{"page": 2})
	assert.Equal(t, 3, nav.Len())
	assert.Equal(t, 2, nav.Index())

	assert.True(t, nav.Back())
	assert.Equal(t, map[string]any{"page": 1}, nav.State())
	assert.True(t, nav.Forward())
	assert.Equal(t, map[string]any{"page": 2}, nav.State())

	assert.False(t, nav.Forward(), "no entry ahead")
	assert.False(t, nav.Go(-5))
	assert.False(t, nav.Go(0))

	assert.Equal(t, []Navigation{
		{Action: ActionPush, Index: 1},
		{Action: ActionPush, Index: 2},
		{Action: ActionPop, Index: 1},
		{Action: ActionPop, Index: 2},
	}, *events)
}

func TestMemoryNavigator_PushDropsForwardEntries(t *testing.T) {
	nav := NewMemoryNavigator(event.NewBus())
	nav.PushState(map[string]any{"page": 1})
	nav.PushState(map[string]any{"page": 2})
	nav.Go(-2)

	nav.PushState(map[string]any{"page": "other"})
	assert.Equal(t, 2, nav.Len())
	assert.False(t, nav.Forward())
}

func TestMemoryNavigator_ReplaceAndUnload(t *testing.T) {
	bus := event.NewBus()
	events := recordNavigation(bus)
	nav := NewMemoryNavigator(bus)

	nav.ReplaceState(map[string]any{"a": 1})
	nav.Unload()

	assert.Equal(t, map[string]any{"a": 1}, nav.State())
	assert.Equal(t, []Navigation{
		{Action: ActionReplace, Index: 0},
		{Action: ActionUnload, Index: 0},
	}, *events)
}

func TestMemoryNavigator_StateIsACopy(t *testing.T) {
	nav := NewMemoryNavigator(event.NewBus())
	nested := map[string]any{"x": 1}
	nav.ReplaceState(map[string]any{"nested": nested})
	nested["x"] = 2

	state := nav.State()
	state["nested"].(map[string]any)["x"] = 3

	assert.Equal(t, map[string]any{"nested": map[string]any{"x": 1}}, nav.State())
}

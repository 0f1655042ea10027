package history

import (
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/roach88/storekit/internal/event"
)

// ReservedKey is the entry-state key holding the record map.
const ReservedKey = "historyProvider"

// NavigationEvent is the bus event name every navigator dispatches.
const NavigationEvent = "history-provider:navigation"

// Action names a navigation transition.
type Action string

const (
	ActionPush    Action = "push"
	ActionReplace Action = "replace"
	ActionPop     Action = "pop"
	ActionUnload  Action = "unload"
)

// Navigation is the detail of a NavigationEvent.
type Navigation struct {
	Action Action
	Index  int
}

// Navigator is a session history.
//
// Implementations dispatch a NavigationEvent after every transition, once
// the new current entry is in place.
type Navigator interface {
	// State returns a copy of the current entry's state. Never nil.
	State() map[string]any
	PushState(state map[string]any)
	ReplaceState(state map[string]any)
	Go(delta int) bool
	Unload()
}

// MemoryNavigator is an in-process Navigator.
//
// Thread-safety: safe for concurrent use. Events are dispatched after the
// navigator's lock is released.
type MemoryNavigator struct {
	mu      sync.Mutex
	entries []map[string]any
	index   int
	bus     *event.Bus
}

// NewMemoryNavigator creates a navigator with one empty entry.
// A nil bus means event.Default().
func NewMemoryNavigator(bus *event.Bus) *MemoryNavigator {
	if bus == nil {
		bus = event.Default()
	}
	return &MemoryNavigator{
		entries: []map[string]any{{}},
		bus:     bus,
	}
}

// State returns a deep copy of the current entry's state.
func (n *MemoryNavigator) State() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return copyState(n.entries[n.index])
}

// PushState drops any forward entries and appends a new current entry.
func (n *MemoryNavigator) PushState(state map[string]any) {
	n.mu.Lock()
	n.entries = append(n.entries[:n.index+1], copyState(state))
	n.index++
	idx := n.index
	n.mu.Unlock()
	n.emit(ActionPush, idx)
}

// ReplaceState overwrites the current entry's state.
func (n *MemoryNavigator) ReplaceState(state map[string]any) {
	n.mu.Lock()
	n.entries[n.index] = copyState(state)
	idx := n.index
	n.mu.Unlock()
	n.emit(ActionReplace, idx)
}

// Go moves delta entries back (negative) or forward (positive).
// It reports false and does nothing when the target is out of range.
func (n *MemoryNavigator) Go(delta int) bool {
	n.mu.Lock()
	target := n.index + delta
	if delta == 0 || target < 0 || target >= len(n.entries) {
		n.mu.Unlock()
		return false
	}
	n.index = target
	n.mu.Unlock()
	n.emit(ActionPop, target)
	return true
}

// Back is Go(-1).
func (n *MemoryNavigator) Back() bool { return n.Go(-1) }

// Forward is Go(1).
func (n *MemoryNavigator) Forward() bool { return n.Go(1) }

// Unload announces that the document is going away.
func (n *MemoryNavigator) Unload() {
	n.mu.Lock()
	idx := n.index
	n.mu.Unlock()
	n.emit(ActionUnload, idx)
}

// Len returns the number of entries.
func (n *MemoryNavigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// Index returns the position of the current entry.
func (n *MemoryNavigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

func (n *MemoryNavigator) emit(action Action, index int) {
	n.bus.Dispatch(NavigationEvent, Navigation{Action: action, Index: index})
}

func copyState(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(state).(map[string]any)
}

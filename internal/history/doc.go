// Package history keeps per-visit state in the current navigation entry.
//
// A Navigator models a session history: a stack of entries, each carrying a
// state object. The Adapter stores a map of keyed records under the reserved
// top-level key ReservedKey of the current entry's state and keeps an
// in-memory copy of that map in sync with navigation:
//
//   - push: the in-memory map is written into the new entry
//   - replace: the map is re-read from the replaced entry
//   - pop: the map is rebuilt strictly from the target entry
//   - unload: the map is cleared and the entry's records are wiped
//
// Navigators announce these transitions on an event.Bus under
// NavigationEvent; the adapter never calls back into a navigator while
// holding its own lock.
package history

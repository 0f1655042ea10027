// Package harness runs scripted scenarios against the persistence adapters.
//
// A scenario drives one durable store and one session history through a
// list of steps, records every step and every notification the adapters
// emit, and checks the result against expectations and assertions.
//
// # Scenario Format
//
//	name: durable_validation
//	description: "What this scenario validates"
//	store: prefs            # durable store name (default "scenario")
//	schema: |               # optional CUE schema for the durable store
//	  a: number
//	steps:
//	  - op: set_item
//	    key: a
//	    value: 5
//	  - op: set_item
//	    key: a
//	    value: not-a-number
//	    expect:
//	      outcome: rejected
//	assertions:
//	  - type: event_count
//	    kind: storage
//	    count: 1
//	  - type: final_state
//	    target: durable
//	    expect: { a: 5 }
//
// # Operations
//
// Durable store: set_item, set_store_data, remove_item, get_item.
// Session history: history_set, history_remove, history_get, push, replace,
// back, forward, unload.
//
// # Determinism
//
// Each run uses fresh in-memory backends, a private event bus and
// testutil.DeterministicClock for both adapters, so traces are byte-stable
// and can be compared against golden files with RunWithGolden.
package harness

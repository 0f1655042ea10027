// Package container owns model state snapshots.
//
// A Container holds exactly one snapshot of type T. The snapshot is replaced
// on every commit and never edited in place, so a subscriber that receives
// (next, prev) can keep both values without copying.
//
// INITIALIZATION:
//
// A container is built from an Initializer. Sync initializers run inside
// Reload and commit before it returns. Async initializers run on their own
// goroutine; until they settle the container is not Ready and readers get the
// previous snapshot (the zero value on first load). Wait blocks until the
// pending initialization settles.
//
// Initialization failures, including panics, are logged and swallowed. The
// container keeps whatever snapshot it had and stays usable. Availability is
// preferred over failure visibility: callers always get some snapshot.
//
// REGISTRY:
//
// Registry maps (store name, container key) to a single container for its
// whole lifetime. It replaces a dependency-injection lookup by name.
package container

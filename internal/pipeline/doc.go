// Package pipeline mediates every write to a container.
//
// A write passes three typed stages in order:
//
//  1. Guards veto. Any guard returning false discards the write.
//  2. Intercepts transform. Each sees the previous intercept's output.
//  3. Middleware wraps. Middleware is folded right-to-left around the
//     terminal commit; one that does not call next short-circuits it.
//
// Registration order is dispatch order. Every Use* method returns an
// unsubscribe function that is safe to call more than once.
package pipeline

// Package durable keeps a schema-validated store snapshot in a KV slot.
//
// The slot holds one serialized envelope per store:
//
//	{"date": <epoch-ms>, "state": {...}}
//
// written as canonical JSON. Every write (SetItem, SetStoreData) validates
// the whole resulting snapshot first; a snapshot that fails is logged and
// discarded, leaving the stored value and subscribers untouched. Accepted
// writes are persisted and then announced on an event.Bus under
// "<name>-event-storage" with both the previous and the new snapshot.
//
// RemoveItem is the exception: it deletes a key without validation and
// without an announcement.
package durable

// Package engine implements the easyevents dispatch registry.
//
// The registry receives raw events from an external bus, rewrites their
// arguments through conversion rules, and notifies derived events.
//
// ARCHITECTURE:
//
// Synchronous, single-threaded dispatch:
// The bus calls Registry.HandleRawEvent on its own delivery goroutine. The
// registry never spawns goroutines, locks, or blocks; resolution, remapping
// and notification are plain function calls. Listener latency therefore
// stalls the bus's delivery loop.
//
// Dispatch flow for one raw event:
//  1. Copy the raw event's variables into a working mapping
//  2. For each rule registered for the event name, in registration order:
//     a. For each remap, in order: remove the identifier field and store
//     the resolved entity (or nil) under the target field
//     b. For each fire, in order: skip if the guard rejects the original
//     raw event or the entity field is nil; otherwise notify the derived
//     event with the working mapping plus the entity
//  3. The first listener error stops dispatch and is returned
//
// ORDERING GUARANTEES:
//
// Rule order is registration order. Remap and fire order is rule-file order.
// Listener order is append order. Fires never mutate the working mapping, so
// every fire of a rule sees the same state; later rules see the mapping as
// left by earlier rules.
//
// LIFECYCLE:
//
// Teardown unsubscribes from the bus and must be called before the registry
// is discarded. Delivering raw events during or after Teardown is undefined.
package engine

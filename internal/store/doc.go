// Package store provides the SQLite-backed firing log.
//
// The log is append-only:
//   - Sessions: one row per recording run, with the rules hash in effect
//   - Firings: one row per derived event notification, args as canonical JSON
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC, id ASC so repeated reads return identical results.
//
// # Idempotency
//
// Each firing carries a content-addressed hash (ir.FiringID over session,
// seq, event and canonical args). Writing the same firing twice is a no-op.
package store

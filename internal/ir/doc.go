// Package ir provides the rule model and event types for easyevents.
//
// This package contains plain data definitions plus the canonical JSON
// encoding used when recording derived events. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Rules are immutable after parse; order of rules, remaps and fires is
//     semantically load-bearing and never reordered
//   - Predicates are resolved to function values at parse time and stored on
//     the FireRule; dispatch never looks a predicate up by name
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir

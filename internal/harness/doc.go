// Package harness runs conformance scenarios against the dispatch registry.
//
// A scenario names a rule file, a roster, and raw events to publish. The
// harness builds a real registry on a local bus, records every fire through
// store.Recorder into an in-memory firing log, and reads the log back to
// build the trace. Nothing is stubbed between the raw event and the
// recorded fire.
//
// # Scenario Format
//
//	name: kill_fires_for_other_player
//	description: "A kill by another player fires kill and death"
//	rules: ../rules/default.json
//	roster:
//	  - {userid: 5, name: Mahi}
//	  - {userid: 9, name: Zed}
//	events:
//	  - name: player_death
//	    variables: {attacker: 5, userid: 9, weapon: awp}
//	expect:
//	  - event: kill
//	    args: {killer: Mahi, victim: Zed}
//	  - event: death
//	assertions:
//	  - type: trace_count
//	    event: suicide
//	    count: 0
//
// expect lists every fire in order (subset match on args); an explicit
// empty list asserts nothing fires. Assertions are trace_contains,
// trace_order and trace_count.
//
// # Determinism
//
// Raw events and fires share one testutil.DeterministicClock, and the
// session token is fixed, so traces and firing hashes are identical across
// runs. RunWithGolden snapshots the trace as canonical JSON with goldie.
package harness

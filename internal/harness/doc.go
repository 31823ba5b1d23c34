// Package harness runs message-script scenarios against the sample app.
//
// Each scenario starts a fresh Program with a fresh executor and backend,
// sends the listed messages, and validates the processed trace and final
// state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: executor.cue      # optional, relative to the scenario file
//	backend:
//	  value: 42
//	  corpus: [alpha, beta]
//	  delay: 20ms
//	  down: false
//	ticks: 3                  # tick subscription, active once loaded
//	steps:
//	  - send: init
//	  - send: query
//	    payload: { query: "al" }
//	    async: true           # don't wait before the next step
//	assertions:
//	  - type: trace_contains
//	    msg: results
//	    payload: { query: "al" }
//	  - type: final_state
//	    expect: { loader: { value: 42 } }
//
// Message names are those of sample.Codec.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies a message appears in the trace with matching payload
//   - trace_order: Verifies messages appear in specified order
//   - trace_count: Verifies a message appears exactly N times
//   - final_state: Verifies expected values in the final state
//
// # Quiescence
//
// After each non-async step the harness waits until the Program's queue is
// empty, no cycle is running, the executor has no effect in flight and every
// started subscription source has returned. Trace sequence numbers come
// from a testutil.DeterministicClock, so a scenario whose steps settle
// produces the same trace on every run.
package harness

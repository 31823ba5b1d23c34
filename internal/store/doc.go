// Package store provides the SQLite step journal.
//
// The journal records, per run, every message a Program processed and the
// state it produced. It is a debugging and replay aid, not a durable
// message queue: nothing is re-delivered from it.
//
//   - runs: one row per Program run, with its initial state
//   - steps: (run_id, seq) -> message name, message payload, resulting state
//
// # Ordering
//
// All reads ORDER BY seq ASC (runs by created_seq ASC). seq comes from the
// Program's logical clock, so a trace reads the same regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

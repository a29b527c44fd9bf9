// Package store provides a SQLite-backed journal of binding observations.
//
// The journal is append-only and organized in runs. One run holds the
// observations of one Binder session (a harness scenario, a CLI trace):
//   - Runs: named sessions, ordered by ordinal
//   - Observations: engine observations keyed by (run_id, seq)
//   - Templates: per-run synthesis and cache-hit counts by signature key
//
// # Ordering
//
// All ordering uses seq INTEGER (the engine's logical clock), never
// timestamps, so a journal written twice from the same scenario is
// identical. Queries always include ORDER BY seq ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

// Package store provides SQLite-backed storage for pass pipeline runs.
//
// Each recorded run keeps:
//   - Runs: the unit, pipeline, summary counters and unit fingerprints
//   - Pass runs: one row per pass execution, per procedure for procedure passes
//   - Remarks: every strengthened alignment, tied to the pass run that made it
//   - Ephemeral: the ephemeral value listing of the run
//
// # Ordering
//
// All ordering uses the seq column (the pass manager's logical clock), never
// timestamps. Reopening a database continues the clock from LastSeq, so seq is
// unique across every run recorded in one file.
//
// Queries always include ORDER BY seq ASC (then idx ASC for per-pass rows), so
// results are identical across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Pipeline and stats columns hold canonical JSON produced by ir.MarshalCanonical.
package store

// Package passes schedules the invprop analyses and transforms over a unit.
//
// ARCHITECTURE:
//
// Registry:
// Every pass is registered with an Info describing its name, whether it is
// an analysis or a transform, the analyses it requires, and what it
// preserves. Resolve expands a requested pipeline so that required analyses
// run first, in registration order.
//
// Manager:
// The Manager owns the analysis cache for one Run. Procedure-scoped work
// (the symbolic expression engine and the alignment transform) may run on
// several goroutines, one procedure each; results are merged back in
// procedure order so reports are deterministic regardless of WithJobs.
//
// Invalidation:
// A transform that reports a change drops every cached analysis it does not
// preserve. The alignment transform preserves the CFG, so engines stay
// cached; the ephemeral set does not survive it.
//
// Every executed pass is stamped with a sequence number from Clock, and each
// Run gets a UUIDv7 run ID for the run log.
package passes

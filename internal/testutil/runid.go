package testutil

// FixedRunID returns the same run ID every time.
//
// Unlike passes.FixedGenerator, which hands out IDs in sequence and panics
// when they run out, a FixedRunID can back any number of runs. Only one of
// those runs can be recorded in a store.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID string

// Generate returns the fixed ID, or "test-run-default" when it is empty.
//
// Implements passes.RunIDGenerator.
func (id FixedRunID) Generate() string {
	if id == "" {
		return "test-run-default"
	}
	return string(id)
}

// Package harness runs pass pipelines over CUE units and checks the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: aligned_load
//	description: "Mask assumption raises load and store alignment"
//	unit: units/aligned        # CUE package, relative to the scenario file
//	passes: [alignment-inv-prop] # optional, defaults to the default pipeline
//	jobs: 4                    # optional procedure parallelism
//	assertions:
//	  - type: alignment
//	    proc: f
//	    value: x
//	    align: 16
//	  - type: ephemeral
//	    proc: f
//	    values: [pi, m, c]
//	  - type: stats
//	    stats: { loads_changed: 1 }
//
// # Assertion Types
//
//   - alignment: the annotation on a value after the run
//   - ephemeral: every named value is ephemeral
//   - not_ephemeral: no named value is ephemeral
//   - changed: whether the pipeline reported a change
//   - stats: a subset of the summed pass counters
//   - remark_count: number of recorded remarks, optionally for one procedure
//
// Values are named by their SSA name, or by block and index for operations
// without one:
//
//	- type: ephemeral
//	  proc: f
//	  block: entry
//	  index: 3
//
// # Deterministic Testing
//
// Every scenario runs with a fresh logical clock, a fixed run ID and an
// in-memory store, so the snapshot of a run is stable and can be compared
// against a golden file.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/aligned.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness

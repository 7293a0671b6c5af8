package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/invprop/internal/compiler"
	"github.com/roach88/invprop/internal/ephemeral"
	"github.com/roach88/invprop/internal/passes"
	"github.com/roach88/invprop/internal/store"
	"github.com/roach88/invprop/internal/testutil"
)

// RunID is the fixed run ID given to every scenario run.
const RunID = "harness-run"

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load and compile the CUE unit
// 2. Validate it; validation errors fail the scenario
// 3. Run the pipeline and record the report
// 4. Read the remarks back from the store
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	u, err := compiler.LoadDir(scenario.Unit)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}

	result := NewResult()
	result.Unit = u
	if errs := compiler.Validate(u); len(errs) > 0 {
		for _, e := range errs {
			result.AddError(e.Error())
		}
		return result, nil
	}

	// The ephemeral set depends only on the operand graph.
	result.Ephemeral = ephemeral.New(ephemeral.WithLogger(logger)).Run(u)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	pipeline := scenario.Passes
	if len(pipeline) == 0 {
		pipeline = passes.DefaultPipeline
	}
	m := passes.NewManager(passes.DefaultRegistry(),
		passes.WithJobs(scenario.Jobs),
		passes.WithLogger(logger),
		passes.WithClock(passes.NewClock()),
		passes.WithRunIDGenerator(testutil.FixedRunID(RunID)),
	)
	rep, err := m.Run(ctx, u, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to run pipeline: %w", err)
	}
	result.Report = rep

	if err := st.RecordRun(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	if result.Remarks, err = st.ReadRemarks(ctx, rep.RunID); err != nil {
		return nil, fmt.Errorf("failed to read remarks: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

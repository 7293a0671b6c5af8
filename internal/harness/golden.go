package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/invprop/internal/ir"
)

// Snapshot renders the deterministic parts of a run as indented canonical
// JSON: the pipeline, counters, remarks, ephemeral listing and the final IR
// text. Run IDs and fingerprints are left out.
func Snapshot(name string, result *Result) ([]byte, error) {
	if result.Report == nil {
		return nil, fmt.Errorf("scenario %s has no report", name)
	}
	rep := result.Report

	remarks := make([]any, len(result.Remarks))
	for i, r := range result.Remarks {
		remarks[i] = map[string]any{
			"procedure": r.Procedure,
			"block":     r.Block,
			"value":     r.Value,
			"kind":      r.Kind,
			"old":       r.Old,
			"new":       r.New,
		}
	}

	snapshot := map[string]any{
		"scenario_name": name,
		"unit":          rep.Unit,
		"pipeline":      rep.Pipeline,
		"changed":       rep.Changed,
		"stats": map[string]any{
			"loads_changed":          rep.Stats.LoadsChanged,
			"stores_changed":         rep.Stats.StoresChanged,
			"mem_intrinsics_changed": rep.Stats.MemIntrinsicsChanged,
			"facts_matched":          rep.Stats.FactsMatched,
		},
		"remarks":     remarks,
		"ephemeral":   nonNil(rep.Ephemeral),
		"invalidated": nonNil(rep.Invalidated),
		"ir":          strings.Split(strings.TrimSuffix(result.Unit.String(), "\n"), "\n"),
	}

	data, err := ir.MarshalCanonical(snapshot)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against
// dir/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, dir string) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, dir); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result, dir string) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/ir"
)

// statFields maps the json names of alignprop.Stats to their values.
var statFields = map[string]func(alignprop.Stats) int{
	"loads_changed":          func(s alignprop.Stats) int { return s.LoadsChanged },
	"stores_changed":         func(s alignprop.Stats) int { return s.StoresChanged },
	"mem_intrinsics_changed": func(s alignprop.Stats) int { return s.MemIntrinsicsChanged },
	"facts_matched":          func(s alignprop.Stats) int { return s.FactsMatched },
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against a finished run and
// returns the failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertAlignment:
		return assertAlignment(result, a)
	case AssertEphemeral:
		return assertEphemeral(result, a, true)
	case AssertNotEphemeral:
		return assertEphemeral(result, a, false)
	case AssertChanged:
		return assertChanged(result, a)
	case AssertStats:
		return assertStats(result, a)
	case AssertRemarkCount:
		return assertRemarkCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// targets resolves the values an assertion names, in the order given:
// Value, then Values, then Block/Index.
func targets(u *ir.Unit, a Assertion) ([]ir.ValueID, error) {
	p, ok := u.ProcByName(a.Proc)
	if !ok {
		return nil, fmt.Errorf("unknown procedure %q", a.Proc)
	}

	var names []string
	if a.Value != "" {
		names = append(names, a.Value)
	}
	names = append(names, a.Values...)

	var ids []ir.ValueID
	for _, name := range names {
		id, ok := u.ValueByName(p, strings.TrimPrefix(name, "%"))
		if !ok {
			return nil, fmt.Errorf("unknown value %q in %s", name, a.Proc)
		}
		ids = append(ids, id)
	}

	if a.Block != "" {
		b, ok := u.BlockByName(p, a.Block)
		if !ok {
			return nil, fmt.Errorf("unknown block %q in %s", a.Block, a.Proc)
		}
		instrs := u.Block(b).Instrs
		if *a.Index < 0 || *a.Index >= len(instrs) {
			return nil, fmt.Errorf("index %d out of range for block %s (%d operations)", *a.Index, a.Block, len(instrs))
		}
		ids = append(ids, instrs[*a.Index])
	}
	return ids, nil
}

func assertAlignment(result *Result, a Assertion) error {
	ids, err := targets(result.Unit, a)
	if err != nil {
		return err
	}
	for _, id := range ids {
		v := result.Unit.Value(id)
		if !v.IsMemoryOp() {
			return fmt.Errorf("%s has no alignment", result.Unit.ValueString(id))
		}
		if v.Align != a.Align {
			return &AssertionError{
				Type:     AssertAlignment,
				Expected: fmt.Sprintf("align %d", a.Align),
				Actual:   result.Unit.ValueString(id),
			}
		}
	}
	return nil
}

func assertEphemeral(result *Result, a Assertion, want bool) error {
	ids, err := targets(result.Unit, a)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if result.Ephemeral.IsEphemeral(id) == want {
			continue
		}
		expected := "ephemeral"
		if !want {
			expected = "not ephemeral"
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s: %s", result.Unit.ValueString(id), expected),
			Actual:   fmt.Sprintf("ephemeral set: %v", result.Ephemeral.Lines()),
		}
	}
	return nil
}

func assertChanged(result *Result, a Assertion) error {
	if result.Report.Changed != *a.Changed {
		return &AssertionError{
			Type:     AssertChanged,
			Expected: fmt.Sprintf("changed = %t", *a.Changed),
			Actual:   fmt.Sprintf("changed = %t", result.Report.Changed),
		}
	}
	return nil
}

// assertStats compares only the counters the assertion lists.
func assertStats(result *Result, a Assertion) error {
	keys := make([]string, 0, len(a.Stats))
	for k := range a.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		get, ok := statFields[k]
		if !ok {
			return fmt.Errorf("unknown stat %q", k)
		}
		if got := get(result.Report.Stats); got != a.Stats[k] {
			return &AssertionError{
				Type:     AssertStats,
				Expected: fmt.Sprintf("%s = %d", k, a.Stats[k]),
				Actual:   fmt.Sprintf("%s = %d", k, got),
			}
		}
	}
	return nil
}

func assertRemarkCount(result *Result, a Assertion) error {
	count := 0
	for _, r := range result.Remarks {
		if a.Proc == "" || r.Procedure == a.Proc {
			count++
		}
	}
	if count != *a.Count {
		scope := "all procedures"
		if a.Proc != "" {
			scope = a.Proc
		}
		return &AssertionError{
			Type:     AssertRemarkCount,
			Expected: fmt.Sprintf("%d remark(s) in %s", *a.Count, scope),
			Actual:   fmt.Sprintf("%d remark(s)", count),
		}
	}
	return nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one pipeline run over a unit and the checks made on it.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Unit is the directory of the CUE package holding the unit.
	// LoadScenario resolves it relative to the scenario file.
	Unit string `yaml:"unit"`

	// Passes is the requested pipeline. Empty means passes.DefaultPipeline.
	Passes []string `yaml:"passes,omitempty"`

	// Jobs bounds procedure parallelism. Zero means one.
	Jobs int `yaml:"jobs,omitempty"`

	// Assertions validate the unit and report after the run.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of a finished run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Proc names the procedure holding the values.
	Proc string `yaml:"proc,omitempty"`

	// Value names a single value (used by alignment).
	Value string `yaml:"value,omitempty"`

	// Values names several values (used by ephemeral and not_ephemeral).
	Values []string `yaml:"values,omitempty"`

	// Block and Index address an operation by position, for operations
	// without a name.
	Block string `yaml:"block,omitempty"`
	Index *int   `yaml:"index,omitempty"`

	// Align is the expected annotation (used by alignment).
	Align uint32 `yaml:"align,omitempty"`

	// Changed is the expected report flag (used by changed).
	Changed *bool `yaml:"changed,omitempty"`

	// Stats holds expected counters by their json name (used by stats).
	Stats map[string]int `yaml:"stats,omitempty"`

	// Count is the expected number of remarks (used by remark_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAlignment    = "alignment"
	AssertEphemeral    = "ephemeral"
	AssertNotEphemeral = "not_ephemeral"
	AssertChanged      = "changed"
	AssertStats        = "stats"
	AssertRemarkCount  = "remark_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the unit path BEFORE validation
	if scenario.Unit != "" && !filepath.IsAbs(scenario.Unit) {
		scenario.Unit = filepath.Join(filepath.Dir(path), scenario.Unit)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Unit == "" {
		return fmt.Errorf("unit is required")
	}
	if info, err := os.Stat(s.Unit); err != nil || !info.IsDir() {
		return fmt.Errorf("unit directory not found: %s", s.Unit)
	}
	if s.Jobs < 0 {
		return fmt.Errorf("jobs must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	addressed := a.Value != "" || len(a.Values) > 0 || a.Block != ""
	if a.Block != "" && a.Index == nil {
		return fmt.Errorf("assertions[%d]: block requires index", index)
	}
	if a.Index != nil && a.Block == "" {
		return fmt.Errorf("assertions[%d]: index requires block", index)
	}

	switch a.Type {
	case AssertAlignment:
		if a.Proc == "" || (a.Value == "" && a.Block == "") {
			return fmt.Errorf("assertions[%d]: proc and value (or block and index) are required for alignment", index)
		}
		if a.Align == 0 {
			return fmt.Errorf("assertions[%d]: align is required for alignment", index)
		}
	case AssertEphemeral, AssertNotEphemeral:
		if a.Proc == "" || !addressed {
			return fmt.Errorf("assertions[%d]: proc and values are required for %s", index, a.Type)
		}
	case AssertChanged:
		if a.Changed == nil {
			return fmt.Errorf("assertions[%d]: changed is required for changed", index)
		}
	case AssertStats:
		if len(a.Stats) == 0 {
			return fmt.Errorf("assertions[%d]: stats is required for stats", index)
		}
		for key := range a.Stats {
			if _, ok := statFields[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown stat %q", index, key)
			}
		}
	case AssertRemarkCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for remark_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

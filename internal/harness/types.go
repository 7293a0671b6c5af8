package harness

import (
	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/ephemeral"
	"github.com/roach88/invprop/internal/ir"
	"github.com/roach88/invprop/internal/passes"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the unit is valid and every assertion holds.
	Pass bool `json:"pass"`

	// Errors contains validation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Unit is the unit after the run.
	Unit *ir.Unit `json:"-"`

	// Report is the manager's report. Nil if the unit failed validation.
	Report *passes.Report `json:"-"`

	// Ephemeral is the ephemeral set of the unit.
	Ephemeral *ephemeral.Result `json:"-"`

	// Remarks are the remarks read back from the run log.
	Remarks []alignprop.Remark `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

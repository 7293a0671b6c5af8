// Package ephemeral finds values that exist only to feed assumption markers.
//
// A value is ephemeral when every one of its uses is ephemeral; assumption
// markers seed the set. The walk visits each value once: a value dequeued
// before all of its users have been marked stays out, even if a later step
// would have justified it. Callers that need a true fixed point must not rely
// on this analysis for completeness.
package ephemeral

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/invprop/internal/ir"
)

// Name and Description identify the analysis to the pass registry.
const (
	Name        = "eph-values"
	Description = "Ephemeral value analysis"
)

// Result is the ephemeral set of one unit. It is valid until the unit is
// mutated or the analysis runs again.
type Result struct {
	unit *ir.Unit
	set  map[ir.ValueID]bool
}

// IsEphemeral reports whether id is consumed only by assumption markers.
func (r *Result) IsEphemeral(id ir.ValueID) bool {
	if r == nil {
		return false
	}
	return r.set[id]
}

// Len returns the number of ephemeral values, constants included.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.set)
}

// Analysis caches the most recent Result. Each Run replaces it wholesale.
type Analysis struct {
	logger *slog.Logger
	result *Result
}

// Option configures an Analysis.
type Option func(*Analysis)

// WithLogger routes debug output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analysis) {
		a.logger = logger
	}
}

// New creates an Analysis.
func New(opts ...Option) *Analysis {
	a := &Analysis{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run computes the ephemeral set of u and caches it.
func (a *Analysis) Run(u *ir.Unit) *Result {
	a.result = Compute(u)
	a.logger.Debug("ephemeral values computed", "unit", u.Name, "count", a.result.Len())
	return a.result
}

// Result returns the cached result of the last Run, or nil.
func (a *Analysis) Result() *Result {
	return a.result
}

// IsEphemeral queries the cached result. It is false before the first Run.
func (a *Analysis) IsEphemeral(id ir.ValueID) bool {
	return a.result.IsEphemeral(id)
}

// Compute runs the analysis over u without caching.
func Compute(u *ir.Unit) *Result {
	set := make(map[ir.ValueID]bool)
	var work []ir.ValueID

	for _, p := range u.Procs() {
		for _, b := range u.Proc(p).Blocks {
			instrs := u.Block(b).Instrs
			for _, id := range instrs[u.FirstInsertionPoint(b):] {
				if u.Value(id).IsAssumption() {
					set[id] = true
					work = append(work, id)
				}
			}
		}
	}

	visited := make(map[ir.ValueID]bool)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		v := u.Value(id)
		if !allEphemeral(set, v.Uses) {
			continue
		}
		set[id] = true
		work = append(work, v.Args...)
	}

	return &Result{unit: u, set: set}
}

func allEphemeral(set map[ir.ValueID]bool, uses []ir.ValueID) bool {
	for _, user := range uses {
		if !set[user] {
			return false
		}
	}
	return true
}

// Lines lists the ephemeral operations as "<procedure>: <block>: <value>",
// procedures in unit order and operations in block order.
func (r *Result) Lines() []string {
	if r == nil {
		return nil
	}
	u := r.unit
	var lines []string
	for _, p := range u.Procs() {
		proc := u.Proc(p)
		for _, b := range proc.Blocks {
			blk := u.Block(b)
			for _, id := range blk.Instrs[u.FirstInsertionPoint(b):] {
				if r.set[id] {
					lines = append(lines, fmt.Sprintf("%s: %s: %s", proc.Name, blk.Name, u.ValueString(id)))
				}
			}
		}
	}
	return lines
}

// Print writes the debug listing.
func (r *Result) Print(w io.Writer) error {
	if _, err := io.WriteString(w, "Ephemeral values...\n"); err != nil {
		return err
	}
	for _, line := range r.Lines() {
		if _, err := fmt.Fprintf(w, "\tephemeral: %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

package passes

import (
	"fmt"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/ephemeral"
)

// ScalarEvolution names the symbolic expression engine analysis.
const ScalarEvolution = "scalar-evolution"

// Kind distinguishes analyses from transforms.
type Kind string

const (
	KindAnalysis  Kind = "analysis"
	KindTransform Kind = "transform"
)

// Scope is the granularity a pass runs at.
type Scope string

const (
	ScopeUnit      Scope = "unit"
	ScopeProcedure Scope = "procedure"
)

// Info describes a registered pass.
type Info struct {
	Name        string
	Description string
	Kind        Kind
	Scope       Scope

	// Requires lists analyses that must be available before the pass runs.
	Requires []string

	// PreservesAll means running the pass invalidates nothing.
	PreservesAll bool

	// PreservesCFG means a change leaves analyses marked CFGOnly valid.
	PreservesCFG bool

	// CFGOnly marks an analysis whose result depends only on the CFG and
	// operand graph, never on annotations.
	CFGOnly bool
}

// Registry maps pass names to their Info, in registration order.
type Registry struct {
	infos map[string]Info
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{infos: make(map[string]Info)}
}

// DefaultRegistry returns a registry holding every built-in pass.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, info := range []Info{
		{
			Name:         ScalarEvolution,
			Description:  "Scalar evolution analysis",
			Kind:         KindAnalysis,
			Scope:        ScopeProcedure,
			PreservesAll: true,
			CFGOnly:      true,
		},
		{
			Name:         ephemeral.Name,
			Description:  ephemeral.Description,
			Kind:         KindAnalysis,
			Scope:        ScopeUnit,
			PreservesAll: true,
		},
		{
			Name:         alignprop.Name,
			Description:  alignprop.Description,
			Kind:         KindTransform,
			Scope:        ScopeProcedure,
			Requires:     []string{alignprop.Requires},
			PreservesCFG: true,
		},
	} {
		if err := r.Register(info); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a pass. Names must be unique and requirements must already
// be registered analyses.
func (r *Registry) Register(info Info) error {
	if _, dup := r.infos[info.Name]; dup {
		return &PassError{Code: ErrCodeDuplicatePass, Pass: info.Name, Message: "pass already registered"}
	}
	for _, req := range info.Requires {
		dep, ok := r.infos[req]
		if !ok || dep.Kind != KindAnalysis {
			return &PassError{
				Code:    ErrCodeMissingAnalysis,
				Pass:    info.Name,
				Message: fmt.Sprintf("required analysis %q is not registered", req),
			}
		}
	}
	r.infos[info.Name] = info
	r.order = append(r.order, info.Name)
	return nil
}

// Lookup returns the Info registered under name.
func (r *Registry) Lookup(name string) (Info, bool) {
	info, ok := r.infos[name]
	return info, ok
}

// Names returns registered pass names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolve expands names into an executable pipeline. Each requested pass is
// preceded by its requirements; a requirement already scheduled and still
// valid is not repeated.
func (r *Registry) Resolve(names []string) ([]Info, error) {
	var pipeline []Info
	scheduled := make(map[string]bool)

	for _, name := range names {
		info, ok := r.infos[name]
		if !ok {
			return nil, unknownPass(name)
		}
		for _, req := range info.Requires {
			if !scheduled[req] {
				pipeline = append(pipeline, r.infos[req])
				scheduled[req] = true
			}
		}
		pipeline = append(pipeline, info)
		scheduled[name] = true
	}
	return pipeline, nil
}

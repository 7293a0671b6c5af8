package passes

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/ephemeral"
	"github.com/roach88/invprop/internal/ir"
	"github.com/roach88/invprop/internal/scev"
)

// DefaultPipeline is the pipeline run when none is given.
var DefaultPipeline = []string{ephemeral.Name, alignprop.Name}

// PassRun records one execution of a pass. Procedure-scoped passes produce
// one PassRun per procedure.
type PassRun struct {
	Seq       int64
	Pass      string
	Procedure string
	Changed   bool
	Stats     alignprop.Stats
	Facts     int
	Remarks   []alignprop.Remark
}

// Report is the outcome of Manager.Run.
type Report struct {
	RunID    string
	Unit     string
	Pipeline []string
	Runs     []PassRun

	// Ephemeral holds the listing of the last eph-values run.
	Ephemeral []string

	Changed bool
	Stats   alignprop.Stats

	// Before and After are unit fingerprints around the run.
	Before string
	After  string

	// Invalidated lists analyses dropped by transforms, in drop order.
	Invalidated []string
}

// Remarks returns every remark of the run in pass order.
func (r *Report) Remarks() []alignprop.Remark {
	var out []alignprop.Remark
	for _, run := range r.Runs {
		out = append(out, run.Remarks...)
	}
	return out
}

// Manager runs pipelines from a Registry.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	jobs     int
	clock    *Clock
	ids      RunIDGenerator
}

// Option configures a Manager.
type Option func(*Manager)

// WithJobs sets how many procedures a procedure-scoped pass may process at
// once. Values below 1 mean 1.
func WithJobs(n int) Option {
	return func(m *Manager) {
		m.jobs = max(n, 1)
	}
}

// WithLogger sets the logger handed to the manager and its passes.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the clock used to stamp pass executions.
func WithClock(c *Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithRunIDGenerator sets the source of run IDs.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(m *Manager) {
		m.ids = g
	}
}

// NewManager creates a Manager over reg.
func NewManager(reg *Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		logger:   slog.Default(),
		jobs:     1,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// cache holds the analyses computed during one Run.
type cache struct {
	unit    *ir.Unit
	valid   map[string]bool
	engines map[ir.ProcID]*scev.Engine
	eph     *ephemeral.Analysis
}

func (c *cache) engine(p ir.ProcID) *scev.Engine {
	if se, ok := c.engines[p]; ok {
		return se
	}
	se := scev.New(c.unit, p)
	c.engines[p] = se
	return se
}

// Run executes the passes named in names, with their requirements, over u.
// The partial report is returned alongside any error.
func (m *Manager) Run(ctx context.Context, u *ir.Unit, names []string) (*Report, error) {
	pipeline, err := m.registry.Resolve(names)
	if err != nil {
		return nil, err
	}
	before, err := ir.Fingerprint(u)
	if err != nil {
		return nil, fmt.Errorf("fingerprint unit: %w", err)
	}

	rep := &Report{RunID: m.ids.Generate(), Unit: u.Name, Before: before}
	for _, info := range pipeline {
		rep.Pipeline = append(rep.Pipeline, info.Name)
	}
	c := &cache{
		unit:    u,
		valid:   make(map[string]bool),
		engines: make(map[ir.ProcID]*scev.Engine),
		eph:     ephemeral.New(ephemeral.WithLogger(m.logger)),
	}

	m.logger.Info("pipeline starting", "run", rep.RunID, "unit", u.Name, "passes", rep.Pipeline)
	for _, info := range pipeline {
		if err := ctx.Err(); err != nil {
			return rep, &PassError{Code: ErrCodeCanceled, Pass: info.Name, Message: "run canceled", Err: err}
		}
		if err := m.runPass(ctx, info, c, rep); err != nil {
			return rep, err
		}
	}

	if rep.After, err = ir.Fingerprint(u); err != nil {
		return rep, fmt.Errorf("fingerprint unit: %w", err)
	}
	m.logger.Info("pipeline finished",
		"run", rep.RunID,
		"changed", rep.Changed,
		"loads", rep.Stats.LoadsChanged,
		"stores", rep.Stats.StoresChanged,
		"mem_intrinsics", rep.Stats.MemIntrinsicsChanged)
	return rep, nil
}

func (m *Manager) runPass(ctx context.Context, info Info, c *cache, rep *Report) error {
	switch info.Name {
	case ScalarEvolution:
		if !c.valid[info.Name] {
			for _, p := range c.unit.Procs() {
				c.engine(p)
			}
			c.valid[info.Name] = true
		}
		rep.Runs = append(rep.Runs, PassRun{Seq: m.clock.Next(), Pass: info.Name})

	case ephemeral.Name:
		res := c.eph.Result()
		if !c.valid[info.Name] || res == nil {
			res = c.eph.Run(c.unit)
			c.valid[info.Name] = true
		}
		rep.Ephemeral = res.Lines()
		rep.Runs = append(rep.Runs, PassRun{Seq: m.clock.Next(), Pass: info.Name})

	case alignprop.Name:
		changed, err := m.runAlignment(ctx, c, rep)
		if err != nil {
			return err
		}
		if changed {
			rep.Changed = true
			m.invalidate(info, c, rep)
		}

	default:
		return &PassError{Code: ErrCodeUnknownPass, Pass: info.Name, Message: "pass has no implementation"}
	}
	m.logger.Debug("pass finished", "pass", info.Name, "seq", m.clock.Current())
	return nil
}

// runAlignment runs the transform on every procedure, up to m.jobs at a time,
// and appends the results in procedure order.
func (m *Manager) runAlignment(ctx context.Context, c *cache, rep *Report) (bool, error) {
	procs := c.unit.Procs()
	results := make([]alignprop.Result, len(procs))
	pass := alignprop.New(alignprop.WithLogger(m.logger))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.jobs)
	for i, p := range procs {
		se := c.engine(p)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = pass.Run(se)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, &PassError{Code: ErrCodeCanceled, Pass: alignprop.Name, Message: "run canceled", Err: err}
	}

	changed := false
	for i, p := range procs {
		res := results[i]
		rep.Runs = append(rep.Runs, PassRun{
			Seq:       m.clock.Next(),
			Pass:      alignprop.Name,
			Procedure: c.unit.Proc(p).Name,
			Changed:   res.Changed,
			Stats:     res.Stats,
			Facts:     len(res.Facts),
			Remarks:   res.Remarks,
		})
		rep.Stats.Add(res.Stats)
		changed = changed || res.Changed
	}
	return changed, nil
}

// invalidate drops cached analyses that info does not preserve.
func (m *Manager) invalidate(info Info, c *cache, rep *Report) {
	if info.PreservesAll {
		return
	}
	for _, name := range m.registry.Names() {
		if !c.valid[name] {
			continue
		}
		a, _ := m.registry.Lookup(name)
		if info.PreservesCFG && a.CFGOnly {
			continue
		}
		delete(c.valid, name)
		if name == ScalarEvolution {
			clear(c.engines)
		}
		rep.Invalidated = append(rep.Invalidated, name)
		m.logger.Debug("analysis invalidated", "analysis", name, "by", info.Name)
	}
}

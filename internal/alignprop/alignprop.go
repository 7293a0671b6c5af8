// Package alignprop strengthens alignment annotations using facts asserted by
// assumption markers.
//
// A marker over (ptrtoint(P) + Off) & Mask == 0 says that P+Off is aligned to
// 2^TrailingOnes(Mask). Every load, store and memory intrinsic reachable from
// P through the def-use graph is checked against that fact, and its alignment
// is raised when the address is provably a known distance from P+Off.
//
// The pass reports a change for every matched fact, even when no annotation
// moved, and gives up on a recurrence whose start cannot be refined without
// trying the stride alone.
package alignprop

import (
	"log/slog"
	"math/bits"

	"github.com/roach88/invprop/internal/ir"
	"github.com/roach88/invprop/internal/scev"
)

// Registry identity.
const (
	Name        = "alignment-inv-prop"
	Description = "Alignment invariant propagation"
	// Requires names the analysis that must be available to Run.
	Requires = "scalar-evolution"
)

// maxTrailingOnes bounds the shift that turns a mask into an alignment.
const maxTrailingOnes = 31

// Fact is one alignment assumption: address(Ptr) + Offset is a multiple of
// Align.
type Fact struct {
	Ptr    ir.ValueID
	Align  uint64
	Offset scev.Expr
	// Cond is the matched condition.
	Cond ir.ValueID
}

// Stats counts what a run changed.
type Stats struct {
	LoadsChanged         int `json:"loads_changed"`
	StoresChanged        int `json:"stores_changed"`
	MemIntrinsicsChanged int `json:"mem_intrinsics_changed"`
	FactsMatched         int `json:"facts_matched"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.LoadsChanged += o.LoadsChanged
	s.StoresChanged += o.StoresChanged
	s.MemIntrinsicsChanged += o.MemIntrinsicsChanged
	s.FactsMatched += o.FactsMatched
}

// Remark records one strengthened annotation.
type Remark struct {
	Procedure string `json:"procedure"`
	Block     string `json:"block"`
	Value     string `json:"value"`
	Kind      string `json:"kind"`
	Old       uint32 `json:"old"`
	New       uint32 `json:"new"`
}

// Result is the outcome of running the pass over one procedure.
type Result struct {
	Changed bool
	Stats   Stats
	Facts   []Fact
	Remarks []Remark
}

// Pass is the alignment propagation transform. A Pass holds no per-procedure
// state and may be shared.
type Pass struct {
	logger *slog.Logger
}

// Option configures a Pass.
type Option func(*Pass)

// WithLogger routes refinement tracing to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pass) {
		p.logger = logger
	}
}

// New creates a Pass.
func New(opts ...Option) *Pass {
	p := &Pass{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run applies the pass to the procedure se is bound to.
func (p *Pass) Run(se *scev.Engine) Result {
	r := &run{
		logger:  p.logger,
		se:      se,
		u:       se.Unit(),
		proc:    se.Proc(),
		altDest: make(map[ir.ValueID]uint64),
		altSrc:  make(map[ir.ValueID]uint64),
	}
	name := r.u.Proc(r.proc).Name

	for _, cond := range r.candidates() {
		f, ok := r.match(cond)
		if !ok {
			continue
		}
		r.res.Stats.FactsMatched++
		r.res.Facts = append(r.res.Facts, f)
		r.logger.Debug("alignment fact",
			"proc", name,
			"ptr", r.u.Ref(f.Ptr),
			"align", f.Align,
			"offset", f.Offset)

		r.propagate(f)
		r.res.Changed = true
	}
	return r.res
}

// run is the state of one Pass.Run.
type run struct {
	logger *slog.Logger
	se     *scev.Engine
	u      *ir.Unit
	proc   ir.ProcID

	// last alignments computed for each side of a memcpy or memmove
	altDest map[ir.ValueID]uint64
	altSrc  map[ir.ValueID]uint64

	res Result
}

// candidates returns marker conditions in depth-first block order with
// conjunctions split into their operands.
func (r *run) candidates() []ir.ValueID {
	var conds []ir.ValueID
	for _, b := range r.u.DepthFirst(r.proc) {
		instrs := r.u.Block(b).Instrs
		for _, id := range instrs[r.u.FirstInsertionPoint(b):] {
			if c := r.u.Value(id).Condition(); c != ir.NoValue {
				conds = append(conds, c)
			}
		}
	}
	return flatten(r.u, conds)
}

// flatten appends the operands of every AND candidate until none are left.
// Each value appears once.
func flatten(u *ir.Unit, conds []ir.ValueID) []ir.ValueID {
	seen := make(map[ir.ValueID]bool, len(conds))
	out := make([]ir.ValueID, 0, len(conds))
	push := func(id ir.ValueID) {
		if id != ir.NoValue && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, c := range conds {
		push(c)
	}
	for i := 0; i < len(out); i++ {
		v := u.Value(out[i])
		if v.Op != ir.OpAnd {
			continue
		}
		for _, op := range v.Args {
			push(op)
		}
	}
	return out
}

// match recognises (X & Mask) == 0 and decomposes X into a pointer and an
// offset.
func (r *run) match(cond ir.ValueID) (Fact, bool) {
	u, se := r.u, r.se
	cmp := u.Value(cond)
	if cmp.Op != ir.OpICmp || cmp.Pred != ir.PredEQ || len(cmp.Args) != 2 {
		return Fact{}, false
	}

	lhs, rhs := cmp.Operand(0), cmp.Operand(1)
	if scev.IsZero(se.Of(lhs)) {
		lhs, rhs = rhs, lhs
	} else if !scev.IsZero(se.Of(rhs)) {
		return Fact{}, false
	}

	and := u.Value(lhs)
	if and.Op != ir.OpAnd || len(and.Args) != 2 {
		return Fact{}, false
	}
	x, m := and.Operand(0), and.Operand(1)
	xe, me := se.Of(x), se.Of(m)
	if _, ok := scev.AsConstant(xe); ok {
		x, xe, me = m, me, xe
	}
	mask, ok := scev.AsConstant(me)
	if !ok {
		return Fact{}, false
	}

	ones := maskTrailingOnes(mask)
	if ones == 0 {
		return Fact{}, false
	}
	ones = min(ones, maxTrailingOnes)
	align := min(uint64(1)<<ones, ir.MaxAlignment)

	var ptr ir.ValueID
	var off scev.Expr
	if xv := u.Value(x); xv.Op == ir.OpPtrToInt {
		ptr = xv.Operand(0)
		off = se.Constant(64, 0)
	} else if sum, ok := xe.(*scev.Add); ok {
		for _, op := range sum.Ops {
			unk, ok := op.(*scev.Unknown)
			if !ok {
				continue
			}
			if v := u.Value(unk.Value); v.Op == ir.OpPtrToInt {
				ptr = v.Operand(0)
				off = se.Minus(sum, op)
				break
			}
		}
	}
	if ptr == ir.NoValue {
		return Fact{}, false
	}

	switch w := off.Width(); {
	case w < 64:
		off = se.SignExtend(off, 64)
	case w > 64:
		return Fact{}, false
	}

	return Fact{
		Ptr:    u.StripPointerCasts(ptr),
		Align:  align,
		Offset: off,
		Cond:   cond,
	}, true
}

// maskBits returns the constant's bits truncated to its width.
// maskTrailingOnes counts the low set bits of a mask constant.
func maskTrailingOnes(c *scev.Constant) int {
	return bits.TrailingZeros64(^maskBits(c))
}

func maskBits(c *scev.Constant) uint64 {
	v := c.Uint64()
	if c.Bits < 64 {
		v &= uint64(1)<<uint(c.Bits) - 1
	}
	return v
}

package alignprop

import (
	"github.com/roach88/invprop/internal/ir"
	"github.com/roach88/invprop/internal/scev"
)

// refine returns the alignment of addr implied by ref+off being a multiple of
// align, or 0 if nothing can be shown.
func (r *run) refine(ref, align, off scev.Expr, addr ir.ValueID) uint64 {
	se := r.se
	diff := se.Minus(se.Minus(se.Of(addr), ref), off)

	n := r.refineDiff(diff, align)
	r.logger.Debug("alignment",
		"addr", r.u.Ref(addr),
		"relative_to", align,
		"offset", off,
		"diff", diff,
		"new", n)
	if n != 0 {
		return n
	}

	// a loop over a[i] with a 32-aligned and a stride of 16 bytes alternates
	// between 32 and 16, so 16 holds on every iteration
	rec, ok := scev.AsAddRec(diff)
	if !ok {
		return 0
	}
	start := r.refineDiff(rec.Start, align)
	inc := r.refineDiff(rec.Step, align)
	r.logger.Debug("start/inc alignment",
		"start", rec.Start,
		"inc", rec.Step,
		"start_align", start,
		"inc_align", inc)

	if start == 0 {
		return 0
	}
	switch {
	case start > inc:
		if inc != 0 && start%inc == 0 {
			return inc
		}
	case inc > start:
		if inc%start == 0 {
			return start
		}
	default:
		return start
	}
	return 0
}

// refineDiff returns align when diff is a multiple of it, the magnitude of
// the remainder when that is a constant power of two, and 0 otherwise.
func (r *run) refineDiff(diff, align scev.Expr) uint64 {
	se := r.se
	q := se.UDiv(diff, align)
	units := se.Minus(se.Mul(q, align), diff)

	c, ok := scev.AsConstant(units)
	if !ok {
		return 0
	}
	a, _ := scev.AsConstant(align)
	if c.Value == 0 {
		return a.Uint64()
	}
	abs := c.Value
	if abs < 0 {
		abs = -abs
	}
	if ir.IsPowerOfTwo(uint64(abs)) {
		return uint64(abs)
	}
	return 0
}

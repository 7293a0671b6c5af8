package scev

import (
	"cmp"
	"slices"

	"github.com/roach88/invprop/internal/ir"
)

// Add returns the simplified sum of ops, which must share a width.
//
// Nested sums are flattened, constants folded, like terms combined by
// coefficient and recurrences of the same loop merged. When a single
// recurrence remains and every other term is invariant in its loop, those
// terms are folded into its start.
func (e *Engine) Add(ops ...Expr) Expr {
	bits := ops[0].Width()

	var flat []Expr
	for _, op := range ops {
		if a, ok := op.(*Add); ok {
			flat = append(flat, a.Ops...)
			continue
		}
		flat = append(flat, op)
	}

	type term struct {
		coef int64
		rest Expr
	}
	type recSum struct {
		starts, steps []Expr
	}
	var c int64
	var terms []term
	var order []ir.BlockID
	index := make(map[Expr]int)
	recs := make(map[ir.BlockID]*recSum)
	for _, op := range flat {
		switch x := op.(type) {
		case *Constant:
			c += x.Value
		case *AddRec:
			r, ok := recs[x.Loop]
			if !ok {
				r = &recSum{}
				recs[x.Loop] = r
				order = append(order, x.Loop)
			}
			r.starts = append(r.starts, x.Start)
			r.steps = append(r.steps, x.Step)
		default:
			coef, rest := e.splitCoef(op)
			if i, ok := index[rest]; ok {
				terms[i].coef += coef
				continue
			}
			index[rest] = len(terms)
			terms = append(terms, term{coef: coef, rest: rest})
		}
	}
	c = wrap(c, bits)

	var out []Expr
	for _, t := range terms {
		switch coef := wrap(t.coef, bits); coef {
		case 0:
		case 1:
			out = append(out, t.rest)
		default:
			out = append(out, e.Mul(e.Constant(bits, coef), t.rest))
		}
	}

	var rec []Expr
	collapsed := false
	for _, l := range order {
		r := recs[l]
		x := e.AddRec(e.sum(r.starts, bits), e.sum(r.steps, bits), l)
		if _, ok := x.(*AddRec); !ok {
			collapsed = true
		}
		rec = append(rec, x)
	}
	if collapsed {
		all := append(out, rec...)
		if c != 0 {
			all = append(all, e.Constant(bits, c))
		}
		return e.Add(all...)
	}

	if len(rec) == 1 {
		r := rec[0].(*AddRec)
		foldable := true
		for _, t := range out {
			if !e.invariant(t, r.Loop) {
				foldable = false
				break
			}
		}
		if foldable && (len(out) > 0 || c != 0) {
			start := append([]Expr{r.Start}, out...)
			if c != 0 {
				start = append(start, e.Constant(bits, c))
			}
			return e.AddRec(e.Add(start...), r.Step, r.Loop)
		}
	}

	out = append(out, rec...)
	sortOperands(out)
	if c != 0 {
		out = append([]Expr{e.Constant(bits, c)}, out...)
	}
	switch len(out) {
	case 0:
		return e.Constant(bits, 0)
	case 1:
		return out[0]
	}
	return e.intern(&Add{Ops: out, Bits: bits})
}

// Mul returns the simplified product of ops, which must share a width.
//
// A constant factor is distributed over a single sum or recurrence, and
// loop-invariant factors of a single recurrence are pushed into it.
func (e *Engine) Mul(ops ...Expr) Expr {
	bits := ops[0].Width()

	c := int64(1)
	var rest []Expr
	for _, op := range ops {
		var parts []Expr
		if m, ok := op.(*Mul); ok {
			parts = m.Ops
		} else {
			parts = []Expr{op}
		}
		for _, p := range parts {
			if k, ok := p.(*Constant); ok {
				c = wrap(c*k.Value, bits)
				continue
			}
			rest = append(rest, p)
		}
	}

	switch {
	case c == 0:
		return e.Constant(bits, 0)
	case len(rest) == 0:
		return e.Constant(bits, c)
	case len(rest) == 1 && c == 1:
		return rest[0]
	}

	if len(rest) == 1 {
		k := e.Constant(bits, c)
		switch x := rest[0].(type) {
		case *Add:
			terms := make([]Expr, len(x.Ops))
			for i, op := range x.Ops {
				terms[i] = e.Mul(k, op)
			}
			return e.Add(terms...)
		case *AddRec:
			return e.AddRec(e.Mul(k, x.Start), e.Mul(k, x.Step), x.Loop)
		}
	}

	if i, ok := e.singleRec(rest); ok && len(rest) > 1 {
		r := rest[i].(*AddRec)
		others := slices.Delete(slices.Clone(rest), i, i+1)
		if c != 1 {
			others = append(others, e.Constant(bits, c))
		}
		invariant := true
		for _, o := range others {
			if !e.invariant(o, r.Loop) {
				invariant = false
				break
			}
		}
		if invariant {
			start := e.Mul(append(slices.Clone(others), r.Start)...)
			step := e.Mul(append(others, r.Step)...)
			return e.AddRec(start, step, r.Loop)
		}
	}

	sortOperands(rest)
	if c != 1 {
		rest = append([]Expr{e.Constant(bits, c)}, rest...)
	}
	return e.intern(&Mul{Ops: rest, Bits: bits})
}

// UDiv returns the unsigned quotient l / r. Constants fold; a divisor that
// evenly divides every term of l folds when the terms are known multiples.
func (e *Engine) UDiv(l, r Expr) Expr {
	bits := l.Width()
	if rc, ok := AsConstant(r); ok {
		switch {
		case rc.Value == 1:
			return l
		case rc.Value == 0:
		default:
			if lc, ok := AsConstant(l); ok {
				q := mask(lc.Uint64(), bits) / mask(rc.Uint64(), bits)
				return e.Constant(bits, int64(q))
			}
			if rc.Value > 0 {
				if q, ok := e.exactDiv(l, rc.Value); ok {
					return q
				}
			}
		}
	}
	return e.intern(&UDiv{LHS: l, RHS: r})
}

// exactDiv divides x by d when x is syntactically a multiple of d. Terms are
// assumed not to wrap.
func (e *Engine) exactDiv(x Expr, d int64) (Expr, bool) {
	bits := x.Width()
	switch y := x.(type) {
	case *Constant:
		if y.Value%d == 0 {
			return e.Constant(bits, y.Value/d), true
		}
	case *Mul:
		if k, ok := y.Ops[0].(*Constant); ok && k.Value%d == 0 {
			ops := append([]Expr{e.Constant(bits, k.Value/d)}, y.Ops[1:]...)
			return e.Mul(ops...), true
		}
	case *Add:
		qs := make([]Expr, len(y.Ops))
		for i, op := range y.Ops {
			q, ok := e.exactDiv(op, d)
			if !ok {
				return nil, false
			}
			qs[i] = q
		}
		return e.Add(qs...), true
	case *AddRec:
		start, ok := e.exactDiv(y.Start, d)
		if !ok {
			return nil, false
		}
		step, ok := e.exactDiv(y.Step, d)
		if !ok {
			return nil, false
		}
		return e.AddRec(start, step, y.Loop), true
	}
	return nil, false
}

// SignExtend widens x to bits, keeping its sign. Sums, products and
// recurrences are extended operand-wise, assuming no signed overflow.
func (e *Engine) SignExtend(x Expr, bits int) Expr {
	switch {
	case x.Width() == bits:
		return x
	case x.Width() > bits:
		return e.Truncate(x, bits)
	}
	switch y := x.(type) {
	case *Constant:
		return e.Constant(bits, y.Value)
	case *Cast:
		if y.kind == KindSignExtend {
			return e.SignExtend(y.Operand, bits)
		}
	case *Add:
		return e.Add(e.extendAll(y.Ops, bits)...)
	case *Mul:
		return e.Mul(e.extendAll(y.Ops, bits)...)
	case *AddRec:
		return e.AddRec(e.SignExtend(y.Start, bits), e.SignExtend(y.Step, bits), y.Loop)
	}
	return e.intern(&Cast{kind: KindSignExtend, Operand: x, Bits: bits})
}

// ZeroExtend widens x to bits, filling with zeros.
func (e *Engine) ZeroExtend(x Expr, bits int) Expr {
	switch {
	case x.Width() == bits:
		return x
	case x.Width() > bits:
		return e.Truncate(x, bits)
	}
	switch y := x.(type) {
	case *Constant:
		return e.Constant(bits, int64(mask(y.Uint64(), y.Bits)))
	case *Cast:
		if y.kind == KindZeroExtend {
			return e.ZeroExtend(y.Operand, bits)
		}
	}
	return e.intern(&Cast{kind: KindZeroExtend, Operand: x, Bits: bits})
}

// Truncate narrows x to bits.
func (e *Engine) Truncate(x Expr, bits int) Expr {
	if x.Width() <= bits {
		return x
	}
	switch y := x.(type) {
	case *Constant:
		return e.Constant(bits, y.Value)
	case *Cast:
		switch {
		case y.Operand.Width() == bits:
			return y.Operand
		case y.kind == KindTruncate:
			return e.Truncate(y.Operand, bits)
		}
	}
	return e.intern(&Cast{kind: KindTruncate, Operand: x, Bits: bits})
}

// Resize sign-extends or truncates x to bits.
func (e *Engine) Resize(x Expr, bits int) Expr {
	if x.Width() > bits {
		return e.Truncate(x, bits)
	}
	return e.SignExtend(x, bits)
}

func (e *Engine) extendAll(ops []Expr, bits int) []Expr {
	out := make([]Expr, len(ops))
	for i, op := range ops {
		out[i] = e.SignExtend(op, bits)
	}
	return out
}

// splitCoef splits a term into its constant coefficient and the rest.
func (e *Engine) splitCoef(x Expr) (int64, Expr) {
	m, ok := x.(*Mul)
	if !ok {
		return 1, x
	}
	k, ok := m.Ops[0].(*Constant)
	if !ok {
		return 1, x
	}
	if len(m.Ops) == 2 {
		return k.Value, m.Ops[1]
	}
	return k.Value, e.intern(&Mul{Ops: slices.Clone(m.Ops[1:]), Bits: m.Bits})
}

func (e *Engine) sum(ops []Expr, bits int) Expr {
	if len(ops) == 1 {
		return ops[0]
	}
	if len(ops) == 0 {
		return e.Constant(bits, 0)
	}
	return e.Add(ops...)
}

// singleRec returns the index of the only recurrence in ops.
func (e *Engine) singleRec(ops []Expr) (int, bool) {
	found := -1
	for i, op := range ops {
		if _, ok := op.(*AddRec); ok {
			if found >= 0 {
				return -1, false
			}
			found = i
		}
	}
	return found, found >= 0
}

func sortOperands(ops []Expr) {
	slices.SortStableFunc(ops, func(a, b Expr) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.key(), b.key())
	})
}

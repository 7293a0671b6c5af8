package scev

import (
	"github.com/roach88/invprop/internal/ir"
)

// Engine builds and simplifies expressions for the values of one procedure.
//
// Results are cached per value and expressions are uniqued, so two calls that
// describe the same computation return the same Expr. An Engine is not safe
// for concurrent use; give each procedure its own.
type Engine struct {
	unit  *ir.Unit
	proc  ir.ProcID
	cache map[ir.ValueID]Expr
	uniq  map[string]Expr
	loops map[ir.BlockID]map[ir.BlockID]bool

	// trail records values cached while a phi is under analysis; their
	// expressions may mention the phi's placeholder and are dropped afterwards.
	trail   []ir.ValueID
	tracing int
}

// New creates an engine bound to procedure p of u.
func New(u *ir.Unit, p ir.ProcID) *Engine {
	return &Engine{
		unit:  u,
		proc:  p,
		cache: make(map[ir.ValueID]Expr),
		uniq:  make(map[string]Expr),
		loops: make(map[ir.BlockID]map[ir.BlockID]bool),
	}
}

// Unit returns the unit the engine reads from.
func (e *Engine) Unit() *ir.Unit { return e.unit }

// Proc returns the procedure the engine is bound to.
func (e *Engine) Proc() ir.ProcID { return e.proc }

// Of returns the expression computed by value id.
func (e *Engine) Of(id ir.ValueID) Expr {
	if x, ok := e.cache[id]; ok {
		return x
	}
	x := e.create(id)
	e.remember(id, x)
	return x
}

// Constant returns the constant c at the given width.
func (e *Engine) Constant(bits int, c int64) Expr {
	return e.intern(&Constant{Value: wrap(c, bits), Bits: bits})
}

// Unknown returns the opaque expression standing for value id.
func (e *Engine) Unknown(id ir.ValueID) Expr {
	v := e.unit.Value(id)
	return e.intern(&Unknown{Value: id, Bits: v.Type.Width(), ref: e.unit.Ref(id)})
}

// AddRec returns {start,+,step}<loop>. A zero step collapses to start.
func (e *Engine) AddRec(start, step Expr, loop ir.BlockID) Expr {
	if IsZero(step) {
		return start
	}
	return e.intern(&AddRec{Start: start, Step: step, Loop: loop, ref: "%" + e.unit.Block(loop).Name})
}

// Minus returns a - b.
func (e *Engine) Minus(a, b Expr) Expr {
	return e.Add(a, e.Mul(e.Constant(b.Width(), -1), b))
}

func (e *Engine) create(id ir.ValueID) Expr {
	v := e.unit.Value(id)
	bits := v.Type.Width()

	switch v.Op {
	case ir.OpConst:
		return e.Constant(bits, v.Const)
	case ir.OpAdd:
		return e.Add(e.Of(v.Operand(0)), e.Of(v.Operand(1)))
	case ir.OpSub:
		return e.Minus(e.Of(v.Operand(0)), e.Of(v.Operand(1)))
	case ir.OpMul:
		return e.Mul(e.Of(v.Operand(0)), e.Of(v.Operand(1)))
	case ir.OpShl:
		if c, ok := AsConstant(e.Of(v.Operand(1))); ok && c.Value >= 0 && c.Value < int64(min(bits, 64)) {
			return e.Mul(e.Of(v.Operand(0)), e.Constant(bits, int64(1)<<c.Value))
		}
	case ir.OpBitcast:
		if x := e.Of(v.Operand(0)); x.Width() == bits {
			return x
		}
	case ir.OpSExt:
		return e.SignExtend(e.Of(v.Operand(0)), bits)
	case ir.OpZExt:
		return e.ZeroExtend(e.Of(v.Operand(0)), bits)
	case ir.OpTrunc:
		return e.Truncate(e.Of(v.Operand(0)), bits)
	case ir.OpGEP:
		idx := e.Resize(e.Of(v.Operand(1)), ir.PointerBits)
		off := e.Mul(e.Constant(ir.PointerBits, v.ElemSize), idx)
		return e.Add(e.Of(v.Operand(0)), off)
	case ir.OpPhi:
		return e.createPhi(id)
	}
	return e.Unknown(id)
}

// createPhi recognises phi(start, phi + step) in a loop header as the
// recurrence {start,+,step}. The phi is represented by its Unknown while the
// backedge value is analysed.
func (e *Engine) createPhi(id ir.ValueID) Expr {
	v := e.unit.Value(id)
	header := v.Block
	self := e.Unknown(id)

	loop := e.loopBlocks(header)
	if len(v.Args) != 2 || len(loop) == 0 {
		return self
	}
	startIdx, backIdx := -1, -1
	for i, from := range v.Incoming {
		if loop[from] {
			backIdx = i
		} else {
			startIdx = i
		}
	}
	if startIdx < 0 || backIdx < 0 {
		return self
	}
	startVal, backVal := v.Args[startIdx], v.Args[backIdx]

	mark := len(e.trail)
	e.tracing++
	e.remember(id, self)
	next := e.Of(backVal)
	e.tracing--
	for _, t := range e.trail[mark:] {
		delete(e.cache, t)
	}
	e.trail = e.trail[:mark]

	sum, ok := next.(*Add)
	if !ok {
		return self
	}
	var rest []Expr
	seen := 0
	for _, op := range sum.Ops {
		if op == self {
			seen++
			continue
		}
		rest = append(rest, op)
	}
	if seen != 1 {
		return self
	}
	step := rest[0]
	if len(rest) > 1 {
		step = e.Add(rest...)
	}
	if Contains(step, self) || !e.invariant(step, header) {
		return self
	}
	start := e.Resize(e.Of(startVal), self.Width())
	return e.AddRec(start, step, header)
}

// invariant reports whether x has the same value on every iteration of the
// loop headed by header.
func (e *Engine) invariant(x Expr, header ir.BlockID) bool {
	switch y := x.(type) {
	case *Constant:
		return true
	case *Unknown:
		v := e.unit.Value(y.Value)
		if !v.IsOperation() {
			return true
		}
		return !e.loopBlocks(header)[v.Block]
	case *AddRec:
		if y.Loop == header || e.loopBlocks(header)[y.Loop] {
			return false
		}
	}
	for _, op := range Operands(x) {
		if !e.invariant(op, header) {
			return false
		}
	}
	return true
}

func (e *Engine) loopBlocks(header ir.BlockID) map[ir.BlockID]bool {
	if l, ok := e.loops[header]; ok {
		return l
	}
	l := e.unit.LoopBlocks(header)
	e.loops[header] = l
	return l
}

func (e *Engine) remember(id ir.ValueID, x Expr) {
	e.cache[id] = x
	if e.tracing > 0 {
		e.trail = append(e.trail, id)
	}
}

func (e *Engine) intern(x Expr) Expr {
	k := x.key()
	if y, ok := e.uniq[k]; ok {
		return y
	}
	e.uniq[k] = x
	return x
}

// wrap truncates c to bits and sign-extends the result back to 64 bits.
func wrap(c int64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return c
	}
	shift := uint(64 - bits)
	return (c << shift) >> shift
}

// mask truncates c to bits, treating it as unsigned.
func mask(c uint64, bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return c
	}
	return c & (uint64(1)<<uint(bits) - 1)
}

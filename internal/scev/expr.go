package scev

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/invprop/internal/ir"
)

// Kind is the closed set of expression shapes.
type Kind uint8

const (
	KindConstant Kind = iota + 1
	KindUnknown
	KindAdd
	KindMul
	KindUDiv
	KindAddRec
	KindSignExtend
	KindZeroExtend
	KindTruncate
)

var kindNames = map[Kind]string{
	KindConstant:   "constant",
	KindUnknown:    "unknown",
	KindAdd:        "add",
	KindMul:        "mul",
	KindUDiv:       "udiv",
	KindAddRec:     "addrec",
	KindSignExtend: "sext",
	KindZeroExtend: "zext",
	KindTruncate:   "trunc",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Expr is a uniqued symbolic expression. Expressions built by the same Engine
// are structurally equal exactly when they are identical, so == compares them.
type Expr interface {
	Kind() Kind
	// Width is the bit width of the expression's value.
	Width() int
	String() string
	key() string
}

// Constant is an integer constant, stored sign-extended from its width.
type Constant struct {
	Value int64
	Bits  int
}

func (c *Constant) Kind() Kind     { return KindConstant }
func (c *Constant) Width() int     { return c.Bits }
func (c *Constant) String() string { return strconv.FormatInt(c.Value, 10) }
func (c *Constant) key() string    { return "c" + strconv.Itoa(c.Bits) + ":" + strconv.FormatInt(c.Value, 10) }
func (c *Constant) IsZero() bool   { return c.Value == 0 }
func (c *Constant) Uint64() uint64 { return uint64(c.Value) }
func (c *Constant) Negative() bool { return c.Value < 0 }

// Unknown is an opaque IR value the engine cannot analyse further.
type Unknown struct {
	Value ir.ValueID
	Bits  int
	ref   string
}

func (x *Unknown) Kind() Kind     { return KindUnknown }
func (x *Unknown) Width() int     { return x.Bits }
func (x *Unknown) String() string { return x.ref }
func (x *Unknown) key() string    { return "u" + strconv.FormatUint(uint64(x.Value), 10) }

// Add is an n-ary sum. Operands are sorted with any constant first.
type Add struct {
	Ops  []Expr
	Bits int
}

func (a *Add) Kind() Kind     { return KindAdd }
func (a *Add) Width() int     { return a.Bits }
func (a *Add) String() string { return "(" + joinExprs(a.Ops, " + ") + ")" }
func (a *Add) key() string    { return "+(" + joinKeys(a.Ops) + ")" }

// Mul is an n-ary product. Operands are sorted with any constant first.
type Mul struct {
	Ops  []Expr
	Bits int
}

func (m *Mul) Kind() Kind     { return KindMul }
func (m *Mul) Width() int     { return m.Bits }
func (m *Mul) String() string { return "(" + joinExprs(m.Ops, " * ") + ")" }
func (m *Mul) key() string    { return "*(" + joinKeys(m.Ops) + ")" }

// UDiv is unsigned division that could not be folded.
type UDiv struct {
	LHS, RHS Expr
}

func (d *UDiv) Kind() Kind     { return KindUDiv }
func (d *UDiv) Width() int     { return d.LHS.Width() }
func (d *UDiv) String() string { return "(" + d.LHS.String() + " /u " + d.RHS.String() + ")" }
func (d *UDiv) key() string    { return "/(" + d.LHS.key() + "," + d.RHS.key() + ")" }

// AddRec is the affine recurrence {Start,+,Step}<Loop>: its value on
// iteration k of the loop headed by Loop is Start + k*Step.
type AddRec struct {
	Start Expr
	Step  Expr
	Loop  ir.BlockID
	ref   string
}

func (r *AddRec) Kind() Kind { return KindAddRec }
func (r *AddRec) Width() int { return r.Start.Width() }
func (r *AddRec) String() string {
	return "{" + r.Start.String() + ",+," + r.Step.String() + "}<" + r.ref + ">"
}
func (r *AddRec) key() string {
	return "{" + r.Start.key() + "," + r.Step.key() + "}" + strconv.FormatUint(uint64(r.Loop), 10)
}

// Cast is a sign extension, zero extension or truncation to Bits.
type Cast struct {
	kind    Kind
	Operand Expr
	Bits    int
}

func (c *Cast) Kind() Kind { return c.kind }
func (c *Cast) Width() int { return c.Bits }
func (c *Cast) String() string {
	return fmt.Sprintf("(%s i%d %s to i%d)", c.kind, c.Operand.Width(), c.Operand, c.Bits)
}
func (c *Cast) key() string {
	return c.kind.String() + strconv.Itoa(c.Bits) + "(" + c.Operand.key() + ")"
}

// AsConstant returns x as a constant if it is one.
func AsConstant(x Expr) (*Constant, bool) {
	c, ok := x.(*Constant)
	return c, ok
}

// IsZero reports whether x is the constant 0.
func IsZero(x Expr) bool {
	c, ok := x.(*Constant)
	return ok && c.Value == 0
}

// AsAddRec returns x as an affine recurrence if it is one.
func AsAddRec(x Expr) (*AddRec, bool) {
	r, ok := x.(*AddRec)
	return r, ok
}

// Operands returns the direct sub-expressions of x.
func Operands(x Expr) []Expr {
	switch e := x.(type) {
	case *Add:
		return e.Ops
	case *Mul:
		return e.Ops
	case *UDiv:
		return []Expr{e.LHS, e.RHS}
	case *AddRec:
		return []Expr{e.Start, e.Step}
	case *Cast:
		return []Expr{e.Operand}
	default:
		return nil
	}
}

// Contains reports whether target occurs anywhere in x.
func Contains(x, target Expr) bool {
	if x == target {
		return true
	}
	for _, op := range Operands(x) {
		if Contains(op, target) {
			return true
		}
	}
	return false
}

func joinExprs(ops []Expr, sep string) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, sep)
}

func joinKeys(ops []Expr) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.key()
	}
	return strings.Join(parts, ",")
}

// rank orders operand kinds inside sums and products.
func rank(x Expr) int {
	switch x.Kind() {
	case KindConstant:
		return 0
	case KindUnknown:
		return 1
	case KindSignExtend, KindZeroExtend, KindTruncate:
		return 2
	case KindUDiv:
		return 3
	case KindMul:
		return 4
	case KindAdd:
		return 5
	default:
		return 6
	}
}

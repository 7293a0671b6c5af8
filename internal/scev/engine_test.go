package scev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/ir"
)

type loopFixture struct {
	u                  *ir.Unit
	p                  ir.ProcID
	a, n, i, addr, sum ir.ValueID
}

// newLoopFixture builds a loop over i = 0, 4, 8, ... reading a[i] with 4-byte
// elements.
func newLoopFixture(t *testing.T) loopFixture {
	t.Helper()
	u := ir.NewUnit("scev")
	b := ir.NewBuilder(u)
	p := b.NewProc("f", ir.Param{Name: "a", Type: ir.Ptr}, ir.Param{Name: "n", Type: ir.I64})
	entry := b.NewBlock("entry")
	loop := b.NewBlock("loop")
	exit := b.NewBlock("exit")

	b.SetBlock(entry)
	b.Jump(loop)

	b.SetBlock(loop)
	i := b.Phi("i", ir.I64)
	addr := b.GEP("addr", b.Param(0), i, 4)
	b.Load("x", ir.I32, addr, 4)
	next := b.Add("inext", i, b.Const(ir.I64, 4))
	sum := b.Add("s", b.Param(1), next)
	done := b.ICmp("done", ir.PredUGE, next, b.Param(1))
	b.Branch(done, exit, loop)
	b.AddIncoming(i, entry, b.Const(ir.I64, 0))
	b.AddIncoming(i, loop, next)

	b.SetBlock(exit)
	b.Ret()

	return loopFixture{u: u, p: p, a: b.Param(0), n: b.Param(1), i: i, addr: addr, sum: sum}
}

func TestPhiBecomesRecurrence(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)

	rec, ok := AsAddRec(se.Of(f.i))
	require.True(t, ok, se.Of(f.i).String())
	assert.Equal(t, "{0,+,4}<%loop>", rec.String())
	assert.True(t, IsZero(rec.Start))
}

func TestGEPOffsetFromBase(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)

	addr := se.Of(f.addr)
	assert.Equal(t, "{%a,+,16}<%loop>", addr.String())

	diff := se.Minus(addr, se.Of(f.a))
	assert.Equal(t, "{0,+,16}<%loop>", diff.String())
}

func TestInvariantTermsFoldIntoStart(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)

	// n + (i + 4) is {n + 4,+,4}
	assert.Equal(t, "{(4 + %n),+,4}<%loop>", se.Of(f.sum).String())
}

func TestMinusCancels(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)
	a := se.Of(f.a)

	assert.True(t, IsZero(se.Minus(a, a)))

	x := se.Add(a, se.Constant(64, 3), se.Mul(se.Constant(64, -1), a))
	c, ok := AsConstant(x)
	require.True(t, ok)
	assert.Equal(t, int64(3), c.Value)
}

func TestExpressionsAreUniqued(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)
	a, n := se.Of(f.a), se.Of(f.n)

	assert.Same(t, se.Of(f.addr), se.Of(f.addr))
	assert.Equal(t, se.Add(a, n), se.Add(n, a))
	assert.Equal(t, se.Mul(a, n), se.Mul(n, a))
	assert.Equal(t, "(2 * %a)", se.Add(a, a).String())
}

func TestUDiv(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)
	x := se.Of(f.n)

	assert.Equal(t, x, se.UDiv(se.Mul(se.Constant(64, 16), x), se.Constant(64, 16)))
	assert.Equal(t, x, se.UDiv(x, se.Constant(64, 1)))

	// 0xff /u 16 at 8 bits
	q, ok := AsConstant(se.UDiv(se.Constant(8, -1), se.Constant(8, 16)))
	require.True(t, ok)
	assert.Equal(t, int64(15), q.Value)

	d := se.UDiv(se.Mul(se.Constant(64, 12), x), se.Constant(64, 8))
	assert.Equal(t, KindUDiv, d.Kind())
}

func TestUDivOfRecurrence(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)
	diff := se.Minus(se.Of(f.addr), se.Of(f.a))

	assert.Equal(t, "{0,+,1}<%loop>", se.UDiv(diff, se.Constant(64, 16)).String())
	assert.Equal(t, KindUDiv, se.UDiv(diff, se.Constant(64, 32)).Kind())
}

func TestShlByConstantIsMul(t *testing.T) {
	u := ir.NewUnit("shl")
	b := ir.NewBuilder(u)
	p := b.NewProc("f", ir.Param{Name: "x", Type: ir.I64})
	b.SetBlock(b.NewBlock("entry"))
	sh := b.Shl("sh", b.Param(0), b.Const(ir.I64, 3))
	b.Ret()

	se := New(u, p)
	assert.Equal(t, "(8 * %x)", se.Of(sh).String())
}

func TestSignExtendOfNarrowRecurrence(t *testing.T) {
	u := ir.NewUnit("sext")
	b := ir.NewBuilder(u)
	p := b.NewProc("f", ir.Param{Name: "a", Type: ir.Ptr})
	entry := b.NewBlock("entry")
	loop := b.NewBlock("loop")
	exit := b.NewBlock("exit")

	b.SetBlock(entry)
	b.Jump(loop)
	b.SetBlock(loop)
	i := b.Phi("i", ir.I32)
	addr := b.GEP("addr", b.Param(0), i, 8)
	next := b.Add("inext", i, b.Const(ir.I32, 1))
	done := b.ICmp("done", ir.PredEQ, next, b.Const(ir.I32, 10))
	b.Branch(done, exit, loop)
	b.AddIncoming(i, entry, b.Const(ir.I32, 0))
	b.AddIncoming(i, loop, next)
	b.SetBlock(exit)
	b.Ret()

	se := New(u, p)
	assert.Equal(t, 32, se.Of(i).Width())
	assert.Equal(t, "{0,+,8}<%loop>", se.Minus(se.Of(addr), se.Of(b.Param(0))).String())
}

func TestPhiOutsideLoopIsUnknown(t *testing.T) {
	u := ir.NewUnit("join")
	b := ir.NewBuilder(u)
	p := b.NewProc("f", ir.Param{Name: "c", Type: ir.I1}, ir.Param{Name: "x", Type: ir.I64})
	entry := b.NewBlock("entry")
	left := b.NewBlock("left")
	join := b.NewBlock("join")

	b.SetBlock(entry)
	b.Branch(b.Param(0), left, join)
	b.SetBlock(left)
	y := b.Add("y", b.Param(1), b.Const(ir.I64, 1))
	b.Jump(join)
	b.SetBlock(join)
	phi := b.Phi("m", ir.I64)
	b.AddIncoming(phi, entry, b.Param(1))
	b.AddIncoming(phi, left, y)
	b.Ret()

	se := New(u, p)
	assert.Equal(t, KindUnknown, se.Of(phi).Kind())
	assert.Equal(t, "%m", se.Of(phi).String())
}

func TestCastFolding(t *testing.T) {
	f := newLoopFixture(t)
	se := New(f.u, f.p)

	z, ok := AsConstant(se.ZeroExtend(se.Constant(8, -1), 32))
	require.True(t, ok)
	assert.Equal(t, int64(255), z.Value)

	s, ok := AsConstant(se.SignExtend(se.Constant(8, -1), 64))
	require.True(t, ok)
	assert.Equal(t, int64(-1), s.Value)

	n := se.Of(f.n)
	narrow := se.Truncate(n, 32)
	assert.Equal(t, KindTruncate, narrow.Kind())
	assert.Equal(t, n, se.Truncate(se.SignExtend(se.Truncate(n, 32), 64), 32).(*Cast).Operand)
}

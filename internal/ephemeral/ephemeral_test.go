package ephemeral

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/ir"
)

// alignedLoad builds
//
//	%pi = ptrtoint ptr %p to i64
//	%m = and i64 %pi, 15
//	%c = icmp eq i64 %m, 0
//	call void @invariant(i1 %c)
//	%x = load i32, ptr %p
func alignedLoad(t *testing.T) (*ir.Unit, map[string]ir.ValueID) {
	t.Helper()
	u := ir.NewUnit("eph")
	b := ir.NewBuilder(u)
	b.NewProc("f", ir.Param{Name: "p", Type: ir.Ptr})
	b.SetBlock(b.NewBlock("entry"))
	p := b.Param(0)
	pi := b.PtrToInt("pi", p)
	m := b.And("m", pi, b.Const(ir.I64, 15))
	c := b.ICmp("c", ir.PredEQ, m, b.Const(ir.I64, 0))
	inv := b.Invariant(c)
	x := b.Load("x", ir.I32, p, 4)
	b.Ret(x)
	return u, map[string]ir.ValueID{"p": p, "pi": pi, "m": m, "c": c, "inv": inv, "x": x}
}

func TestNoMarkersYieldsEmptySet(t *testing.T) {
	u := ir.NewUnit("empty")
	b := ir.NewBuilder(u)
	b.NewProc("f", ir.Param{Name: "p", Type: ir.Ptr})
	b.SetBlock(b.NewBlock("entry"))
	x := b.Load("x", ir.I32, b.Param(0), 4)
	b.Ret(x)

	r := Compute(u)
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsEphemeral(x))
	assert.Empty(t, r.Lines())
}

func TestMarkerChainIsEphemeral(t *testing.T) {
	u, v := alignedLoad(t)
	r := Compute(u)

	for _, name := range []string{"inv", "c", "m", "pi"} {
		assert.True(t, r.IsEphemeral(v[name]), name)
	}
	// p also feeds the load
	assert.False(t, r.IsEphemeral(v["p"]))
	assert.False(t, r.IsEphemeral(v["x"]))
}

func TestSharedOperandIsNotEphemeral(t *testing.T) {
	u := ir.NewUnit("shared")
	b := ir.NewBuilder(u)
	b.NewProc("f", ir.Param{Name: "x", Type: ir.I64})
	b.SetBlock(b.NewBlock("entry"))
	y := b.Add("y", b.Param(0), b.Const(ir.I64, 1))
	c := b.ICmp("c", ir.PredNE, y, b.Const(ir.I64, 0))
	b.Invariant(c)
	b.Ret(y)

	r := Compute(u)
	assert.True(t, r.IsEphemeral(c))
	assert.False(t, r.IsEphemeral(y))
}

func TestValueIsVisitedOnce(t *testing.T) {
	// x feeds two markers. The second marker is popped first, so x is examined
	// while c1 is still unmarked and is never revisited.
	u := ir.NewUnit("once")
	b := ir.NewBuilder(u)
	b.NewProc("f", ir.Param{Name: "p", Type: ir.I64})
	b.SetBlock(b.NewBlock("entry"))
	x := b.Add("x", b.Param(0), b.Const(ir.I64, 1))
	c1 := b.ICmp("c1", ir.PredEQ, x, b.Const(ir.I64, 0))
	b.Invariant(c1)
	c2 := b.ICmp("c2", ir.PredNE, x, b.Const(ir.I64, 5))
	b.Invariant(c2)
	b.Ret()

	r := Compute(u)
	assert.True(t, r.IsEphemeral(c1))
	assert.True(t, r.IsEphemeral(c2))
	assert.False(t, r.IsEphemeral(x))
}

func TestMarkersInEveryProcedure(t *testing.T) {
	u := ir.NewUnit("multi")
	b := ir.NewBuilder(u)
	for _, name := range []string{"f", "g"} {
		b.NewProc(name, ir.Param{Name: "c", Type: ir.I1})
		b.SetBlock(b.NewBlock("entry"))
		b.Invariant(b.Param(0))
		b.Ret()
	}

	r := Compute(u)
	for _, p := range u.Procs() {
		assert.True(t, r.IsEphemeral(u.Proc(p).Params[0]))
	}
	assert.Equal(t, []string{
		"f: entry: call void @invariant(i1 %c)",
		"g: entry: call void @invariant(i1 %c)",
	}, r.Lines())
}

func TestPrint(t *testing.T) {
	u, _ := alignedLoad(t)

	var buf bytes.Buffer
	require.NoError(t, Compute(u).Print(&buf))

	expected := "Ephemeral values...\n" +
		"\tephemeral: f: entry: %pi = ptrtoint ptr %p to i64\n" +
		"\tephemeral: f: entry: %m = and i64 %pi, 15\n" +
		"\tephemeral: f: entry: %c = icmp eq i64 %m, 0\n" +
		"\tephemeral: f: entry: call void @invariant(i1 %c)\n"
	assert.Equal(t, expected, buf.String())
}

func TestAnalysisReplacesResult(t *testing.T) {
	u, v := alignedLoad(t)
	a := New()

	assert.Nil(t, a.Result())
	assert.False(t, a.IsEphemeral(v["c"]))

	first := a.Run(u)
	assert.True(t, a.IsEphemeral(v["c"]))

	second := a.Run(u)
	assert.NotSame(t, first, second)
	assert.Same(t, second, a.Result())
}

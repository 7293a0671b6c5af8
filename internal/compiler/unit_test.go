package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/ir"
)

func compileString(t *testing.T, src string) (*ir.Unit, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileUnit(v, "fallback")
}

const alignedSrc = `
unit: "aligned"
proc: f: {
	params: [{name: "p", type: "ptr"}, {name: "v", type: "i32"}]
	blocks: [{
		name: "entry"
		instrs: [
			{name: "pi", op: "ptrtoint", args: ["%p"]},
			{name: "m", op: "and", args: ["%pi", 15]},
			{name: "c", op: "icmp", pred: "eq", args: ["%m", 0]},
			{op: "invariant", args: ["%c"]},
			{name: "x", op: "load", type: "i32", args: ["%p"], align: 4},
			{op: "store", args: ["%v", "%p"]},
			{op: "ret", args: ["%x"]},
		]
	}]
}
`

func TestCompileUnitBasic(t *testing.T) {
	u, err := compileString(t, alignedSrc)
	require.NoError(t, err)

	assert.Equal(t, "aligned", u.Name)
	require.Len(t, u.Procs(), 1)

	expected := "proc @f(ptr %p, i32 %v) {\n" +
		"entry:\n" +
		"  %pi = ptrtoint ptr %p to i64\n" +
		"  %m = and i64 %pi, 15\n" +
		"  %c = icmp eq i64 %m, 0\n" +
		"  call void @invariant(i1 %c)\n" +
		"  %x = load i32, ptr %p, align 4\n" +
		"  store i32 %v, ptr %p, align 1\n" +
		"  ret i32 %x\n" +
		"}\n"
	assert.Equal(t, expected, u.String())
	assert.Empty(t, Validate(u))

	p := u.Procs()[0]
	c, ok := u.ValueByName(p, "c")
	require.True(t, ok)
	assert.Len(t, u.Value(c).Uses, 1)
	assert.True(t, u.Value(u.Value(c).Uses[0]).IsAssumption())
}

func TestCompileUnitFallbackName(t *testing.T) {
	u, err := compileString(t, `proc: f: blocks: [{name: "entry", instrs: [{op: "ret"}]}]`)
	require.NoError(t, err)
	assert.Equal(t, "fallback", u.Name)
}

func TestCompileUnitLoop(t *testing.T) {
	u, err := compileString(t, `
		proc: sum: {
			params: [{name: "a", type: "ptr"}, {name: "n", type: "i64"}]
			blocks: [
				{name: "entry", instrs: [{op: "jump", targets: ["loop"]}]},
				{name: "loop", instrs: [
					{name: "i", op: "phi", type: "i64", incoming: [
						{block: "entry", value: 0},
						{block: "loop", value: "%inext"},
					]},
					{name: "addr", op: "gep", args: ["%a", "%i"], elem_size: 4},
					{name: "x", op: "load", type: "i32", args: ["%addr"], align: 4},
					{name: "inext", op: "add", args: ["%i", 1]},
					{name: "done", op: "icmp", pred: "uge", args: ["%inext", "%n"]},
					{op: "br", args: ["%done"], targets: ["exit", "loop"]},
				]},
				{name: "exit", instrs: [{op: "ret"}]},
			]
		}
	`)
	require.NoError(t, err)
	assert.Empty(t, Validate(u))

	p := u.Procs()[0]
	loop, ok := u.BlockByName(p, "loop")
	require.True(t, ok)
	entry, _ := u.BlockByName(p, "entry")
	assert.ElementsMatch(t, []ir.BlockID{entry, loop}, u.Block(loop).Preds)
	assert.Equal(t, 1, u.FirstInsertionPoint(loop))

	i, _ := u.ValueByName(p, "i")
	assert.Equal(t, "%i = phi i64 [ 0, %entry ], [ %inext, %loop ]", u.ValueString(i))
	addr, _ := u.ValueByName(p, "addr")
	assert.Equal(t, "%addr = gep ptr %a, i64 %i, 4", u.ValueString(addr))
}

func TestCompileUnitLiterals(t *testing.T) {
	u, err := compileString(t, `
		proc: f: {
			params: [{name: "d", type: "ptr"}, {name: "s", type: "ptr"}, {name: "w", type: "i32"}]
			blocks: [{name: "entry", instrs: [
				{name: "x", op: "add", args: [7, "%w"]},
				{name: "y", op: "mul", type: "i16", args: [3, 4]},
				{op: "store", type: "i8", args: [255, "%d"], align: 2},
				{op: "memset", args: ["%d", 0, 64], align: 8},
				{op: "memcpy", args: ["%d", "%s", {const: 16, type: "i32"}]},
				{name: "r", op: "call", callee: "helper", type: "i32", args: ["%x"]},
				{op: "ret", args: ["%r"]},
			]}]
		}
	`)
	require.NoError(t, err)

	p := u.Procs()[0]
	lines := map[string]string{}
	for _, b := range u.Proc(p).Blocks {
		for _, id := range u.Block(b).Instrs {
			lines[u.Value(id).Op.String()+u.Value(id).Callee] = u.ValueString(id)
		}
	}
	assert.Equal(t, "%x = add i32 7, %w", lines["add"])
	assert.Equal(t, "%y = mul i16 3, 4", lines["mul"])
	assert.Equal(t, "store i8 -1, ptr %d, align 2", lines["store"])
	assert.Equal(t, "call void @memset(ptr %d, i8 0, i64 64), align 8", lines["callmemset"])
	assert.Equal(t, "call void @memcpy(ptr %d, ptr %s, i32 16), align 1", lines["callmemcpy"])
	assert.Equal(t, "%r = call i32 @helper(i32 %x)", lines["callhelper"])
}

func TestCompileUnitErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{
			name:  "no procedures",
			src:   `unit: "x"`,
			field: "proc",
			msg:   "at least one procedure is required",
		},
		{
			name:  "no blocks",
			src:   `proc: f: params: []`,
			field: "proc.f.blocks",
			msg:   "at least one block is required",
		},
		{
			name:  "unknown opcode",
			src:   `proc: f: blocks: [{name: "entry", instrs: [{op: "fma"}]}]`,
			field: "proc.f.blocks[0].instrs[0].op",
			msg:   `unknown opcode "fma"`,
		},
		{
			name:  "undefined value",
			src:   `proc: f: blocks: [{name: "entry", instrs: [{op: "ret", args: ["%nope"]}]}]`,
			field: "proc.f.blocks[0].instrs[0].args[0]",
			msg:   `undefined value "%nope"`,
		},
		{
			name:  "bare reference",
			src:   `proc: f: {params: [{name: "p", type: "ptr"}], blocks: [{name: "entry", instrs: [{op: "ret", args: ["p"]}]}]}`,
			field: "proc.f.blocks[0].instrs[0].args[0]",
			msg:   `operand "p" must be a %name reference or an integer`,
		},
		{
			name:  "undefined block",
			src:   `proc: f: blocks: [{name: "entry", instrs: [{op: "jump", targets: ["nowhere"]}]}]`,
			field: "proc.f.blocks[0].instrs[0].targets[0]",
			msg:   `undefined block "nowhere"`,
		},
		{
			name: "duplicate value",
			src: `proc: f: {params: [{name: "p", type: "ptr"}], blocks: [{name: "entry", instrs: [
				{name: "p", op: "load", type: "i8", args: ["%p"]},
			]}]}`,
			field: "proc.f.blocks[0].instrs[0].name",
			msg:   `duplicate value name "p"`,
		},
		{
			name: "duplicate block",
			src: `proc: f: blocks: [
				{name: "entry", instrs: [{op: "ret"}]},
				{name: "entry", instrs: [{op: "ret"}]},
			]`,
			field: "proc.f.blocks[1].name",
			msg:   `duplicate block name "entry"`,
		},
		{
			name:  "missing type",
			src:   `proc: f: {params: [{name: "p", type: "ptr"}], blocks: [{name: "entry", instrs: [{op: "load", args: ["%p"]}]}]}`,
			field: "proc.f.blocks[0].instrs[0].type",
			msg:   "load requires a type",
		},
		{
			name:  "bad type",
			src:   `proc: f: {params: [{name: "p", type: "f32"}], blocks: [{name: "entry", instrs: [{op: "ret"}]}]}`,
			field: "proc.f.params[0].type",
			msg:   `unknown type "f32"`,
		},
		{
			name:  "bad predicate",
			src:   `proc: f: blocks: [{name: "entry", instrs: [{op: "icmp", pred: "lt", args: [1, 2]}]}]`,
			field: "proc.f.blocks[0].instrs[0].pred",
			msg:   `unknown predicate "lt"`,
		},
		{
			name:  "alignment out of range",
			src:   `proc: f: {params: [{name: "p", type: "ptr"}], blocks: [{name: "entry", instrs: [{op: "store", args: [1, "%p"], align: 1073741824}]}]}`,
			field: "proc.f.blocks[0].instrs[0].align",
			msg:   "alignment 1073741824 out of range",
		},
		{
			name:  "float operand",
			src:   `proc: f: blocks: [{name: "entry", instrs: [{name: "x", op: "add", args: [1.5, 2]}]}]`,
			field: "proc.f.blocks[0].instrs[0].args[0]",
			msg:   "float operands are forbidden, use an integer",
		},
		{
			name:  "phi without incoming",
			src:   `proc: f: blocks: [{name: "entry", instrs: [{name: "i", op: "phi", type: "i64"}]}]`,
			field: "proc.f.blocks[0].instrs[0].incoming",
			msg:   "phi requires incoming values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, tt.msg, ce.Message)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCompileUnitCUEError(t *testing.T) {
	v := cuecontext.New().CompileString(`proc: f: blocks: 1 & 2`)
	_, err := CompileUnit(v, "bad")
	require.Error(t, err)
}

func TestCompileUnitMultipleProcs(t *testing.T) {
	u, err := compileString(t, `
		proc: first: blocks: [{name: "entry", instrs: [{op: "ret"}]}]
		proc: second: blocks: [{name: "entry", instrs: [{op: "ret"}]}]
	`)
	require.NoError(t, err)
	require.Len(t, u.Procs(), 2)
	assert.Equal(t, "first", u.Proc(u.Procs()[0]).Name)
	assert.Equal(t, "second", u.Proc(u.Procs()[1]).Name)
}

func TestCompileUnitLookupPath(t *testing.T) {
	v := cuecontext.New().CompileString(`program: {` + alignedSrc + `}`)
	u, err := CompileUnit(v.LookupPath(cue.ParsePath("program")), "x")
	require.NoError(t, err)
	assert.Equal(t, "aligned", u.Name)
}

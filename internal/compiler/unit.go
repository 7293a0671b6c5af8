package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/invprop/internal/ir"
)

// CompileUnit builds an ir.Unit from a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value holds an optional unit name and one struct per procedure:
//
//	unit: "copy"
//	proc: f: {
//		params: [{name: "p", type: "ptr"}]
//		blocks: [{
//			name: "entry"
//			instrs: [
//				{name: "pi", op: "ptrtoint", args: ["%p"]},
//				{name: "m", op: "and", args: ["%pi", 15]},
//				{name: "c", op: "icmp", pred: "eq", args: ["%m", 0]},
//				{op: "invariant", args: ["%c"]},
//				{name: "x", op: "load", type: "i32", args: ["%p"], align: 4},
//				{op: "ret", args: ["%x"]},
//			]
//		}]
//	}
//
// fallback names the unit when the value carries no unit field.
func CompileUnit(v cue.Value, fallback string) (*ir.Unit, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name := fallback
	if nameVal := v.LookupPath(cue.ParsePath("unit")); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name = s
	}

	procsVal := v.LookupPath(cue.ParsePath("proc"))
	if !procsVal.Exists() {
		return nil, &CompileError{
			Field:   "proc",
			Message: "at least one procedure is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := procsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	u := ir.NewUnit(name)
	b := ir.NewBuilder(u)
	for iter.Next() {
		pc := &procCompiler{
			u:      u,
			b:      b,
			path:   "proc." + iter.Label(),
			values: make(map[string]ir.ValueID),
			blocks: make(map[string]ir.BlockID),
		}
		if err := pc.compile(iter.Label(), iter.Value()); err != nil {
			return nil, err
		}
	}
	if len(u.Procs()) == 0 {
		return nil, &CompileError{
			Field:   "proc",
			Message: "at least one procedure is required",
			Pos:     procsVal.Pos(),
		}
	}
	return u, nil
}

// procCompiler compiles one procedure in two passes: the first creates every
// block and operation so that operands may refer forward (phis, branches),
// the second resolves operands, targets and incoming edges.
type procCompiler struct {
	u    *ir.Unit
	b    *ir.Builder
	proc ir.ProcID
	path string

	values  map[string]ir.ValueID
	blocks  map[string]ir.BlockID
	pending []pendingInstr
}

type pendingInstr struct {
	id      ir.ValueID
	v       cue.Value
	path    string
	hasType bool
	hint    ir.Type
}

func (pc *procCompiler) compile(name string, v cue.Value) error {
	params, err := pc.parseParams(v)
	if err != nil {
		return err
	}
	pc.proc = pc.b.NewProc(name, params...)
	for _, id := range pc.u.Proc(pc.proc).Params {
		pc.values[pc.u.Value(id).Name] = id
	}

	blocksVal := v.LookupPath(cue.ParsePath("blocks"))
	if !blocksVal.Exists() {
		return &CompileError{Field: pc.path + ".blocks", Message: "at least one block is required", Pos: v.Pos()}
	}
	blockIter, err := blocksVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; blockIter.Next(); i++ {
		if err := pc.declareBlock(fmt.Sprintf("%s.blocks[%d]", pc.path, i), blockIter.Value()); err != nil {
			return err
		}
	}
	if len(pc.u.Proc(pc.proc).Blocks) == 0 {
		return &CompileError{Field: pc.path + ".blocks", Message: "at least one block is required", Pos: blocksVal.Pos()}
	}

	for _, p := range pc.pending {
		if err := pc.resolve(p); err != nil {
			return err
		}
	}
	return nil
}

func (pc *procCompiler) parseParams(v cue.Value) ([]ir.Param, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil // params are optional
	}
	iter, err := paramsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []ir.Param
	seen := make(map[string]bool)
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("%s.params[%d]", pc.path, i)
		pv := iter.Value()
		name, err := requiredString(pv, "name", field)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, &CompileError{Field: field + ".name", Message: fmt.Sprintf("duplicate value name %q", name), Pos: pv.Pos()}
		}
		seen[name] = true
		typ, err := requiredType(pv, field)
		if err != nil {
			return nil, err
		}
		params = append(params, ir.Param{Name: name, Type: typ})
	}
	return params, nil
}

func (pc *procCompiler) declareBlock(field string, v cue.Value) error {
	name, err := requiredString(v, "name", field)
	if err != nil {
		return err
	}
	if _, dup := pc.blocks[name]; dup {
		return &CompileError{Field: field + ".name", Message: fmt.Sprintf("duplicate block name %q", name), Pos: v.Pos()}
	}
	blk := pc.b.NewBlock(name)
	pc.blocks[name] = blk
	pc.b.SetBlock(blk)

	instrsVal := v.LookupPath(cue.ParsePath("instrs"))
	if !instrsVal.Exists() {
		return nil // an empty block is reported by Validate
	}
	iter, err := instrsVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		if err := pc.declareInstr(fmt.Sprintf("%s.instrs[%d]", field, i), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// intrinsicOps are opcode spellings that stand for a call to a known callee.
var intrinsicOps = map[string]bool{
	"invariant": true,
	"memset":    true,
	"memcpy":    true,
	"memmove":   true,
}

func (pc *procCompiler) declareInstr(field string, v cue.Value) error {
	opName, err := requiredString(v, "op", field)
	if err != nil {
		return err
	}

	callee := ""
	op, ok := ir.ParseOp(opName)
	if intrinsicOps[opName] {
		op, ok, callee = ir.OpCall, true, opName
	}
	if !ok {
		return &CompileError{Field: field + ".op", Message: fmt.Sprintf("unknown opcode %q", opName), Pos: v.Pos()}
	}

	name, err := optionalString(v, "name")
	if err != nil {
		return err
	}
	if name != "" {
		if _, dup := pc.values[name]; dup {
			return &CompileError{Field: field + ".name", Message: fmt.Sprintf("duplicate value name %q", name), Pos: v.Pos()}
		}
	}

	typ, hasType, err := optionalType(v, field)
	if err != nil {
		return err
	}
	resultType, err := defaultResultType(op, typ, hasType, field, v)
	if err != nil {
		return err
	}

	id := pc.b.Instr(op, resultType, name)
	if name != "" {
		pc.values[name] = id
	}
	val := pc.u.Value(id)

	switch op {
	case ir.OpICmp:
		predName, err := requiredString(v, "pred", field)
		if err != nil {
			return err
		}
		pred, ok := ir.ParsePredicate(predName)
		if !ok {
			return &CompileError{Field: field + ".pred", Message: fmt.Sprintf("unknown predicate %q", predName), Pos: v.Pos()}
		}
		val.Pred = pred
	case ir.OpCall:
		if callee == "" {
			if callee, err = requiredString(v, "callee", field); err != nil {
				return err
			}
		}
		val.Callee = callee
		val.Intrinsic = ir.LookupIntrinsic(callee)
	case ir.OpGEP:
		val.ElemSize = 1
		if n, ok, err := optionalInt(v, "elem_size"); err != nil {
			return err
		} else if ok {
			val.ElemSize = n
		}
	}

	if val.IsMemoryOp() {
		val.Align = 1
		if n, ok, err := optionalInt(v, "align"); err != nil {
			return err
		} else if ok {
			if n < 0 || n > ir.MaxAlignment {
				return &CompileError{Field: field + ".align", Message: fmt.Sprintf("alignment %d out of range", n), Pos: v.Pos()}
			}
			val.Align = uint32(n)
		}
	}

	pc.pending = append(pc.pending, pendingInstr{id: id, v: v, path: field, hasType: hasType, hint: typ})
	return nil
}

// defaultResultType returns the type an operation produces. Binary operations
// without an explicit type are typed after their first reference operand once
// operands are resolved.
func defaultResultType(op ir.Op, typ ir.Type, hasType bool, field string, v cue.Value) (ir.Type, error) {
	switch {
	case op == ir.OpICmp:
		return ir.I1, nil
	case op == ir.OpGEP, op == ir.OpIntToPtr, op == ir.OpBitcast:
		return ir.Ptr, nil
	case op == ir.OpPtrToInt && !hasType:
		return ir.I64, nil
	case op == ir.OpStore, op.IsTerminator():
		return ir.Void, nil
	case op == ir.OpCall && !hasType:
		return ir.Void, nil
	case op.IsBinary() && !hasType:
		return ir.I64, nil
	case hasType:
		return typ, nil
	default:
		return ir.Type{}, &CompileError{Field: field + ".type", Message: fmt.Sprintf("%s requires a type", op), Pos: v.Pos()}
	}
}

func (pc *procCompiler) resolve(p pendingInstr) error {
	v := p.v
	val := pc.u.Value(p.id)

	switch val.Op {
	case ir.OpPhi:
		return pc.resolveIncoming(p)
	case ir.OpJump, ir.OpBranch:
		targets, err := pc.resolveTargets(p)
		if err != nil {
			return err
		}
		pc.u.SetTargets(p.id, targets)
	}

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return nil
	}
	iter, err := argsVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	var raw []cue.Value
	for iter.Next() {
		raw = append(raw, iter.Value())
	}

	// references first, so literals can take the type of their neighbours
	args := make([]ir.ValueID, len(raw))
	for i, a := range raw {
		if a.Kind() != cue.StringKind {
			continue
		}
		if args[i], err = pc.reference(a, fmt.Sprintf("%s.args[%d]", p.path, i)); err != nil {
			return err
		}
	}
	if val.Op.IsBinary() && !p.hasType {
		for _, id := range args {
			if id != ir.NoValue {
				pc.u.Value(p.id).Type = pc.u.Value(id).Type
				break
			}
		}
	}
	for i, a := range raw {
		if args[i] != ir.NoValue {
			continue
		}
		t := pc.literalType(p, i, args)
		if args[i], err = pc.literal(a, t, fmt.Sprintf("%s.args[%d]", p.path, i)); err != nil {
			return err
		}
	}
	pc.u.SetOperands(p.id, args)
	return nil
}

// literalType picks the type of an integer literal in operand slot i.
func (pc *procCompiler) literalType(p pendingInstr, i int, args []ir.ValueID) ir.Type {
	val := pc.u.Value(p.id)
	switch {
	case val.Op.IsBinary():
		return val.Type
	case val.Op == ir.OpICmp:
		for j, id := range args {
			if j != i && id != ir.NoValue {
				return pc.u.Value(id).Type
			}
		}
	case val.Op == ir.OpCall && val.Intrinsic == ir.IntrinsicMemset && i == 1:
		return ir.I8
	case val.Op == ir.OpStore && i == 0 && p.hasType:
		return p.hint
	case val.Op == ir.OpRet && p.hasType:
		return p.hint
	}
	return ir.I64
}

func (pc *procCompiler) reference(v cue.Value, field string) (ir.ValueID, error) {
	s, err := v.String()
	if err != nil {
		return ir.NoValue, formatCUEError(err)
	}
	name, ok := strings.CutPrefix(s, "%")
	if !ok {
		return ir.NoValue, &CompileError{Field: field, Message: fmt.Sprintf("operand %q must be a %%name reference or an integer", s), Pos: v.Pos()}
	}
	id, ok := pc.values[name]
	if !ok {
		return ir.NoValue, &CompileError{Field: field, Message: fmt.Sprintf("undefined value %q", s), Pos: v.Pos()}
	}
	return id, nil
}

// literal compiles an integer operand, either bare or as {const, type}.
func (pc *procCompiler) literal(v cue.Value, t ir.Type, field string) (ir.ValueID, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return ir.NoValue, formatCUEError(err)
		}
		return pc.u.Const(t, n), nil
	case cue.StructKind:
		n, ok, err := optionalInt(v, "const")
		if err != nil {
			return ir.NoValue, err
		}
		if !ok {
			return ir.NoValue, &CompileError{Field: field + ".const", Message: "constant operand requires a const field", Pos: v.Pos()}
		}
		if typ, hasType, err := optionalType(v, field); err != nil {
			return ir.NoValue, err
		} else if hasType {
			t = typ
		}
		return pc.u.Const(t, n), nil
	case cue.FloatKind, cue.NumberKind:
		return ir.NoValue, &CompileError{Field: field, Message: "float operands are forbidden, use an integer", Pos: v.Pos()}
	default:
		return ir.NoValue, &CompileError{Field: field, Message: fmt.Sprintf("unsupported operand kind: %v", v.Kind()), Pos: v.Pos()}
	}
}

func (pc *procCompiler) resolveTargets(p pendingInstr) ([]ir.BlockID, error) {
	targetsVal := p.v.LookupPath(cue.ParsePath("targets"))
	if !targetsVal.Exists() {
		return nil, &CompileError{Field: p.path + ".targets", Message: "branch requires targets", Pos: p.v.Pos()}
	}
	iter, err := targetsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var targets []ir.BlockID
	for i := 0; iter.Next(); i++ {
		blk, err := pc.blockRef(iter.Value(), fmt.Sprintf("%s.targets[%d]", p.path, i))
		if err != nil {
			return nil, err
		}
		targets = append(targets, blk)
	}
	return targets, nil
}

func (pc *procCompiler) resolveIncoming(p pendingInstr) error {
	incVal := p.v.LookupPath(cue.ParsePath("incoming"))
	if !incVal.Exists() {
		return &CompileError{Field: p.path + ".incoming", Message: "phi requires incoming values", Pos: p.v.Pos()}
	}
	iter, err := incVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	phiType := pc.u.Value(p.id).Type
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("%s.incoming[%d]", p.path, i)
		ev := iter.Value()

		blkVal := ev.LookupPath(cue.ParsePath("block"))
		if !blkVal.Exists() {
			return &CompileError{Field: field + ".block", Message: "block is required", Pos: ev.Pos()}
		}
		blk, err := pc.blockRef(blkVal, field+".block")
		if err != nil {
			return err
		}

		valVal := ev.LookupPath(cue.ParsePath("value"))
		if !valVal.Exists() {
			return &CompileError{Field: field + ".value", Message: "value is required", Pos: ev.Pos()}
		}
		var id ir.ValueID
		if valVal.Kind() == cue.StringKind {
			id, err = pc.reference(valVal, field+".value")
		} else {
			id, err = pc.literal(valVal, phiType, field+".value")
		}
		if err != nil {
			return err
		}
		pc.u.AddIncoming(p.id, blk, id)
	}
	return nil
}

func (pc *procCompiler) blockRef(v cue.Value, field string) (ir.BlockID, error) {
	s, err := v.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	blk, ok := pc.blocks[strings.TrimPrefix(s, "%")]
	if !ok {
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("undefined block %q", s), Pos: v.Pos()}
	}
	return blk, nil
}

func requiredString(v cue.Value, key, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, key string) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return n, true, nil
}

func requiredType(v cue.Value, field string) (ir.Type, error) {
	t, ok, err := optionalType(v, field)
	if err != nil {
		return ir.Type{}, err
	}
	if !ok {
		return ir.Type{}, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	return t, nil
}

func optionalType(v cue.Value, field string) (ir.Type, bool, error) {
	s, err := optionalString(v, "type")
	if err != nil || s == "" {
		return ir.Type{}, false, err
	}
	t, err := ir.ParseType(s)
	if err != nil {
		return ir.Type{}, false, &CompileError{Field: field + ".type", Message: err.Error(), Pos: v.Pos()}
	}
	return t, true, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

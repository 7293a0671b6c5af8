package ir

// Param declares a procedure parameter.
type Param struct {
	Name string
	Type Type
}

// Builder appends procedures, blocks and operations to a Unit.
//
// Pointers returned by Unit.Value are invalidated by any Builder call that
// allocates, so callers hold handles, not pointers, across construction.
type Builder struct {
	u     *Unit
	proc  ProcID
	block BlockID
}

// NewBuilder creates a builder for u.
func NewBuilder(u *Unit) *Builder {
	return &Builder{u: u}
}

// Unit returns the unit under construction.
func (b *Builder) Unit() *Unit { return b.u }

// NewProc starts a new procedure and makes it current.
func (b *Builder) NewProc(name string, params ...Param) ProcID {
	p := b.u.newProc(name)
	for _, prm := range params {
		id := b.u.newValue(Value{Op: OpParam, Type: prm.Type, Name: prm.Name, Proc: p})
		b.u.procs[p].Params = append(b.u.procs[p].Params, id)
	}
	b.proc = p
	b.block = 0
	return p
}

// Param returns the i-th parameter of the current procedure.
func (b *Builder) Param(i int) ValueID {
	return b.u.Proc(b.proc).Params[i]
}

// NewBlock appends a block to the current procedure without selecting it.
func (b *Builder) NewBlock(name string) BlockID {
	return b.u.newBlock(b.proc, name)
}

// SetBlock selects the block new operations are appended to.
func (b *Builder) SetBlock(id BlockID) {
	b.block = id
}

// Const returns an interned constant.
func (b *Builder) Const(t Type, c int64) ValueID {
	return b.u.Const(t, c)
}

// Instr appends a raw operation to the current block. Kind-specific fields are
// set by the caller through Unit.Value.
func (b *Builder) Instr(op Op, t Type, name string, args ...ValueID) ValueID {
	if b.block == 0 {
		panic("ir: no current block")
	}
	id := b.u.newValue(Value{Op: op, Type: t, Name: name, Proc: b.proc, Block: b.block})
	b.u.blocks[b.block].Instrs = append(b.u.blocks[b.block].Instrs, id)
	if len(args) > 0 {
		b.u.SetOperands(id, args)
	}
	return id
}

// Binary appends a two-operand integer operation typed like x.
func (b *Builder) Binary(op Op, name string, x, y ValueID) ValueID {
	return b.Instr(op, b.u.Value(x).Type, name, x, y)
}

func (b *Builder) Add(name string, x, y ValueID) ValueID { return b.Binary(OpAdd, name, x, y) }
func (b *Builder) Sub(name string, x, y ValueID) ValueID { return b.Binary(OpSub, name, x, y) }
func (b *Builder) Mul(name string, x, y ValueID) ValueID { return b.Binary(OpMul, name, x, y) }
func (b *Builder) Shl(name string, x, y ValueID) ValueID { return b.Binary(OpShl, name, x, y) }
func (b *Builder) And(name string, x, y ValueID) ValueID { return b.Binary(OpAnd, name, x, y) }
func (b *Builder) Or(name string, x, y ValueID) ValueID  { return b.Binary(OpOr, name, x, y) }

// ICmp appends an integer comparison.
func (b *Builder) ICmp(name string, pred Predicate, x, y ValueID) ValueID {
	id := b.Instr(OpICmp, I1, name, x, y)
	b.u.Value(id).Pred = pred
	return id
}

// Cast appends a conversion of x to t.
func (b *Builder) Cast(op Op, name string, t Type, x ValueID) ValueID {
	return b.Instr(op, t, name, x)
}

// PtrToInt appends a pointer-to-integer conversion to i64.
func (b *Builder) PtrToInt(name string, x ValueID) ValueID {
	return b.Cast(OpPtrToInt, name, I64, x)
}

// Bitcast appends a pointer cast.
func (b *Builder) Bitcast(name string, x ValueID) ValueID {
	return b.Cast(OpBitcast, name, Ptr, x)
}

// GEP appends base + index*elemSize.
func (b *Builder) GEP(name string, base, index ValueID, elemSize int64) ValueID {
	id := b.Instr(OpGEP, Ptr, name, base, index)
	b.u.Value(id).ElemSize = elemSize
	return id
}

// Phi appends an empty phi; use AddIncoming to populate it.
func (b *Builder) Phi(name string, t Type) ValueID {
	return b.Instr(OpPhi, t, name)
}

// AddIncoming adds an incoming edge to a phi.
func (b *Builder) AddIncoming(phi ValueID, from BlockID, val ValueID) {
	b.u.AddIncoming(phi, from, val)
}

// Load appends a load of type t from ptr.
func (b *Builder) Load(name string, t Type, ptr ValueID, align uint32) ValueID {
	id := b.Instr(OpLoad, t, name, ptr)
	b.u.Value(id).Align = align
	return id
}

// Store appends a store of val to ptr.
func (b *Builder) Store(val, ptr ValueID, align uint32) ValueID {
	id := b.Instr(OpStore, Void, "", val, ptr)
	b.u.Value(id).Align = align
	return id
}

// Call appends a call. Known callees resolve to an Intrinsic.
func (b *Builder) Call(name string, t Type, callee string, args ...ValueID) ValueID {
	id := b.Instr(OpCall, t, name, args...)
	v := b.u.Value(id)
	v.Callee = callee
	v.Intrinsic = LookupIntrinsic(callee)
	return id
}

// Invariant appends an assumption marker asserting cond.
func (b *Builder) Invariant(cond ValueID) ValueID {
	return b.Call("", Void, "invariant", cond)
}

// Memset appends memset(dest, val, n).
func (b *Builder) Memset(dest, val, n ValueID, align uint32) ValueID {
	id := b.Call("", Void, "memset", dest, val, n)
	b.u.Value(id).Align = align
	return id
}

// Memcpy appends memcpy(dest, src, n).
func (b *Builder) Memcpy(dest, src, n ValueID, align uint32) ValueID {
	id := b.Call("", Void, "memcpy", dest, src, n)
	b.u.Value(id).Align = align
	return id
}

// Memmove appends memmove(dest, src, n).
func (b *Builder) Memmove(dest, src, n ValueID, align uint32) ValueID {
	id := b.Call("", Void, "memmove", dest, src, n)
	b.u.Value(id).Align = align
	return id
}

// Jump ends the current block with an unconditional jump.
func (b *Builder) Jump(target BlockID) ValueID {
	id := b.Instr(OpJump, Void, "")
	b.u.SetTargets(id, []BlockID{target})
	return id
}

// Branch ends the current block with a two-way conditional branch.
func (b *Builder) Branch(cond ValueID, then, els BlockID) ValueID {
	id := b.Instr(OpBranch, Void, "", cond)
	b.u.SetTargets(id, []BlockID{then, els})
	return id
}

// Ret ends the current block.
func (b *Builder) Ret(vals ...ValueID) ValueID {
	return b.Instr(OpRet, Void, "", vals...)
}

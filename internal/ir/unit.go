package ir

import "slices"

// BlockID is a stable handle into Unit's block arena.
type BlockID uint32

// ProcID is a stable handle into Unit's procedure arena.
type ProcID uint32

// Block is an ordered sequence of operations ending in a terminator.
type Block struct {
	ID     BlockID
	Name   string
	Proc   ProcID
	Instrs []ValueID
	Preds  []BlockID
}

// Procedure is an ordered list of blocks. Blocks[0] is the entry block.
type Procedure struct {
	ID     ProcID
	Name   string
	Params []ValueID
	Blocks []BlockID
}

// Entry returns the entry block, or 0 for an empty procedure.
func (p *Procedure) Entry() BlockID {
	if len(p.Blocks) == 0 {
		return 0
	}
	return p.Blocks[0]
}

type constKey struct {
	typ Type
	val int64
}

// Unit is a compilation unit and the sole owner of all IR entities.
type Unit struct {
	Name string

	values []Value
	blocks []Block
	procs  []Procedure
	consts map[constKey]ValueID
}

// NewUnit creates an empty compilation unit.
func NewUnit(name string) *Unit {
	return &Unit{
		Name:   name,
		values: make([]Value, 1, 64),
		blocks: make([]Block, 1, 16),
		procs:  make([]Procedure, 1, 4),
		consts: make(map[constKey]ValueID),
	}
}

// Value returns the value for id. It panics on an invalid handle.
func (u *Unit) Value(id ValueID) *Value {
	if id == NoValue || int(id) >= len(u.values) {
		panic("ir: invalid value handle")
	}
	return &u.values[id]
}

// Block returns the block for id. It panics on an invalid handle.
func (u *Unit) Block(id BlockID) *Block {
	if id == 0 || int(id) >= len(u.blocks) {
		panic("ir: invalid block handle")
	}
	return &u.blocks[id]
}

// Proc returns the procedure for id. It panics on an invalid handle.
func (u *Unit) Proc(id ProcID) *Procedure {
	if id == 0 || int(id) >= len(u.procs) {
		panic("ir: invalid procedure handle")
	}
	return &u.procs[id]
}

// Procs returns the procedure handles in declaration order.
func (u *Unit) Procs() []ProcID {
	ids := make([]ProcID, 0, len(u.procs)-1)
	for i := 1; i < len(u.procs); i++ {
		ids = append(ids, ProcID(i))
	}
	return ids
}

// ProcByName looks up a procedure by name.
func (u *Unit) ProcByName(name string) (ProcID, bool) {
	for i := 1; i < len(u.procs); i++ {
		if u.procs[i].Name == name {
			return ProcID(i), true
		}
	}
	return 0, false
}

// ValueByName looks up a named parameter or operation within a procedure.
func (u *Unit) ValueByName(p ProcID, name string) (ValueID, bool) {
	proc := u.Proc(p)
	for _, id := range proc.Params {
		if u.values[id].Name == name {
			return id, true
		}
	}
	for _, b := range proc.Blocks {
		for _, id := range u.blocks[b].Instrs {
			if u.values[id].Name == name {
				return id, true
			}
		}
	}
	return NoValue, false
}

// BlockByName looks up a block within a procedure.
func (u *Unit) BlockByName(p ProcID, name string) (BlockID, bool) {
	for _, b := range u.Proc(p).Blocks {
		if u.blocks[b].Name == name {
			return b, true
		}
	}
	return 0, false
}

// NumValues returns the number of values in the arena, excluding the invalid slot.
func (u *Unit) NumValues() int { return len(u.values) - 1 }

// Const returns the interned constant of type t with value c.
func (u *Unit) Const(t Type, c int64) ValueID {
	c = truncConst(c, t.Width())
	key := constKey{typ: t, val: c}
	if id, ok := u.consts[key]; ok {
		return id
	}
	id := u.newValue(Value{Op: OpConst, Type: t, Const: c})
	u.consts[key] = id
	return id
}

// Terminator returns the last operation of b if it is a terminator.
func (u *Unit) Terminator(b BlockID) ValueID {
	instrs := u.Block(b).Instrs
	if len(instrs) == 0 {
		return NoValue
	}
	last := instrs[len(instrs)-1]
	if !u.values[last].Op.IsTerminator() {
		return NoValue
	}
	return last
}

// Succs returns the successors of b in terminator order.
func (u *Unit) Succs(b BlockID) []BlockID {
	term := u.Terminator(b)
	if term == NoValue {
		return nil
	}
	return u.values[term].Targets
}

// FirstInsertionPoint returns the index of the first operation after the
// leading phis of b. Phis do not materialise code at their position.
func (u *Unit) FirstInsertionPoint(b BlockID) int {
	instrs := u.Block(b).Instrs
	i := 0
	for i < len(instrs) && u.values[instrs[i]].Op == OpPhi {
		i++
	}
	return i
}

// SetOperands replaces the operand list of id and keeps use lists consistent.
func (u *Unit) SetOperands(id ValueID, args []ValueID) {
	v := u.Value(id)
	for _, a := range v.Args {
		u.removeUse(a, id)
	}
	v.Args = slices.Clone(args)
	for _, a := range v.Args {
		u.addUse(a, id)
	}
}

// AddIncoming appends an incoming (block, value) pair to a phi.
func (u *Unit) AddIncoming(phi ValueID, from BlockID, val ValueID) {
	v := u.Value(phi)
	v.Args = append(v.Args, val)
	v.Incoming = append(v.Incoming, from)
	u.addUse(val, phi)
}

// SetTargets sets the successors of a terminator and updates predecessor lists.
func (u *Unit) SetTargets(term ValueID, targets []BlockID) {
	v := u.Value(term)
	from := v.Block
	for _, t := range v.Targets {
		preds := u.blocks[t].Preds
		if i := slices.Index(preds, from); i >= 0 {
			u.blocks[t].Preds = slices.Delete(preds, i, i+1)
		}
	}
	v.Targets = slices.Clone(targets)
	for _, t := range v.Targets {
		u.blocks[t].Preds = append(u.blocks[t].Preds, from)
	}
}

// SetAlign updates the alignment annotation of a memory operation.
func (u *Unit) SetAlign(id ValueID, align uint32) {
	u.Value(id).Align = align
}

func (u *Unit) newValue(v Value) ValueID {
	id := ValueID(len(u.values))
	v.ID = id
	u.values = append(u.values, v)
	return id
}

func (u *Unit) newBlock(p ProcID, name string) BlockID {
	id := BlockID(len(u.blocks))
	u.blocks = append(u.blocks, Block{ID: id, Name: name, Proc: p})
	u.procs[p].Blocks = append(u.procs[p].Blocks, id)
	return id
}

func (u *Unit) newProc(name string) ProcID {
	id := ProcID(len(u.procs))
	u.procs = append(u.procs, Procedure{ID: id, Name: name})
	return id
}

func (u *Unit) addUse(of, user ValueID) {
	if of == NoValue {
		return
	}
	u.values[of].Uses = append(u.values[of].Uses, user)
}

func (u *Unit) removeUse(of, user ValueID) {
	if of == NoValue {
		return
	}
	uses := u.values[of].Uses
	if i := slices.Index(uses, user); i >= 0 {
		u.values[of].Uses = slices.Delete(uses, i, i+1)
	}
}

package ir

// ValueID is a stable handle into Unit's value arena.
type ValueID uint32

// NoValue is the invalid value handle.
const NoValue ValueID = 0

// Value is a node of the def-use graph: a constant, a parameter, or an operation.
//
// Args are forward references to operands; Uses holds one back reference per
// operand slot that names this value, so a value used twice by the same
// operation appears twice. Kind-specific fields are only meaningful for the
// opcodes documented on them.
type Value struct {
	ID   ValueID
	Op   Op
	Type Type
	Name string

	// Proc owns parameters and operations; 0 for unit-level constants.
	Proc ProcID
	// Block owns operations; 0 for constants and parameters.
	Block BlockID

	Args []ValueID
	Uses []ValueID

	// Const is the OpConst payload, sign-extended from Type.Width().
	Const int64
	// Pred is the OpICmp predicate.
	Pred Predicate
	// Callee and Intrinsic describe OpCall.
	Callee    string
	Intrinsic Intrinsic
	// ElemSize is the OpGEP index scale in bytes.
	ElemSize int64
	// Align is the alignment annotation of loads, stores and memory intrinsics.
	Align uint32
	// Incoming lists OpPhi predecessor blocks, parallel to Args.
	Incoming []BlockID
	// Targets lists OpJump and OpBranch successors.
	Targets []BlockID
}

// IsOperation reports whether v lives in a block.
func (v *Value) IsOperation() bool { return v.Block != 0 }

// IsConst reports whether v is a constant.
func (v *Value) IsConst() bool { return v.Op == OpConst }

// IsAssumption reports whether v is an assumption marker.
func (v *Value) IsAssumption() bool {
	return v.Op == OpCall && v.Intrinsic == IntrinsicInvariant
}

// Condition returns the asserted operand of an assumption marker.
func (v *Value) Condition() ValueID {
	if !v.IsAssumption() || len(v.Args) == 0 {
		return NoValue
	}
	return v.Args[0]
}

// IsMemIntrinsic reports whether v is a call to memset, memcpy or memmove.
func (v *Value) IsMemIntrinsic() bool {
	return v.Op == OpCall && v.Intrinsic.IsMemory()
}

// IsMemTransfer reports whether v is a call to memcpy or memmove.
func (v *Value) IsMemTransfer() bool {
	return v.Op == OpCall && v.Intrinsic.IsTransfer()
}

// IsMemoryOp reports whether v carries an alignment annotation.
func (v *Value) IsMemoryOp() bool {
	return v.Op == OpLoad || v.Op == OpStore || v.IsMemIntrinsic()
}

// PointerOperand returns the address of a load or store.
func (v *Value) PointerOperand() ValueID {
	switch v.Op {
	case OpLoad:
		return v.arg(0)
	case OpStore:
		return v.arg(1)
	default:
		return NoValue
	}
}

// StoredValue returns the value written by a store.
func (v *Value) StoredValue() ValueID {
	if v.Op != OpStore {
		return NoValue
	}
	return v.arg(0)
}

// Dest returns the destination address of a memory intrinsic.
func (v *Value) Dest() ValueID {
	if !v.IsMemIntrinsic() {
		return NoValue
	}
	return v.arg(0)
}

// Source returns the source address of a memcpy or memmove.
func (v *Value) Source() ValueID {
	if !v.IsMemTransfer() {
		return NoValue
	}
	return v.arg(1)
}

// Length returns the byte count operand of a memory intrinsic.
func (v *Value) Length() ValueID {
	if !v.IsMemIntrinsic() {
		return NoValue
	}
	return v.arg(2)
}

// Operand returns Args[i], or NoValue if out of range.
func (v *Value) Operand(i int) ValueID {
	return v.arg(i)
}

func (v *Value) arg(i int) ValueID {
	if i < 0 || i >= len(v.Args) {
		return NoValue
	}
	return v.Args[i]
}

// truncConst wraps c to the given width and sign-extends it back to 64 bits.
func truncConst(c int64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return c
	}
	shift := uint(64 - bits)
	return (c << shift) >> shift
}

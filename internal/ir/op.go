package ir

import "fmt"

// Op is the closed set of value kinds.
type Op uint8

const (
	OpInvalid Op = iota

	// Non-operations: owned by the unit or a procedure, never placed in a block.
	OpConst
	OpParam

	// Integer arithmetic and bitwise operations.
	OpAdd
	OpSub
	OpMul
	OpShl
	OpAnd
	OpOr
	OpXor

	OpICmp

	// Casts.
	OpPtrToInt
	OpIntToPtr
	OpBitcast
	OpSExt
	OpZExt
	OpTrunc

	// OpGEP computes Args[0] + Args[1]*ElemSize.
	OpGEP

	// OpPhi merges Args[i] flowing in from Incoming[i].
	OpPhi

	OpLoad
	OpStore
	OpCall

	// Terminators.
	OpJump
	OpBranch
	OpRet
)

var opNames = [...]string{
	OpInvalid:  "invalid",
	OpConst:    "const",
	OpParam:    "param",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpShl:      "shl",
	OpAnd:      "and",
	OpOr:       "or",
	OpXor:      "xor",
	OpICmp:     "icmp",
	OpPtrToInt: "ptrtoint",
	OpIntToPtr: "inttoptr",
	OpBitcast:  "bitcast",
	OpSExt:     "sext",
	OpZExt:     "zext",
	OpTrunc:    "trunc",
	OpGEP:      "gep",
	OpPhi:      "phi",
	OpLoad:     "load",
	OpStore:    "store",
	OpCall:     "call",
	OpJump:     "jump",
	OpBranch:   "br",
	OpRet:      "ret",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// ParseOp looks up an opcode by its textual name.
// Only opcodes that can appear inside a block are accepted.
func ParseOp(s string) (Op, bool) {
	for i, name := range opNames {
		op := Op(i)
		if name == s && op.InBlock() {
			return op, true
		}
	}
	return OpInvalid, false
}

// InBlock reports whether values of this kind live inside a block.
func (o Op) InBlock() bool {
	return o > OpParam && int(o) < len(opNames)
}

// IsBinary reports whether o is a two-operand integer operation.
func (o Op) IsBinary() bool {
	return o >= OpAdd && o <= OpXor
}

// IsCast reports whether o is a single-operand conversion.
func (o Op) IsCast() bool {
	return o >= OpPtrToInt && o <= OpTrunc
}

// IsTerminator reports whether o ends a block.
func (o Op) IsTerminator() bool {
	return o == OpJump || o == OpBranch || o == OpRet
}

// Predicate is an integer comparison predicate.
type Predicate uint8

const (
	PredInvalid Predicate = iota
	PredEQ
	PredNE
	PredULT
	PredULE
	PredUGT
	PredUGE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
)

var predNames = [...]string{
	PredInvalid: "invalid",
	PredEQ:      "eq",
	PredNE:      "ne",
	PredULT:     "ult",
	PredULE:     "ule",
	PredUGT:     "ugt",
	PredUGE:     "uge",
	PredSLT:     "slt",
	PredSLE:     "sle",
	PredSGT:     "sgt",
	PredSGE:     "sge",
}

func (p Predicate) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return fmt.Sprintf("pred(%d)", p)
}

// ParsePredicate looks up a comparison predicate by name.
func ParsePredicate(s string) (Predicate, bool) {
	for i, name := range predNames {
		if i > 0 && name == s {
			return Predicate(i), true
		}
	}
	return PredInvalid, false
}

// Intrinsic identifies callees the passes understand.
type Intrinsic uint8

const (
	IntrinsicNone Intrinsic = iota
	// IntrinsicInvariant marks its i1 operand as true at the call site.
	IntrinsicInvariant
	// IntrinsicMemset fills (dest, byte, len).
	IntrinsicMemset
	// IntrinsicMemcpy copies (dest, src, len); the ranges must not overlap.
	IntrinsicMemcpy
	// IntrinsicMemmove copies (dest, src, len); the ranges may overlap.
	IntrinsicMemmove
)

var intrinsicNames = map[string]Intrinsic{
	"invariant": IntrinsicInvariant,
	"memset":    IntrinsicMemset,
	"memcpy":    IntrinsicMemcpy,
	"memmove":   IntrinsicMemmove,
}

// LookupIntrinsic resolves a callee name. Unknown callees are IntrinsicNone.
func LookupIntrinsic(callee string) Intrinsic {
	return intrinsicNames[callee]
}

// IsMemory reports whether the intrinsic is a memory intrinsic.
func (in Intrinsic) IsMemory() bool {
	return in == IntrinsicMemset || in == IntrinsicMemcpy || in == IntrinsicMemmove
}

// IsTransfer reports whether the intrinsic has both a source and a destination.
func (in Intrinsic) IsTransfer() bool {
	return in == IntrinsicMemcpy || in == IntrinsicMemmove
}

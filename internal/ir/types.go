package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAlignment is the largest alignment any memory operation may carry.
const MaxAlignment = 1 << 29

// PointerBits is the width of every pointer in the single address space.
const PointerBits = 64

// MaxIntBits bounds integer type widths accepted by the front end.
const MaxIntBits = 128

// TypeKind distinguishes the families of IR types.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypePtr
)

// Type is a first-class IR type. Bits is meaningful for TypeInt only.
type Type struct {
	Kind TypeKind `json:"kind"`
	Bits int      `json:"bits,omitempty"`
}

// Common types.
var (
	Void = Type{Kind: TypeVoid}
	I1   = Int(1)
	I8   = Int(8)
	I32  = Int(32)
	I64  = Int(64)
	Ptr  = Type{Kind: TypePtr}
)

// Int returns the integer type of the given width.
func Int(bits int) Type {
	return Type{Kind: TypeInt, Bits: bits}
}

// IsInt reports whether t is an integer type.
func (t Type) IsInt() bool { return t.Kind == TypeInt }

// IsPtr reports whether t is the pointer type.
func (t Type) IsPtr() bool { return t.Kind == TypePtr }

// IsVoid reports whether t is void.
func (t Type) IsVoid() bool { return t.Kind == TypeVoid }

// IsBool reports whether t is i1.
func (t Type) IsBool() bool { return t.Kind == TypeInt && t.Bits == 1 }

// Width returns the bit width of integers and pointers, 0 for void.
func (t Type) Width() int {
	switch t.Kind {
	case TypeInt:
		return t.Bits
	case TypePtr:
		return PointerBits
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t.Kind {
	case TypeInt:
		return "i" + strconv.Itoa(t.Bits)
	case TypePtr:
		return "ptr"
	default:
		return "void"
	}
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "void":
		return Void, nil
	case "ptr":
		return Ptr, nil
	}
	if strings.HasPrefix(s, "i") {
		bits, err := strconv.Atoi(s[1:])
		if err == nil && bits >= 1 && bits <= MaxIntBits {
			return Int(bits), nil
		}
	}
	return Type{}, fmt.Errorf("unknown type %q", s)
}

// IsPowerOfTwo reports whether a is a non-zero power of two.
func IsPowerOfTwo(a uint64) bool {
	return a != 0 && a&(a-1) == 0
}

package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Ref renders a value as an operand: constants print their value, everything
// else prints %name (or %<id> when unnamed).
func (u *Unit) Ref(id ValueID) string {
	if id == NoValue {
		return "<none>"
	}
	v := u.Value(id)
	if v.Op == OpConst {
		return strconv.FormatInt(v.Const, 10)
	}
	if v.Name != "" {
		return "%" + v.Name
	}
	return "%" + strconv.FormatUint(uint64(id), 10)
}

// TypedRef renders an operand prefixed by its type.
func (u *Unit) TypedRef(id ValueID) string {
	if id == NoValue {
		return "<none>"
	}
	return u.Value(id).Type.String() + " " + u.Ref(id)
}

func (u *Unit) blockRef(b BlockID) string {
	return "%" + u.Block(b).Name
}

// ValueString renders the full text of a value.
func (u *Unit) ValueString(id ValueID) string {
	v := u.Value(id)
	var sb strings.Builder
	if v.Op == OpConst || v.Op == OpParam {
		return u.TypedRef(id)
	}
	if !v.Type.IsVoid() {
		sb.WriteString(u.Ref(id))
		sb.WriteString(" = ")
	}

	switch {
	case v.Op.IsBinary():
		fmt.Fprintf(&sb, "%s %s %s, %s", v.Op, v.Type, u.Ref(v.Operand(0)), u.Ref(v.Operand(1)))
	case v.Op == OpICmp:
		fmt.Fprintf(&sb, "icmp %s %s, %s", v.Pred, u.TypedRef(v.Operand(0)), u.Ref(v.Operand(1)))
	case v.Op.IsCast():
		fmt.Fprintf(&sb, "%s %s to %s", v.Op, u.TypedRef(v.Operand(0)), v.Type)
	case v.Op == OpGEP:
		fmt.Fprintf(&sb, "gep %s, %s, %d", u.TypedRef(v.Operand(0)), u.TypedRef(v.Operand(1)), v.ElemSize)
	case v.Op == OpPhi:
		fmt.Fprintf(&sb, "phi %s", v.Type)
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, " [ %s, %s ]", u.Ref(a), u.blockRef(v.Incoming[i]))
		}
	case v.Op == OpLoad:
		fmt.Fprintf(&sb, "load %s, %s", v.Type, u.TypedRef(v.PointerOperand()))
		writeAlign(&sb, v.Align)
	case v.Op == OpStore:
		fmt.Fprintf(&sb, "store %s, %s", u.TypedRef(v.StoredValue()), u.TypedRef(v.PointerOperand()))
		writeAlign(&sb, v.Align)
	case v.Op == OpCall:
		fmt.Fprintf(&sb, "call %s @%s(", v.Type, v.Callee)
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(u.TypedRef(a))
		}
		sb.WriteByte(')')
		if v.IsMemIntrinsic() {
			writeAlign(&sb, v.Align)
		}
	case v.Op == OpJump:
		fmt.Fprintf(&sb, "jump %s", u.blockRef(v.Targets[0]))
	case v.Op == OpBranch:
		fmt.Fprintf(&sb, "br %s, %s, %s", u.TypedRef(v.Operand(0)), u.blockRef(v.Targets[0]), u.blockRef(v.Targets[1]))
	case v.Op == OpRet:
		sb.WriteString("ret")
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte(' ')
			sb.WriteString(u.TypedRef(a))
		}
	default:
		sb.WriteString(v.Op.String())
	}
	return sb.String()
}

func writeAlign(sb *strings.Builder, align uint32) {
	if align > 0 {
		fmt.Fprintf(sb, ", align %d", align)
	}
}

// Print writes the textual form of every procedure in declaration order.
func (u *Unit) Print(w io.Writer) error {
	for i, p := range u.Procs() {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := u.PrintProc(w, p); err != nil {
			return err
		}
	}
	return nil
}

// PrintProc writes the textual form of one procedure.
func (u *Unit) PrintProc(w io.Writer, p ProcID) error {
	proc := u.Proc(p)
	params := make([]string, len(proc.Params))
	for i, prm := range proc.Params {
		params[i] = u.TypedRef(prm)
	}
	if _, err := fmt.Fprintf(w, "proc @%s(%s) {\n", proc.Name, strings.Join(params, ", ")); err != nil {
		return err
	}
	for _, b := range proc.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n", u.Block(b).Name); err != nil {
			return err
		}
		for _, id := range u.Block(b).Instrs {
			if _, err := fmt.Fprintf(w, "  %s\n", u.ValueString(id)); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

// String returns the textual form of the unit.
func (u *Unit) String() string {
	var sb strings.Builder
	_ = u.Print(&sb)
	return sb.String()
}

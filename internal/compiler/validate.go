package compiler

import (
	"fmt"

	"github.com/roach88/invprop/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrProcNoBlocks        = "E201" // procedure has no blocks
	ErrMissingTerminator   = "E202" // block does not end in a terminator
	ErrMisplacedTerminator = "E203" // terminator before the end of a block
	ErrPhiPlacement        = "E204" // phi after a non-phi operation
	ErrPhiIncoming         = "E205" // phi edges do not match predecessors
	ErrOperandType         = "E206" // operand of the wrong type
	ErrInvalidAlignment    = "E207" // alignment not a power of two or too large
	ErrOperandCount        = "E208" // wrong number of operands
	ErrForeignOperand      = "E209" // operand owned by another procedure
	ErrCyclicDefinition    = "E210" // value depends on itself outside a phi
)

// ValidationError represents a structural error in a unit.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structural rules the passes rely on.
// Returns all errors found (does not fail-fast), procedures in unit order.
func Validate(u *ir.Unit) []ValidationError {
	var errs []ValidationError
	for _, p := range u.Procs() {
		errs = append(errs, validateProc(u, p)...)
		errs = append(errs, cycleErrors(u, p)...)
	}
	return errs
}

func validateProc(u *ir.Unit, p ir.ProcID) []ValidationError {
	var errs []ValidationError
	proc := u.Proc(p)

	// E201: a procedure needs an entry block
	if len(proc.Blocks) == 0 {
		return []ValidationError{{
			Field:   proc.Name,
			Message: "procedure has no blocks",
			Code:    ErrProcNoBlocks,
		}}
	}

	for _, b := range proc.Blocks {
		blk := u.Block(b)
		field := proc.Name + "." + blk.Name

		// E202: every block ends in exactly one terminator
		if u.Terminator(b) == ir.NoValue {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "block does not end in a terminator",
				Code:    ErrMissingTerminator,
			})
		}

		seenNonPhi := false
		for i, id := range blk.Instrs {
			v := u.Value(id)
			vfield := field + "." + u.Ref(id)

			// E203: terminators only at the end
			if v.Op.IsTerminator() && i != len(blk.Instrs)-1 {
				errs = append(errs, ValidationError{
					Field:   vfield,
					Message: fmt.Sprintf("%s before the end of the block", v.Op),
					Code:    ErrMisplacedTerminator,
				})
			}

			// E204: phis form the leading region of a block
			if v.Op == ir.OpPhi {
				if seenNonPhi {
					errs = append(errs, ValidationError{
						Field:   vfield,
						Message: "phi after a non-phi operation",
						Code:    ErrPhiPlacement,
					})
				}
				errs = append(errs, validatePhi(u, id, vfield)...)
			} else {
				seenNonPhi = true
			}

			// E209: operands come from this procedure or the unit
			for _, a := range v.Args {
				if av := u.Value(a); av.Proc != 0 && av.Proc != p {
					errs = append(errs, ValidationError{
						Field:   vfield,
						Message: fmt.Sprintf("operand %s belongs to procedure %s", u.Ref(a), u.Proc(av.Proc).Name),
						Code:    ErrForeignOperand,
					})
				}
			}

			errs = append(errs, validateOperands(u, id, vfield)...)
		}
	}
	return errs
}

// E205: one incoming edge per predecessor, each from a predecessor.
func validatePhi(u *ir.Unit, id ir.ValueID, field string) []ValidationError {
	v := u.Value(id)
	preds := u.Block(v.Block).Preds
	var errs []ValidationError

	if len(v.Incoming) != len(preds) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("phi has %d incoming values for %d predecessors", len(v.Incoming), len(preds)),
			Code:    ErrPhiIncoming,
		})
	}
	isPred := make(map[ir.BlockID]bool, len(preds))
	for _, pb := range preds {
		isPred[pb] = true
	}
	for i, from := range v.Incoming {
		if !isPred[from] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.incoming[%d]", field, i),
				Message: fmt.Sprintf("%s is not a predecessor of %s", u.Block(from).Name, u.Block(v.Block).Name),
				Code:    ErrPhiIncoming,
			})
		}
		if t := u.Value(v.Args[i]).Type; t != v.Type {
			errs = append(errs, typeError(field, fmt.Sprintf("incoming[%d]", i), v.Type, t))
		}
	}
	return errs
}

// validateOperands checks arity (E208), operand types (E206) and alignment
// annotations (E207).
func validateOperands(u *ir.Unit, id ir.ValueID, field string) []ValidationError {
	v := u.Value(id)
	var errs []ValidationError

	arity := func(n int) bool {
		if len(v.Args) == n {
			return true
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s expects %d operand(s), got %d", opLabel(v), n, len(v.Args)),
			Code:    ErrOperandCount,
		})
		return false
	}
	typeOf := func(i int) ir.Type { return u.Value(v.Args[i]).Type }
	expect := func(i int, want ir.Type) {
		if got := typeOf(i); got != want {
			errs = append(errs, typeError(field, fmt.Sprintf("operand %d", i), want, got))
		}
	}
	expectInt := func(i int) {
		if !typeOf(i).IsInt() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("operand %d must be an integer, got %s", i, typeOf(i)),
				Code:    ErrOperandType,
			})
		}
	}

	switch {
	case v.Op.IsBinary():
		if arity(2) {
			expectInt(0)
			expect(0, v.Type)
			expect(1, v.Type)
		}
	case v.Op == ir.OpICmp:
		if arity(2) {
			expect(1, typeOf(0))
		}
	case v.Op == ir.OpPtrToInt:
		if arity(1) {
			expect(0, ir.Ptr)
		}
	case v.Op == ir.OpIntToPtr:
		if arity(1) {
			expectInt(0)
		}
	case v.Op == ir.OpBitcast:
		if arity(1) && typeOf(0).Width() != v.Type.Width() {
			errs = append(errs, typeError(field, "operand 0", v.Type, typeOf(0)))
		}
	case v.Op == ir.OpSExt, v.Op == ir.OpZExt:
		if arity(1) {
			expectInt(0)
			if typeOf(0).Width() >= v.Type.Width() {
				errs = append(errs, widthError(field, v, "widen"))
			}
		}
	case v.Op == ir.OpTrunc:
		if arity(1) {
			expectInt(0)
			if typeOf(0).Width() <= v.Type.Width() {
				errs = append(errs, widthError(field, v, "narrow"))
			}
		}
	case v.Op == ir.OpGEP:
		if arity(2) {
			expect(0, ir.Ptr)
			expectInt(1)
		}
	case v.Op == ir.OpLoad:
		if arity(1) {
			expect(0, ir.Ptr)
		}
	case v.Op == ir.OpStore:
		if arity(2) {
			expect(1, ir.Ptr)
		}
	case v.IsAssumption():
		if arity(1) {
			expect(0, ir.I1)
		}
	case v.IsMemIntrinsic():
		if arity(3) {
			expect(0, ir.Ptr)
			if v.IsMemTransfer() {
				expect(1, ir.Ptr)
			}
			expectInt(2)
		}
	case v.Op == ir.OpBranch:
		if arity(1) {
			expect(0, ir.I1)
		}
		if len(v.Targets) != 2 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("br expects 2 targets, got %d", len(v.Targets)),
				Code:    ErrOperandCount,
			})
		}
	case v.Op == ir.OpJump:
		if arity(0) && len(v.Targets) != 1 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("jump expects 1 target, got %d", len(v.Targets)),
				Code:    ErrOperandCount,
			})
		}
	}

	// E207: alignment annotations
	if v.IsMemoryOp() && v.Align != 0 && (!ir.IsPowerOfTwo(uint64(v.Align)) || v.Align > ir.MaxAlignment) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("alignment %d is not a power of two up to %d", v.Align, ir.MaxAlignment),
			Code:    ErrInvalidAlignment,
		})
	}
	return errs
}

func opLabel(v *ir.Value) string {
	if v.Op == ir.OpCall {
		return "call @" + v.Callee
	}
	return v.Op.String()
}

func typeError(field, what string, want, got ir.Type) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%s must be %s, got %s", what, want, got),
		Code:    ErrOperandType,
	}
}

func widthError(field string, v *ir.Value, verb string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%s must %s its operand", v.Op, verb),
		Code:    ErrOperandType,
	}
}

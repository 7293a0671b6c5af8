package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/invprop/internal/compiler"
	"github.com/roach88/invprop/internal/ir"
)

// Error codes owned by the CLI. Load and compile codes come from the
// compiler package, validation codes from compiler.Validate.
const (
	ErrCodeGeneric     = compiler.ErrCodeGeneric
	ErrCodeWriteFailed = "E007" // file write error
	ErrCodeStore       = "E008" // run log could not be opened or written
	ErrCodeRunNotFound = "E009" // run ID not in the run log
	ErrCodePipeline    = "E010" // pipeline failed
)

// LoadFailure is a load or compile error reduced to what the CLI prints.
type LoadFailure struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadFailure) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadUnit loads and compiles the unit in dir.
func LoadUnit(dir string) (*ir.Unit, error) {
	u, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertLoadError(err)
	}
	return u, nil
}

// convertLoadError maps compiler errors to a LoadFailure with position info.
func convertLoadError(err error) *LoadFailure {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadFailure{
			Code:    compiler.ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, loadErr.Err)
		}
		return &LoadFailure{Code: loadErr.Code, Message: msg}
	}
	return &LoadFailure{Code: ErrCodeGeneric, Message: err.Error()}
}

// loadOrFail loads dir, reporting a failure through f as a command error.
func loadOrFail(f *OutputFormatter, dir string) (*ir.Unit, error) {
	u, err := LoadUnit(dir)
	if err == nil {
		return u, nil
	}
	var lf *LoadFailure
	if !errors.As(err, &lf) {
		return nil, f.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	if f.Format != "json" && lf.Pos.IsValid() {
		fmt.Fprintf(f.Writer, "%s:%d:%d\n", lf.Pos.Filename(), lf.Pos.Line(), lf.Pos.Column())
	}
	return nil, f.fail(ExitCommandError, lf.Code, lf.Message)
}

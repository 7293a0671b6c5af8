package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/invprop/internal/ir"
)

// Load error codes (E001-E099), shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeCompile     = "E101" // unit does not compile
)

// LoadError is returned by LoadDir when a directory cannot be turned into a
// unit.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadValue loads the CUE package in dir and builds it.
func LoadValue(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("directory not found: %s", dir)}
	}
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: "error accessing directory", Err: err}
	}
	if !info.IsDir() {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeScanError, Message: "error scanning directory", Err: err}
	}
	if len(files) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "loading CUE files", Err: err}
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: "building CUE value", Err: err}
	}
	return value, nil
}

// LoadDir loads dir and compiles it into a unit. The unit is named after the
// directory unless the package sets a unit field.
func LoadDir(dir string) (*ir.Unit, error) {
	value, err := LoadValue(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	u, err := CompileUnit(value, filepath.Base(abs))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCompile, Message: "compiling unit", Err: err}
	}
	return u, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

package passes

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeUnknownPass indicates a pass name that is not registered.
	ErrCodeUnknownPass ErrorCode = "E301"

	// ErrCodeDuplicatePass indicates a second registration under one name.
	ErrCodeDuplicatePass ErrorCode = "E302"

	// ErrCodeMissingAnalysis indicates a requirement that is not registered
	// as an analysis.
	ErrCodeMissingAnalysis ErrorCode = "E303"

	// ErrCodeCanceled indicates the run was canceled between procedures.
	ErrCodeCanceled ErrorCode = "E304"
)

// PassError reports a problem building or running a pipeline.
type PassError struct {
	Code    ErrorCode
	Pass    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PassError) Error() string {
	if e.Pass != "" {
		return fmt.Sprintf("%s: %s (pass=%s)", e.Code, e.Message, e.Pass)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *PassError) Unwrap() error {
	return e.Err
}

// IsUnknownPass reports whether err is an unknown-pass error.
// Uses errors.As to handle wrapped errors.
func IsUnknownPass(err error) bool {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeUnknownPass
	}
	return false
}

func unknownPass(name string) *PassError {
	return &PassError{Code: ErrCodeUnknownPass, Pass: name, Message: "no such pass"}
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/invprop/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Unit   string                     `json:"unit,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <unit-dir>",
		Short: "Validate a unit without printing it",
		Long: `Compile a CUE unit and check the structural rules the passes rely on:
terminators, phi placement and edges, operand counts and types, alignment
annotations and cyclic definitions.

Every error is reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, unitDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	u, err := loadOrFail(formatter, unitDir)
	if err != nil {
		return err
	}
	for _, p := range u.Procs() {
		formatter.VerboseLog("Validating procedure: %s", u.Proc(p).Name)
	}

	if errs := compiler.Validate(u); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return formatter.Success(ValidationResult{Valid: true, Unit: u.Name}, fmt.Sprintf("✓ Unit %s valid\n", u.Name))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
	} else {
		var sb strings.Builder
		sb.WriteString("✗ Validation failed\n\n")
		for _, err := range errs {
			fmt.Fprintf(&sb, "  %s\n", err.Error())
		}
		fmt.Fprint(formatter.Writer, sb.String())
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

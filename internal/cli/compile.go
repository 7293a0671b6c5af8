package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/invprop/internal/compiler"
	"github.com/roach88/invprop/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult describes a compiled unit.
type CompilationResult struct {
	Unit        string   `json:"unit"`
	Procedures  []string `json:"procedures"`
	Values      int      `json:"values"`
	Fingerprint string   `json:"fingerprint"`
	IR          []string `json:"ir"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <unit-dir>",
		Short: "Compile a CUE unit to IR",
		Long: `Compile a CUE unit to IR and print its textual form.

The unit is validated after compilation. With --output the canonical JSON
form of the unit is written to a file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, unitDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	u, err := loadOrFail(formatter, unitDir)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Compiled unit %s from %s", u.Name, unitDir)

	if errs := compiler.Validate(u); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result, err := describeUnit(u)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	if opts.Output != "" {
		if err := writeIRToFile(u, opts.Output); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✓ Compiled unit %s: %d procedure(s), %d value(s)\n\n",
		result.Unit, len(result.Procedures), result.Values)
	sb.WriteString(u.String())
	if opts.Output != "" {
		fmt.Fprintf(&sb, "\nWrote canonical IR to %s\n", opts.Output)
	}
	return formatter.Success(result, sb.String())
}

func describeUnit(u *ir.Unit) (*CompilationResult, error) {
	fp, err := ir.Fingerprint(u)
	if err != nil {
		return nil, fmt.Errorf("fingerprint unit: %w", err)
	}
	result := &CompilationResult{
		Unit:        u.Name,
		Procedures:  []string{},
		Values:      u.NumValues(),
		Fingerprint: fp,
		IR:          irLines(u),
	}
	for _, p := range u.Procs() {
		result.Procedures = append(result.Procedures, u.Proc(p).Name)
	}
	return result, nil
}

// irLines splits the textual form of u into lines.
func irLines(u *ir.Unit) []string {
	return strings.Split(strings.TrimSuffix(u.String(), "\n"), "\n")
}

// writeIRToFile writes the unit to a file in canonical JSON format, indented
// for readability.
func writeIRToFile(u *ir.Unit, filename string) error {
	data, err := ir.CanonicalJSON(u)
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("indenting IR: %w", err)
	}
	out.WriteByte('\n')

	if err := os.WriteFile(filename, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

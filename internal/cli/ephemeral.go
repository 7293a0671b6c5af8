package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/invprop/internal/compiler"
	"github.com/roach88/invprop/internal/ephemeral"
)

// EphemeralResult lists the ephemeral values of a unit.
type EphemeralResult struct {
	Unit   string   `json:"unit"`
	Values []string `json:"values"`
}

// NewEphemeralCommand creates the ephemeral command.
func NewEphemeralCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ephemeral <unit-dir>",
		Short: "List values that only feed assumptions",
		Long: `List the operations whose results exist only to feed invariant
assumptions, directly or through other such operations.

Output lines have the form "<procedure>: <block>: <value>".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEphemeral(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runEphemeral(opts *RootOptions, unitDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	u, err := loadOrFail(formatter, unitDir)
	if err != nil {
		return err
	}
	if errs := compiler.Validate(u); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	res := ephemeral.New(ephemeral.WithLogger(opts.Logger(formatter.GetErrWriter()))).Run(u)

	var sb strings.Builder
	if err := res.Print(&sb); err != nil {
		return err
	}
	values := res.Lines()
	if values == nil {
		values = []string{}
	}
	return formatter.Success(EphemeralResult{Unit: u.Name, Values: values}, sb.String())
}

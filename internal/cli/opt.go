package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/compiler"
	"github.com/roach88/invprop/internal/passes"
	"github.com/roach88/invprop/internal/store"
)

// OptOptions holds flags for the opt command.
type OptOptions struct {
	*RootOptions
	Passes []string // pipeline, requirements are added automatically
	Jobs   int      // procedures processed at once
	DBPath string   // run log, optional
	RunID  string   // fixed run ID, optional
}

// OptResult is the outcome of the opt command.
type OptResult struct {
	RunID       string             `json:"run_id"`
	Unit        string             `json:"unit"`
	Pipeline    []string           `json:"pipeline"`
	Changed     bool               `json:"changed"`
	Stats       alignprop.Stats    `json:"stats"`
	Remarks     []alignprop.Remark `json:"remarks"`
	Ephemeral   []string           `json:"ephemeral"`
	Invalidated []string           `json:"invalidated"`
	IR          []string           `json:"ir"`
	Recorded    bool               `json:"recorded"`
}

// NewOptCommand creates the opt command.
func NewOptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "opt <unit-dir>",
		Short: "Run a pass pipeline over a unit",
		Long: `Run a pass pipeline over a unit and print the transformed IR.

Analyses a pass requires are scheduled ahead of it. With --db the run,
its pass executions and remarks are recorded in a SQLite run log; sequence
numbers continue from the last run in the log.

Examples:
  invprop opt ./unit
  invprop opt ./unit --passes alignment-inv-prop --jobs 4
  invprop opt ./unit --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpt(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Passes, "passes", passes.DefaultPipeline, "comma-separated pass pipeline")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 1, "procedures to process concurrently")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "use this run ID instead of a generated one")

	return cmd
}

func runOpt(ctx context.Context, opts *OptOptions, unitDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	u, err := loadOrFail(formatter, unitDir)
	if err != nil {
		return err
	}
	if errs := compiler.Validate(u); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	managerOpts := []passes.Option{
		passes.WithJobs(opts.Jobs),
		passes.WithLogger(opts.Logger(formatter.GetErrWriter())),
	}
	if opts.RunID != "" {
		managerOpts = append(managerOpts, passes.WithRunIDGenerator(passes.NewFixedGenerator(opts.RunID)))
	}

	var st *store.Store
	if opts.DBPath != "" {
		st, err = store.Open(opts.DBPath)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		defer st.Close()

		last, err := st.LastSeq(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		managerOpts = append(managerOpts, passes.WithClock(passes.NewClockAt(last)))
		formatter.VerboseLog("Continuing run log %s at seq %d", opts.DBPath, last+1)
	}

	mgr := passes.NewManager(passes.DefaultRegistry(), managerOpts...)
	rep, err := mgr.Run(ctx, u, opts.Passes)
	if err != nil {
		var pe *passes.PassError
		if errors.As(err, &pe) {
			return formatter.fail(ExitCommandError, string(pe.Code), fmt.Sprintf("%s (pass=%s)", pe.Message, pe.Pass))
		}
		return formatter.fail(ExitCommandError, ErrCodePipeline, err.Error())
	}

	if st != nil {
		if err := st.RecordRun(ctx, rep); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
		}
	}

	result := OptResult{
		RunID:       rep.RunID,
		Unit:        rep.Unit,
		Pipeline:    rep.Pipeline,
		Changed:     rep.Changed,
		Stats:       rep.Stats,
		Remarks:     nonNilRemarks(rep.Remarks()),
		Ephemeral:   nonNilStrings(rep.Ephemeral),
		Invalidated: nonNilStrings(rep.Invalidated),
		IR:          irLines(u),
		Recorded:    st != nil,
	}
	return formatter.Success(result, formatOpt(result, u.String(), opts.DBPath))
}

func formatOpt(r OptResult, text, dbPath string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✓ Ran %s on %s (run %s)\n", strings.Join(r.Pipeline, ", "), r.Unit, r.RunID)
	fmt.Fprintf(&sb, "  changed: %t\n", r.Changed)
	fmt.Fprintf(&sb, "  facts: %d, loads: %d, stores: %d, mem intrinsics: %d\n",
		r.Stats.FactsMatched, r.Stats.LoadsChanged, r.Stats.StoresChanged, r.Stats.MemIntrinsicsChanged)
	if len(r.Invalidated) > 0 {
		fmt.Fprintf(&sb, "  invalidated: %s\n", strings.Join(r.Invalidated, ", "))
	}

	if len(r.Remarks) > 0 {
		sb.WriteString("\nRemarks:\n")
		for _, rm := range r.Remarks {
			sb.WriteString("  " + formatRemark(rm) + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(text)

	if r.Recorded {
		fmt.Fprintf(&sb, "\nRecorded run %s in %s\n", r.RunID, dbPath)
	}
	return sb.String()
}

func formatRemark(rm alignprop.Remark) string {
	return fmt.Sprintf("%s: %s: %s: %s align %d -> %d", rm.Procedure, rm.Block, rm.Value, rm.Kind, rm.Old, rm.New)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilRemarks(r []alignprop.Remark) []alignprop.Remark {
	if r == nil {
		return []alignprop.Remark{}
	}
	return r
}

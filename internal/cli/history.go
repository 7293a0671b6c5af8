package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DBPath string
	RunID  string
}

// RunDetail is one recorded run with its remarks and ephemeral listing.
type RunDetail struct {
	store.RunSummary
	Remarks   []alignprop.Remark `json:"remarks"`
	Ephemeral []string           `json:"ephemeral"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded in a run log",
		Long: `List the runs recorded by "invprop opt --db", oldest first.

With --run, print one run with its remarks and ephemeral listing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite run log (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	// Opening would create an empty database
	if _, err := os.Stat(opts.DBPath); os.IsNotExist(err) {
		return formatter.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("database not found: %s", opts.DBPath))
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	defer st.Close()

	if opts.RunID != "" {
		return showRun(ctx, formatter, st, opts.RunID)
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}

	var sb strings.Builder
	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "%s  %s  seq %d-%d  changed=%t  [%s]\n",
			r.ID, r.Unit, r.FirstSeq, r.LastSeq, r.Changed, strings.Join(r.Pipeline, ", "))
	}
	return formatter.Success(runs, sb.String())
}

func showRun(ctx context.Context, formatter *OutputFormatter, st *store.Store, id string) error {
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.fail(ExitCommandError, ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	remarks, err := st.ReadRemarks(ctx, id)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	eph, err := st.ReadEphemeral(ctx, id)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	detail := RunDetail{RunSummary: run, Remarks: nonNilRemarks(remarks), Ephemeral: nonNilStrings(eph)}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s\n", run.ID)
	fmt.Fprintf(&sb, "  unit: %s\n", run.Unit)
	fmt.Fprintf(&sb, "  pipeline: %s\n", strings.Join(run.Pipeline, ", "))
	fmt.Fprintf(&sb, "  seq: %d-%d\n", run.FirstSeq, run.LastSeq)
	fmt.Fprintf(&sb, "  changed: %t\n", run.Changed)
	fmt.Fprintf(&sb, "  facts: %d, loads: %d, stores: %d, mem intrinsics: %d\n",
		run.Stats.FactsMatched, run.Stats.LoadsChanged, run.Stats.StoresChanged, run.Stats.MemIntrinsicsChanged)
	if len(detail.Remarks) > 0 {
		sb.WriteString("\nRemarks:\n")
		for _, rm := range detail.Remarks {
			sb.WriteString("  " + formatRemark(rm) + "\n")
		}
	}
	if len(detail.Ephemeral) > 0 {
		sb.WriteString("\nEphemeral:\n")
		for _, line := range detail.Ephemeral {
			sb.WriteString("  " + line + "\n")
		}
	}
	return formatter.Success(detail, sb.String())
}

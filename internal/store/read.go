package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/passes"
)

// RunSummary is the stored header of a pipeline run.
type RunSummary struct {
	ID          string          `json:"id"`
	Unit        string          `json:"unit"`
	Pipeline    []string        `json:"pipeline"`
	Changed     bool            `json:"changed"`
	Stats       alignprop.Stats `json:"stats"`
	Before      string          `json:"fingerprint_before"`
	After       string          `json:"fingerprint_after"`
	Invalidated []string        `json:"invalidated"`
	FirstSeq    int64           `json:"first_seq"`
	LastSeq     int64           `json:"last_seq"`
}

const runColumns = `
	r.id, r.unit, r.pipeline, r.changed,
	r.loads_changed, r.stores_changed, r.mem_intrinsics_changed, r.facts_matched,
	r.fingerprint_before, r.fingerprint_after, r.invalidated,
	COALESCE(MIN(p.seq), 0), COALESCE(MAX(p.seq), 0)
`

// ListRuns returns every recorded run, oldest first.
// Ordering is by the first pass sequence number, then run ID.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		LEFT JOIN pass_runs p ON p.run_id = r.id
		GROUP BY r.id
		ORDER BY MIN(p.seq) ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with the given ID.
// Returns sql.ErrNoRows if no such run exists.
func (s *Store) ReadRun(ctx context.Context, id string) (RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		LEFT JOIN pass_runs p ON p.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return RunSummary{}, err
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		run                   RunSummary
		pipeline, invalidated string
		changed               int
	)
	if err := row.Scan(
		&run.ID, &run.Unit, &pipeline, &changed,
		&run.Stats.LoadsChanged, &run.Stats.StoresChanged,
		&run.Stats.MemIntrinsicsChanged, &run.Stats.FactsMatched,
		&run.Before, &run.After, &invalidated,
		&run.FirstSeq, &run.LastSeq,
	); err != nil {
		return RunSummary{}, err
	}

	var err error
	if run.Pipeline, err = unmarshalNames(pipeline); err != nil {
		return RunSummary{}, err
	}
	if run.Invalidated, err = unmarshalNames(invalidated); err != nil {
		return RunSummary{}, err
	}
	run.Changed = changed != 0
	return run, nil
}

// ReadPassRuns returns the pass executions of a run in seq order.
// Remarks are attached to their pass run.
func (s *Store) ReadPassRuns(ctx context.Context, runID string) ([]passes.PassRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, pass, procedure, changed, facts, stats
		FROM pass_runs
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read pass runs: %w", err)
	}
	defer rows.Close()

	var runs []passes.PassRun
	for rows.Next() {
		var (
			run     passes.PassRun
			changed int
			stats   string
		)
		if err := rows.Scan(&run.Seq, &run.Pass, &run.Procedure, &changed, &run.Facts, &stats); err != nil {
			return nil, fmt.Errorf("read pass runs: scan: %w", err)
		}
		run.Changed = changed != 0
		if run.Stats, err = unmarshalStats(stats); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pass runs: %w", err)
	}

	remarks, err := s.remarksBySeq(ctx, runID)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Remarks = remarks[runs[i].Seq]
	}
	return runs, nil
}

// ReadRemarks returns every remark of a run, ordered by pass seq then
// position within the pass.
func (s *Store) ReadRemarks(ctx context.Context, runID string) ([]alignprop.Remark, error) {
	rows, err := s.queryRemarks(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alignprop.Remark
	for rows.Next() {
		var seq int64
		r, err := scanRemark(rows, &seq)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read remarks: %w", err)
	}
	return out, nil
}

func (s *Store) remarksBySeq(ctx context.Context, runID string) (map[int64][]alignprop.Remark, error) {
	rows, err := s.queryRemarks(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]alignprop.Remark)
	for rows.Next() {
		var seq int64
		r, err := scanRemark(rows, &seq)
		if err != nil {
			return nil, err
		}
		out[seq] = append(out[seq], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read remarks: %w", err)
	}
	return out, nil
}

func (s *Store) queryRemarks(ctx context.Context, runID string) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, procedure, block, value, kind, old_align, new_align
		FROM remarks
		WHERE run_id = ?
		ORDER BY seq ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read remarks: %w", err)
	}
	return rows, nil
}

func scanRemark(rows *sql.Rows, seq *int64) (alignprop.Remark, error) {
	var r alignprop.Remark
	if err := rows.Scan(seq, &r.Procedure, &r.Block, &r.Value, &r.Kind, &r.Old, &r.New); err != nil {
		return alignprop.Remark{}, fmt.Errorf("read remarks: scan: %w", err)
	}
	return r, nil
}

// ReadEphemeral returns the ephemeral value listing recorded with a run.
func (s *Store) ReadEphemeral(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line FROM ephemeral
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read ephemeral: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("read ephemeral: scan: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ephemeral: %w", err)
	}
	return lines, nil
}

// LastSeq returns the highest pass sequence number recorded, or 0 for an
// empty store. Callers resume a clock from it with passes.NewClockAt.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM pass_runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

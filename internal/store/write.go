package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/invprop/internal/passes"
)

// RecordRun writes a manager report in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency: recording the same run twice
// leaves the first copy in place.
func (s *Store) RecordRun(ctx context.Context, rep *passes.Report) (err error) {
	pipeline, err := marshalNames(rep.Pipeline)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	invalidated, err := marshalNames(rep.Invalidated)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, unit, pipeline, changed, loads_changed, stores_changed, mem_intrinsics_changed,
		 facts_matched, fingerprint_before, fingerprint_after, invalidated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rep.RunID,
		rep.Unit,
		pipeline,
		boolToInt(rep.Changed),
		rep.Stats.LoadsChanged,
		rep.Stats.StoresChanged,
		rep.Stats.MemIntrinsicsChanged,
		rep.Stats.FactsMatched,
		rep.Before,
		rep.After,
		invalidated,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("record run: %w", err)
	} else if n == 0 {
		return tx.Rollback() // already recorded
	}

	for _, run := range rep.Runs {
		if err := writePassRun(ctx, tx, rep.RunID, run); err != nil {
			return err
		}
	}
	for i, line := range rep.Ephemeral {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ephemeral (run_id, idx, line) VALUES (?, ?, ?)`,
			rep.RunID, i, line,
		); err != nil {
			return fmt.Errorf("record ephemeral: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

func writePassRun(ctx context.Context, tx *sql.Tx, runID string, run passes.PassRun) error {
	stats, err := marshalStats(run.Stats)
	if err != nil {
		return fmt.Errorf("record pass run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pass_runs (run_id, seq, pass, procedure, changed, facts, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, run.Seq, run.Pass, run.Procedure, boolToInt(run.Changed), run.Facts, stats); err != nil {
		return fmt.Errorf("record pass run %d: %w", run.Seq, err)
	}

	for i, r := range run.Remarks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO remarks
			(run_id, seq, idx, procedure, block, value, kind, old_align, new_align)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, run.Seq, i, r.Procedure, r.Block, r.Value, r.Kind, r.Old, r.New); err != nil {
			return fmt.Errorf("record remark %d of pass run %d: %w", i, run.Seq, err)
		}
	}
	return nil
}

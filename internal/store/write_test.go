package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/passes"
)

func testReport(id string, firstSeq int64) *passes.Report {
	remark := alignprop.Remark{Procedure: "f", Block: "entry", Value: "%x", Kind: "load", Old: 4, New: 16}
	stats := alignprop.Stats{LoadsChanged: 1, FactsMatched: 1}
	return &passes.Report{
		RunID:    id,
		Unit:     "u",
		Pipeline: []string{"eph-values", "scalar-evolution", "alignment-inv-prop"},
		Runs: []passes.PassRun{
			{Seq: firstSeq, Pass: "eph-values"},
			{Seq: firstSeq + 1, Pass: "scalar-evolution"},
			{
				Seq:       firstSeq + 2,
				Pass:      "alignment-inv-prop",
				Procedure: "f",
				Changed:   true,
				Stats:     stats,
				Facts:     1,
				Remarks:   []alignprop.Remark{remark},
			},
		},
		Ephemeral:   []string{"f: entry: %pi = ptrtoint ptr %p to i64", "f: entry: call void @invariant(i1 %c)"},
		Changed:     true,
		Stats:       stats,
		Before:      "before",
		After:       "after",
		Invalidated: []string{"eph-values"},
	}
}

func TestRecordRunRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rep := testReport("run-1", 1)
	require.NoError(t, s.RecordRun(ctx, rep))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunSummary{
		ID:          "run-1",
		Unit:        "u",
		Pipeline:    rep.Pipeline,
		Changed:     true,
		Stats:       rep.Stats,
		Before:      "before",
		After:       "after",
		Invalidated: []string{"eph-values"},
		FirstSeq:    1,
		LastSeq:     3,
	}, run)

	runs, err := s.ReadPassRuns(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Runs, runs)

	remarks, err := s.ReadRemarks(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Remarks(), remarks)

	lines, err := s.ReadEphemeral(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Ephemeral, lines)
}

func TestRecordRunIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRun(ctx, testReport("run-1", 1)))

	// a second copy with different contents is ignored
	dup := testReport("run-1", 1)
	dup.Unit = "other"
	require.NoError(t, s.RecordRun(ctx, dup))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "u", run.Unit)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRunEmptyLists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rep := &passes.Report{RunID: "empty", Unit: "u", Before: "h", After: "h"}
	require.NoError(t, s.RecordRun(ctx, rep))

	run, err := s.ReadRun(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, []string{}, run.Pipeline)
	assert.Equal(t, []string{}, run.Invalidated)
	assert.Zero(t, run.FirstSeq)

	lines, err := s.ReadEphemeral(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

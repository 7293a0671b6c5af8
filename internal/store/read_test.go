package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/passes"
)

func TestListRunsOrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// recorded out of order; listing follows the clock
	require.NoError(t, s.RecordRun(ctx, testReport("b", 4)))
	require.NoError(t, s.RecordRun(ctx, testReport("a", 7)))
	require.NoError(t, s.RecordRun(ctx, testReport("c", 1)))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "a", runs[2].ID)
	assert.Equal(t, int64(7), runs[2].FirstSeq)
	assert.Equal(t, int64(9), runs[2].LastSeq)
}

func TestLastSeqResumesClock(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRun(ctx, testReport("r", 10)))

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), seq)
	assert.Equal(t, int64(13), passes.NewClockAt(seq).Next())
}

func TestReadRemarksOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rep := testReport("r", 1)
	second := rep.Runs[2].Remarks[0]
	second.Value = "%y"
	second.New = 32
	rep.Runs[2].Remarks = append(rep.Runs[2].Remarks, second)
	rep.Runs = append(rep.Runs, passes.PassRun{
		Seq:       4,
		Pass:      "alignment-inv-prop",
		Procedure: "g",
	})
	require.NoError(t, s.RecordRun(ctx, rep))

	remarks, err := s.ReadRemarks(ctx, "r")
	require.NoError(t, err)
	require.Len(t, remarks, 2)
	assert.Equal(t, "%x", remarks[0].Value)
	assert.Equal(t, "%y", remarks[1].Value)

	runs, err := s.ReadPassRuns(ctx, "r")
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Len(t, runs[2].Remarks, 2)
	assert.Nil(t, runs[3].Remarks)
}

package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"aligned_load_store", "loop_recurrence", "memset_dest", "plain_unit", "transfer_both_sides"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name), goldenDir)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	first, err := Run(loadScenario(t, "aligned_load_store"))
	require.NoError(t, err)
	second, err := Run(loadScenario(t, "aligned_load_store"))
	require.NoError(t, err)

	a, err := Snapshot("x", first)
	require.NoError(t, err)
	b, err := Snapshot("x", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSnapshotWithoutReport(t *testing.T) {
	_, err := Snapshot("broken", NewResult())
	assert.Error(t, err)
}

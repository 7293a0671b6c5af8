package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/store"
)

// recordRuns runs opt over the aligned and plain units into a fresh run log.
func recordRuns(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	_, err := execute(t, NewOptCommand(&RootOptions{Format: "text"}), unitDir("aligned"), "--db", dbPath, "--run-id", "run-a")
	require.NoError(t, err)
	_, err = execute(t, NewOptCommand(&RootOptions{Format: "text"}), unitDir("plain"), "--db", dbPath, "--run-id", "run-b")
	require.NoError(t, err)
	return dbPath
}

func TestHistoryListsRuns(t *testing.T) {
	dbPath := recordRuns(t)

	output, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	want := "run-a  aligned  seq 1-3  changed=true  [eph-values, scalar-evolution, alignment-inv-prop]\n" +
		"run-b  plain  seq 4-6  changed=false  [eph-values, scalar-evolution, alignment-inv-prop]\n"
	assert.Equal(t, want, output)
}

func TestHistoryListsRunsJSON(t *testing.T) {
	dbPath := recordRuns(t)

	output, err := execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []store.RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "run-a", resp.Data[0].ID)
	assert.Equal(t, []string{"eph-values"}, resp.Data[0].Invalidated)
	assert.NotEqual(t, resp.Data[0].Before, resp.Data[0].After)
	assert.Equal(t, resp.Data[1].Before, resp.Data[1].After)
}

func TestHistoryShowRun(t *testing.T) {
	dbPath := recordRuns(t)

	output, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	assert.Contains(t, output, "Run run-a\n")
	assert.Contains(t, output, "  seq: 1-3\n")
	assert.Contains(t, output, "  facts: 1, loads: 1, stores: 1, mem intrinsics: 0\n")
	assert.Contains(t, output, "Remarks:\n  f: entry: store i32 %v, ptr %p, align 1: store align 1 -> 16\n")
	assert.Contains(t, output, "Ephemeral:\n  f: entry: %pi = ptrtoint ptr %p to i64\n")
}

func TestHistoryShowRunJSON(t *testing.T) {
	dbPath := recordRuns(t)

	output, err := execute(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-b")
	require.NoError(t, err)

	var resp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "plain", resp.Data.Unit)
	assert.False(t, resp.Data.Changed)
	assert.Empty(t, resp.Data.Remarks)
	assert.Empty(t, resp.Data.Ephemeral)
}

func TestHistoryUnknownRun(t *testing.T) {
	dbPath := recordRuns(t)

	output, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error [E009]: run not found: missing")
}

func TestHistoryMissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "absent.db")

	_, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestHistoryRequiresDB(t *testing.T) {
	_, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidUnit(t *testing.T) {
	output, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), unitDir("aligned"))
	require.NoError(t, err)
	assert.Equal(t, "✓ Unit aligned valid\n", output)
}

func TestValidateValidUnitJSON(t *testing.T) {
	output, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), unitDir("memset"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "memset", resp.Data.Unit)
}

func TestValidateInvalidUnit(t *testing.T) {
	output, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), unitDir("broken"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E202", resp.Data.Errors[0].Code)
	assert.Equal(t, "k.entry", resp.Data.Errors[0].Field)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)
}

func TestValidateReportsEveryError(t *testing.T) {
	dir := writeUnit(t, `package units

proc: q: {
	params: [{name: "p", type: "ptr"}]
	blocks: [{
		name: "entry"
		instrs: [
			{name: "x", op: "load", type: "i32", args: ["%p"], align: 3},
			{op: "ret"},
			{op: "ret"},
		]
	}]
}
`)

	output, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, output, "[E203]")
	assert.Contains(t, output, "[E207]")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	output, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, output, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
}

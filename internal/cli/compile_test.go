package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invprop/internal/testutil"
)

func unitDir(name string) string {
	return testutil.Testdata("units", name)
}

// execute runs cmd with args and returns what it wrote to its output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeUnit writes a single-file CUE unit into a temp directory.
func writeUnit(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unit.cue"), []byte(body), 0644))
	return dir
}

func TestCompileValidUnit(t *testing.T) {
	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), unitDir("aligned"))
	require.NoError(t, err)

	assert.Contains(t, output, "✓ Compiled unit aligned: 1 procedure(s)")
	assert.Contains(t, output, "proc @f(ptr %p, i32 %v) {")
	assert.Contains(t, output, "  %x = load i32, ptr %p, align 4")
}

func TestCompileValidUnitJSON(t *testing.T) {
	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), unitDir("aligned"))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "aligned", resp.Data.Unit)
	assert.Equal(t, []string{"f"}, resp.Data.Procedures)
	assert.Len(t, resp.Data.Fingerprint, 64)
	assert.Equal(t, "proc @f(ptr %p, i32 %v) {", resp.Data.IR[0])
	assert.Equal(t, "}", resp.Data.IR[len(resp.Data.IR)-1])
}

func TestCompileWritesCanonicalIR(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "plain.json")

	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), unitDir("plain"), "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote canonical IR to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "plain", decoded["name"])
	assert.Equal(t, "1", decoded["ir_version"])
	assert.Contains(t, string(data), "\n  \"ir_version\"")
}

func TestCompileNonExistentDirectory(t *testing.T) {
	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/unit")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, output, "directory not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, output, "no CUE files found")
}

func TestCompileMissingProcedures(t *testing.T) {
	dir := writeUnit(t, "package units\n\nunit: \"empty\"\n")

	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "at least one procedure is required")
}

func TestCompileInvalidUnitFailsValidation(t *testing.T) {
	output, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), unitDir("broken"))
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "[E202] k.entry: block does not end in a terminator")
}

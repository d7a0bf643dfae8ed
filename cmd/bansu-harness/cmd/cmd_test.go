package cmd

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/bansu-harness/internal/api"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

func stubURL(t *testing.T, scenario string) string {
	t.Helper()
	s, err := api.LookupScenario(scenario)
	require.NoError(t, err)
	ts := httptest.NewServer(api.NewServer(s, "", "0").Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()
	exitCode = outcome.ExitSuccess
	initErr = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	return Execute(), out.String()
}

func TestRunCommandFinished(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "out.cif")

	code, out := execute(t, "run", "--url", stubURL(t, "finished"), "--smiles", "CCO",
		"--acedrg-args", `["-z"]`, "--timeout", "5", "--output", artifact)

	assert.Equal(t, outcome.ExitSuccess, code, out)
	assert.Contains(t, out, "[exit 0]")
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, api.DefaultArtifact, data)
}

func TestRunCommandRejected(t *testing.T) {
	code, out := execute(t, "run", "--url", stubURL(t, "rejected"), "--smiles", "CCO", "--output", "")

	assert.Equal(t, outcome.ExitMissingJobID, code, out)
	assert.Contains(t, out, "Job queue is full")
}

func TestRunCommandInvalidURL(t *testing.T) {
	code, _ := execute(t, "run", "--url", "ftp://localhost", "--smiles", "CCO")

	assert.Equal(t, outcome.ExitInvalidConfig, code)
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
concurrency: 2
jobs:
  - name: benzene
    smiles: c1ccccc1
  - name: atp
    ccd: ATP
`), 0o644))

	code, out := execute(t, "batch", "-f", manifest, "--url", stubURL(t, "finished"),
		"--timeout", "5", "--output-dir", dir)

	assert.Equal(t, outcome.ExitSuccess, code, out)
	assert.Contains(t, out, "benzene")
	assert.Contains(t, out, "atp")
	assert.FileExists(t, filepath.Join(dir, "benzene.cif"))
	assert.FileExists(t, filepath.Join(dir, "atp.cif"))
}

func TestBatchCommandReportsFirstFailure(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("jobs:\n  - smiles: C\n  - smiles: CC\n"), 0o644))

	code, out := execute(t, "batch", "-f", manifest, "--url", stubURL(t, "failed"), "--output-dir", "")

	assert.Equal(t, outcome.ExitRemoteFailure, code, out)
	assert.Contains(t, out, "remote_failure")
}

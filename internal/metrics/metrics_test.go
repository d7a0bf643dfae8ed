package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	SubmissionsTotal.Inc()
	RunsTotal.WithLabelValues("success", "fetch").Inc()

	path := filepath.Join(t.TempDir(), "bansu.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bansu_harness_submissions_total")
	assert.Contains(t, string(data), `bansu_harness_runs_total{outcome="success",stage="fetch"}`)
}

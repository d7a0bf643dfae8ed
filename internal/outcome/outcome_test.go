package outcome

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/bansu-harness/internal/jobs"
)

func TestExitCode(t *testing.T) {
	artifact := &jobs.Artifact{JobID: "j1", Data: []byte("data_"), Algorithm: "sha256", Digest: "abc"}

	tests := []struct {
		name string
		o    Outcome
		want int
	}{
		{"success", Succeeded("j1", nil, artifact), ExitSuccess},
		{"submit non-2xx", FromError(StageSubmit, HTTPStatus(StageSubmit, 500, []byte("boom"))), ExitSubmitStatus},
		{"submit transport", FromError(StageSubmit, New(KindTransport, StageSubmit, "dial", errors.New("refused"))), ExitSubmitTransport},
		{"plain error on submit", FromError(StageSubmit, errors.New("refused")), ExitSubmitTransport},
		{"websocket transport", FromError(StageMonitor, New(KindTransport, StageMonitor, "closed", nil)), ExitMonitorTransport},
		{"missing job id", FromError(StageSubmit, New(KindValidation, StageSubmit, "bad smiles", nil)), ExitMissingJobID},
		{"remote failure", FromError(StageMonitor, RemoteFailure("acedrg crashed", "timeout")), ExitRemoteFailure},
		{"fetch non-200", FromError(StageFetch, HTTPStatus(StageFetch, 404, nil)), ExitFetchStatus},
		{"fetch transport", FromError(StageFetch, New(KindTransport, StageFetch, "read", errors.New("reset"))), ExitFetchTransport},
		{"submit protocol", FromError(StageSubmit, New(KindProtocol, StageSubmit, "not json", nil)), ExitSubmitProtocol},
		{"config", FromError(StageConfig, New(KindValidation, StageConfig, "no input", nil)), ExitInvalidConfig},
		{"success without artifact", Outcome{Kind: KindSuccess, Stage: StageMonitor}, ExitInternal},
		{"protocol on fetch", Outcome{Kind: KindProtocol, Stage: StageFetch}, ExitInternal},
		{"unknown kind", Outcome{Kind: Kind(42)}, ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.o))
		})
	}
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []int{
		ExitSuccess, ExitSubmitStatus, ExitSubmitTransport, ExitMonitorTransport, ExitMissingJobID,
		ExitRemoteFailure, ExitFetchStatus, ExitFetchTransport, ExitSubmitProtocol, ExitInvalidConfig, ExitInternal,
	}
	seen := make(map[int]bool)
	for _, c := range codes {
		require.False(t, seen[c], "exit code %d used twice", c)
		seen[c] = true
	}
}

func TestFromErrorKeepsWrappedStage(t *testing.T) {
	wrapped := fmt.Errorf("submitting: %w", HTTPStatus(StageSubmit, 503, []byte("busy")))

	o := FromError(StageMonitor, wrapped)

	assert.Equal(t, KindTransport, o.Kind)
	assert.Equal(t, StageSubmit, o.Stage)
	assert.Equal(t, 503, o.StatusCode())
}

func TestErrorMessage(t *testing.T) {
	err := RemoteFailure("acedrg crashed", "timeout")
	assert.Equal(t, "monitor: remote_failure: acedrg crashed (reason: timeout)", err.Error())

	statusErr := HTTPStatus(StageSubmit, 500, []byte("  internal error \n"))
	assert.Equal(t, "submit: transport_error: status 500: unexpected HTTP status: body: internal error", statusErr.Error())

	cause := errors.New("connection refused")
	assert.ErrorIs(t, New(KindTransport, StageSubmit, "send", cause), cause)
}

func TestSnippetTruncates(t *testing.T) {
	s := Snippet([]byte(strings.Repeat("x", maxBodySnippet+10)))
	assert.Len(t, s, maxBodySnippet+3)
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	artifact := &jobs.Artifact{JobID: "j1", Data: []byte("data_2_1_2_1_"), Algorithm: "sha256", Digest: "feed"}

	code := Report(&buf, Succeeded("j1", nil, artifact))

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, buf.String(), "job j1 finished")
	assert.Contains(t, buf.String(), "sha256 digest feed")
	assert.Contains(t, buf.String(), "[exit 0]")
}

func TestReportRemoteFailure(t *testing.T) {
	var buf bytes.Buffer
	o := FromError(StageMonitor, RemoteFailure("acedrg crashed", "timeout"))
	o.JobID = "j2"

	code := Report(&buf, o)

	assert.Equal(t, ExitRemoteFailure, code)
	assert.Contains(t, buf.String(), "acedrg crashed")
	assert.Contains(t, buf.String(), "timeout")
}

package outcome

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mtr002/bansu-harness/internal/jobs"
)

// Kind classifies how a run ended
type Kind int

const (
	KindSuccess Kind = iota
	KindRemoteFailure
	KindProtocol
	KindTransport
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRemoteFailure:
		return "remote_failure"
	case KindProtocol:
		return "protocol_error"
	case KindTransport:
		return "transport_error"
	case KindValidation:
		return "validation_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Stage is the component that produced an outcome
type Stage int

const (
	StageConfig Stage = iota
	StageSubmit
	StageMonitor
	StageFetch
)

func (s Stage) String() string {
	switch s {
	case StageConfig:
		return "config"
	case StageSubmit:
		return "submit"
	case StageMonitor:
		return "monitor"
	case StageFetch:
		return "fetch"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

const maxBodySnippet = 512

// Error is the error type returned by every stage of a run
type Error struct {
	Kind       Kind
	Stage      Stage
	StatusCode int
	Body       string
	Message    string
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Stage, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " (reason: %s)", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": body: %s", e.Body)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind
func New(kind Kind, stage Stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

// HTTPStatus creates the transport error for an unexpected status code.
// The body is kept as a diagnostic snippet and never interpreted.
func HTTPStatus(stage Stage, statusCode int, body []byte) *Error {
	return &Error{
		Kind:       KindTransport,
		Stage:      stage,
		StatusCode: statusCode,
		Message:    "unexpected HTTP status",
		Body:       Snippet(body),
	}
}

// RemoteFailure creates the error for a job the service reported as failed
func RemoteFailure(message, reason string) *Error {
	return &Error{Kind: KindRemoteFailure, Stage: StageMonitor, Message: message, Reason: reason}
}

// Snippet trims a response body to a size fit for diagnostics
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodySnippet {
		return s[:maxBodySnippet] + "..."
	}
	return s
}

// As extracts an *Error from err
func As(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// Outcome is the terminal result of one run
type Outcome struct {
	Kind         Kind
	Stage        Stage
	Err          error
	JobID        jobs.Handle
	Notification *jobs.Notification
	Artifact     *jobs.Artifact
}

// Succeeded builds the outcome of a run that retrieved its artifact
func Succeeded(handle jobs.Handle, n *jobs.Notification, artifact *jobs.Artifact) Outcome {
	return Outcome{
		Kind:         KindSuccess,
		Stage:        StageFetch,
		JobID:        handle,
		Notification: n,
		Artifact:     artifact,
	}
}

// FromError builds the outcome for a failed stage. Errors that are not an
// *Error are treated as transport errors of the given stage.
func FromError(stage Stage, err error) Outcome {
	if oe, ok := As(err); ok {
		return Outcome{Kind: oe.Kind, Stage: oe.Stage, Err: oe}
	}
	return Outcome{Kind: KindTransport, Stage: stage, Err: err}
}

// StatusCode returns the HTTP status carried by the outcome's error, or 0
func (o Outcome) StatusCode() int {
	if oe, ok := As(o.Err); ok {
		return oe.StatusCode
	}
	return 0
}

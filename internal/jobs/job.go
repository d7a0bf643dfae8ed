package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRequest is wrapped by every Request validation failure.
var ErrInvalidRequest = errors.New("invalid job request")

// ErrChannelClosed is returned by an event source once the job channel
// has been closed by the remote side.
var ErrChannelClosed = errors.New("job channel closed")

// Status is the status tag carried by a job notification
type Status string

const (
	StatusPending  Status = "Pending"
	StatusQueued   Status = "Queued"
	StatusRunning  Status = "Running"
	StatusFinished Status = "Finished"
	StatusFailed   Status = "Failed"
)

// IsTerminal reports whether the status ends the job's lifecycle
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Handle is the opaque job identifier handed out by the remote service
type Handle string

// Request is the body of a job submission. Exactly one of the structure
// inputs must be set.
type Request struct {
	Smiles           string   `json:"smiles,omitempty" yaml:"smiles,omitempty"`
	InputMmcifBase64 string   `json:"input_mmcif_base64,omitempty" yaml:"input_mmcif_base64,omitempty"`
	CcdCode          string   `json:"ccd_code,omitempty" yaml:"ccd_code,omitempty"`
	CommandlineArgs  []string `json:"commandline_args" yaml:"commandline_args"`
}

// InputKind names the structure input carried by the request
func (r Request) InputKind() string {
	switch {
	case r.Smiles != "":
		return "smiles"
	case r.InputMmcifBase64 != "":
		return "mmcif"
	case r.CcdCode != "":
		return "ccd"
	}
	return "none"
}

// Validate checks the exactly-one-of-structure-input invariant
func (r Request) Validate() error {
	present := 0
	for _, input := range []string{r.Smiles, r.InputMmcifBase64, r.CcdCode} {
		if input != "" {
			present++
		}
	}
	switch present {
	case 0:
		return fmt.Errorf("%w: no structure input given, set one of SMILES, mmCIF document or CCD code", ErrInvalidRequest)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: %d structure inputs given, exactly one of SMILES, mmCIF document or CCD code is allowed", ErrInvalidRequest, present)
	}
}

// Body returns the JSON request body. commandline_args is always an array.
func (r Request) Body() ([]byte, error) {
	if r.CommandlineArgs == nil {
		r.CommandlineArgs = []string{}
	}
	return json.Marshal(r)
}

// SpawnReply is the response envelope of a job submission
type SpawnReply struct {
	JobID         *string `json:"job_id"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	QueuePosition *int    `json:"queue_position,omitempty"`
}

// Output holds the captured output streams of the remote tool
type Output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Notification is one status message pushed over the job channel
type Notification struct {
	Status        Status  `json:"status"`
	JobOutput     *Output `json:"job_output,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	QueuePosition *int    `json:"queue_position,omitempty"`
}

// OutputLengths returns the stdout and stderr lengths, zero when absent
func (n *Notification) OutputLengths() (int, int) {
	if n == nil || n.JobOutput == nil {
		return 0, 0
	}
	return len(n.JobOutput.Stdout), len(n.JobOutput.Stderr)
}

// String returns a string representation of the notification
func (n *Notification) String() string {
	stdout, stderr := n.OutputLengths()
	return fmt.Sprintf("Notification{Status: %s, Stdout: %d, Stderr: %d, Reason: %s}",
		n.Status, stdout, stderr, n.FailureReason)
}

// Artifact is the output file of a finished job together with the digest
// computed locally over its bytes.
type Artifact struct {
	JobID     Handle
	Data      []byte
	Algorithm string
	Digest    string
	DigestErr error
}

// Size returns the artifact length in bytes
func (a *Artifact) Size() int {
	return len(a.Data)
}

// String returns a string representation of the artifact
func (a *Artifact) String() string {
	return fmt.Sprintf("Artifact{JobID: %s, Size: %d, %s: %s}", a.JobID, a.Size(), a.Algorithm, a.Digest)
}

package outcome

import (
	"fmt"
	"io"
)

// Process exit codes, one per terminal condition.
const (
	ExitSuccess          = 0
	ExitSubmitStatus     = 1
	ExitSubmitTransport  = 2
	ExitMonitorTransport = 3
	ExitMissingJobID     = 4
	ExitRemoteFailure    = 5
	ExitFetchStatus      = 6
	ExitFetchTransport   = 7
	ExitSubmitProtocol   = 8
	ExitInvalidConfig    = 9

	// ExitInternal flags an outcome no stage should be able to produce.
	ExitInternal = 70
)

// ExitCode maps an outcome to its process exit code. A non-2xx submission
// is reported before any attempt to parse the body, so it maps to
// ExitSubmitStatus rather than a protocol or validation code.
func ExitCode(o Outcome) int {
	switch o.Kind {
	case KindSuccess:
		if o.Stage == StageFetch && o.Artifact != nil {
			return ExitSuccess
		}
	case KindRemoteFailure:
		if o.Stage == StageMonitor {
			return ExitRemoteFailure
		}
	case KindTransport:
		switch o.Stage {
		case StageSubmit:
			if o.StatusCode() != 0 {
				return ExitSubmitStatus
			}
			return ExitSubmitTransport
		case StageMonitor:
			return ExitMonitorTransport
		case StageFetch:
			if o.StatusCode() != 0 {
				return ExitFetchStatus
			}
			return ExitFetchTransport
		}
	case KindProtocol:
		if o.Stage == StageSubmit {
			return ExitSubmitProtocol
		}
	case KindValidation:
		switch o.Stage {
		case StageConfig:
			return ExitInvalidConfig
		case StageSubmit:
			return ExitMissingJobID
		}
	}
	return ExitInternal
}

// Describe renders the human-readable line for an outcome
func Describe(o Outcome) string {
	switch o.Kind {
	case KindSuccess:
		if o.Artifact != nil {
			return fmt.Sprintf("job %s finished: artifact of %d bytes retrieved, %s digest %s",
				o.JobID, o.Artifact.Size(), o.Artifact.Algorithm, digestText(o))
		}
		return fmt.Sprintf("job %s finished without an artifact", o.JobID)
	case KindRemoteFailure:
		return fmt.Sprintf("job %s failed: %v", o.JobID, o.Err)
	default:
		if o.JobID != "" {
			return fmt.Sprintf("job %s: %v", o.JobID, o.Err)
		}
		return fmt.Sprintf("run aborted: %v", o.Err)
	}
}

func digestText(o Outcome) string {
	if o.Artifact.DigestErr != nil {
		return fmt.Sprintf("unavailable (%v)", o.Artifact.DigestErr)
	}
	return o.Artifact.Digest
}

// Report writes the outcome line to w and returns the exit code
func Report(w io.Writer, o Outcome) int {
	code := ExitCode(o)
	fmt.Fprintf(w, "%s [exit %d]\n", Describe(o), code)
	return code
}

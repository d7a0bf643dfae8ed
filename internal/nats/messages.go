package nats

type RunOutcomeMessage struct {
	CorrelationID   string `json:"correlation_id"`
	Name            string `json:"name,omitempty"`
	JobID           string `json:"job_id,omitempty"`
	Outcome         string `json:"outcome"`
	Stage           string `json:"stage"`
	ExitCode        int    `json:"exit_code"`
	Error           string `json:"error,omitempty"`
	ArtifactBytes   int    `json:"artifact_bytes,omitempty"`
	DigestAlgorithm string `json:"digest_algorithm,omitempty"`
	Digest          string `json:"digest,omitempty"`
	DurationMs      int64  `json:"duration_ms"`
}

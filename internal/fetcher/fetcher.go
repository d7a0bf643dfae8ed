package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtr002/bansu-harness/internal/endpoint"
	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/metrics"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

// Fetcher downloads the artifact of a finished job
type Fetcher struct {
	endpoint      endpoint.Endpoint
	httpClient    *http.Client
	algorithm     string
	correlationID string
	log           zerolog.Logger
}

// New creates a fetcher. A nil client gets a client with a 5 minute
// timeout, large artifacts are streamed.
func New(ep endpoint.Endpoint, httpClient *http.Client, algorithm string, log zerolog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Fetcher{
		endpoint:   ep,
		httpClient: httpClient,
		algorithm:  NormalizeAlgorithm(algorithm),
		log:        log,
	}
}

// SetCorrelationID sets the X-Correlation-ID sent with every request
func (f *Fetcher) SetCorrelationID(id string) {
	f.correlationID = id
}

// Fetch retrieves the artifact of handle and digests it. A digest failure
// is recorded on the artifact and does not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context, handle jobs.Handle) (*jobs.Artifact, error) {
	target := f.endpoint.HTTPURL("/get_cif/" + url.PathEscape(string(handle)))
	log := f.log.With().Str("job_id", string(handle)).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, outcome.New(outcome.KindTransport, outcome.StageFetch, "failed to create request", err)
	}
	if f.correlationID != "" {
		req.Header.Set("X-Correlation-ID", f.correlationID)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, outcome.New(outcome.KindTransport, outcome.StageFetch, "failed to request artifact", err)
	}
	defer resp.Body.Close()

	log.Info().Int("status", resp.StatusCode).Msg("Artifact response")
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().Int("status", resp.StatusCode).Msg("Artifact download failed")
		return nil, outcome.HTTPStatus(outcome.StageFetch, resp.StatusCode, body)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, outcome.New(outcome.KindTransport, outcome.StageFetch, "artifact transfer interrupted", err)
	}

	artifact := &jobs.Artifact{
		JobID:     handle,
		Data:      buf.Bytes(),
		Algorithm: f.algorithm,
	}
	metrics.ArtifactBytes.Observe(float64(artifact.Size()))

	digest, err := Digest(f.algorithm, artifact.Data)
	if err != nil {
		artifact.DigestErr = err
		log.Warn().Err(err).Msg("Could not compute artifact digest")
	} else {
		artifact.Digest = digest
	}

	log.Info().
		Int("size", artifact.Size()).
		Str("algorithm", artifact.Algorithm).
		Str("digest", artifact.Digest).
		Msg("Artifact retrieved")
	return artifact, nil
}

// Save writes the artifact to path
func Save(artifact *jobs.Artifact, path string) error {
	return os.WriteFile(path, artifact.Data, 0o644)
}

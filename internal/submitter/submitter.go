package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtr002/bansu-harness/internal/endpoint"
	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/metrics"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

const runPath = "/run_acedrg"

// Submitter sends job creation requests to the service
type Submitter struct {
	endpoint      endpoint.Endpoint
	httpClient    *http.Client
	correlationID string
	log           zerolog.Logger
}

// New creates a submitter for the given endpoint. A nil client gets a
// client with a 30 second timeout.
func New(ep endpoint.Endpoint, httpClient *http.Client, log zerolog.Logger) *Submitter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Submitter{
		endpoint:   ep,
		httpClient: httpClient,
		log:        log,
	}
}

// SetCorrelationID sets the X-Correlation-ID sent with every request
func (s *Submitter) SetCorrelationID(id string) {
	s.correlationID = id
}

// Submit posts the request and returns the job handle. The request must
// already satisfy Request.Validate.
func (s *Submitter) Submit(ctx context.Context, req jobs.Request) (jobs.Handle, error) {
	data, err := req.Body()
	if err != nil {
		return "", outcome.New(outcome.KindValidation, outcome.StageConfig, "failed to marshal job request", err)
	}

	url := s.endpoint.HTTPURL(runPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", outcome.New(outcome.KindValidation, outcome.StageConfig, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.correlationID != "" {
		httpReq.Header.Set("X-Correlation-ID", s.correlationID)
	}

	s.log.Info().
		Str("url", url).
		Str("input", req.InputKind()).
		Strs("commandline_args", req.CommandlineArgs).
		Msg("Submitting job")
	metrics.SubmissionsTotal.Inc()

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", outcome.New(outcome.KindTransport, outcome.StageSubmit, "failed to send job request", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Error().Int("status", resp.StatusCode).Str("body", outcome.Snippet(body)).Msg("Server returned non-2xx status")
		return "", outcome.HTTPStatus(outcome.StageSubmit, resp.StatusCode, body)
	}
	if readErr != nil {
		return "", outcome.New(outcome.KindTransport, outcome.StageSubmit, "failed to read submission response", readErr)
	}

	var reply jobs.SpawnReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", &outcome.Error{
			Kind:    outcome.KindProtocol,
			Stage:   outcome.StageSubmit,
			Message: "submission response is not valid JSON",
			Body:    outcome.Snippet(body),
			Err:     err,
		}
	}

	if reply.JobID == nil || *reply.JobID == "" {
		message := "server returned no job id"
		if reply.ErrorMessage != nil && *reply.ErrorMessage != "" {
			message = *reply.ErrorMessage
		}
		s.log.Error().Str("error_message", message).Msg("Server returned null job id")
		return "", outcome.New(outcome.KindValidation, outcome.StageSubmit, message, nil)
	}

	handle := jobs.Handle(*reply.JobID)
	event := s.log.Info().Str("job_id", string(handle)).Int("status", resp.StatusCode)
	if reply.QueuePosition != nil {
		event = event.Int("queue_position", *reply.QueuePosition)
	}
	event.Msg("Job submitted")

	return handle, nil
}

package harness

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mtr002/bansu-harness/internal/endpoint"
	"github.com/mtr002/bansu-harness/internal/fetcher"
	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/metrics"
	"github.com/mtr002/bansu-harness/internal/monitor"
	"github.com/mtr002/bansu-harness/internal/nats"
	"github.com/mtr002/bansu-harness/internal/outcome"
	"github.com/mtr002/bansu-harness/internal/submitter"
	"github.com/mtr002/bansu-harness/internal/websocket"
)

// Publisher receives a summary of every finished run
type Publisher interface {
	PublishOutcome(msg *nats.RunOutcomeMessage) error
}

// Options configures a Runner
type Options struct {
	Endpoint        endpoint.Endpoint
	HTTPClient      *http.Client
	Timeout         time.Duration
	DigestAlgorithm string
	OutputPath      string
	Name            string
	Logger          zerolog.Logger
	Publisher       Publisher
	Observer        func(jobs.Notification)

	// Sources overrides how the job channel is opened
	Sources monitor.SourceFactory
}

// Runner drives jobs through submit, monitor and fetch. The submitter and
// fetcher are owned by the runner and a fresh monitor is made for every
// run, so runners never share mutable state.
type Runner struct {
	opts          Options
	correlationID string
	log           zerolog.Logger
	submitter     *submitter.Submitter
	fetcher       *fetcher.Fetcher
}

// New creates a runner with its own component instances
func New(opts Options) *Runner {
	correlationID := uuid.New().String()
	log := opts.Logger.With().Str("correlation_id", correlationID).Logger()
	if opts.Name != "" {
		log = log.With().Str("run", opts.Name).Logger()
	}

	s := submitter.New(opts.Endpoint, opts.HTTPClient, log)
	s.SetCorrelationID(correlationID)
	f := fetcher.New(opts.Endpoint, opts.HTTPClient, opts.DigestAlgorithm, log)
	f.SetCorrelationID(correlationID)

	r := &Runner{
		opts:          opts,
		correlationID: correlationID,
		log:           log,
		submitter:     s,
		fetcher:       f,
	}
	if r.opts.Sources == nil {
		r.opts.Sources = r.websocketSource
	}
	return r
}

// CorrelationID identifies the runner's requests on the server side
func (r *Runner) CorrelationID() string {
	return r.correlationID
}

func (r *Runner) websocketSource(handle jobs.Handle) monitor.EventSource {
	header := http.Header{}
	header.Set("X-Correlation-ID", r.correlationID)
	return websocket.NewSource(r.opts.Endpoint.WebSocketURL("/ws/"+url.PathEscape(string(handle))), header)
}

// Run executes one job and returns its terminal outcome
func (r *Runner) Run(ctx context.Context, req jobs.Request) outcome.Outcome {
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	start := time.Now()
	o := r.run(ctx, req)
	duration := time.Since(start)

	metrics.RunsTotal.WithLabelValues(o.Kind.String(), o.Stage.String()).Inc()
	metrics.RunDuration.Observe(duration.Seconds())
	r.publish(o, duration)
	return o
}

func (r *Runner) run(ctx context.Context, req jobs.Request) outcome.Outcome {
	if err := req.Validate(); err != nil {
		r.log.Error().Err(err).Msg("Job request rejected before submission")
		return outcome.FromError(outcome.StageConfig,
			outcome.New(outcome.KindValidation, outcome.StageConfig, "invalid job request", err))
	}

	stageStart := time.Now()
	handle, err := r.submitter.Submit(ctx, req)
	observeStage(outcome.StageSubmit, stageStart)
	if err != nil {
		return outcome.FromError(outcome.StageSubmit, err)
	}

	monitorCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		monitorCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	stageStart = time.Now()
	m := monitor.New(r.opts.Sources, r.log)
	if r.opts.Observer != nil {
		m.OnNotification(r.opts.Observer)
	}
	result := m.Run(monitorCtx, handle)
	observeStage(outcome.StageMonitor, stageStart)
	if result.Kind != outcome.KindSuccess {
		return result
	}

	stageStart = time.Now()
	artifact, err := r.fetcher.Fetch(ctx, handle)
	observeStage(outcome.StageFetch, stageStart)
	if err != nil {
		o := outcome.FromError(outcome.StageFetch, err)
		o.JobID = handle
		o.Notification = result.Notification
		return o
	}

	if r.opts.OutputPath != "" {
		if err := fetcher.Save(artifact, r.opts.OutputPath); err != nil {
			r.log.Error().Err(err).Str("path", r.opts.OutputPath).Msg("Failed to write artifact")
		} else {
			r.log.Info().Str("path", r.opts.OutputPath).Msg("Artifact written")
		}
	}

	return outcome.Succeeded(handle, result.Notification, artifact)
}

func observeStage(stage outcome.Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
}

func (r *Runner) publish(o outcome.Outcome, duration time.Duration) {
	if r.opts.Publisher == nil {
		return
	}

	msg := &nats.RunOutcomeMessage{
		CorrelationID: r.correlationID,
		Name:          r.opts.Name,
		JobID:         string(o.JobID),
		Outcome:       o.Kind.String(),
		Stage:         o.Stage.String(),
		ExitCode:      outcome.ExitCode(o),
		DurationMs:    duration.Milliseconds(),
	}
	if o.Err != nil {
		msg.Error = o.Err.Error()
	}
	if o.Artifact != nil {
		msg.ArtifactBytes = o.Artifact.Size()
		msg.DigestAlgorithm = o.Artifact.Algorithm
		msg.Digest = o.Artifact.Digest
	}

	if err := r.opts.Publisher.PublishOutcome(msg); err != nil {
		r.log.Warn().Err(err).Msg("Failed to publish run outcome")
	}
}

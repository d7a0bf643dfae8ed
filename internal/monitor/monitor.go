package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/metrics"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

// State is the monitor's position in the job channel lifecycle
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateTerminated State = "terminated"
)

var validTransitions = map[State]map[State]bool{
	StateConnecting: {
		StateOpen:       true,
		StateTerminated: true,
	},
	StateOpen: {
		StateTerminated: true,
	},
	StateTerminated: {},
}

// EventSource delivers the raw messages of one job channel. Next returns
// jobs.ErrChannelClosed once the remote side has closed the channel.
type EventSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// SourceFactory opens the event source addressing a job
type SourceFactory func(handle jobs.Handle) EventSource

// Monitor follows one job's notifications until a terminal one arrives.
// A Monitor is single-use.
type Monitor struct {
	newSource SourceFactory
	log       zerolog.Logger
	observer  func(jobs.Notification)

	mu    sync.Mutex
	state State
}

// New creates a monitor in the Connecting state
func New(newSource SourceFactory, log zerolog.Logger) *Monitor {
	return &Monitor{
		newSource: newSource,
		log:       log,
		state:     StateConnecting,
	}
}

// OnNotification registers a callback invoked for every decoded notification
func (m *Monitor) OnNotification(fn func(jobs.Notification)) {
	m.observer = fn
}

// State returns the current state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !validTransitions[m.state][to] {
		return fmt.Errorf("invalid monitor transition from %s to %s", m.state, to)
	}
	m.state = to
	return nil
}

// Run attaches to the job channel and blocks until the job reaches a
// terminal status, the channel fails or closes, or ctx is done. The
// returned outcome is Success, RemoteFailure or TransportError, all with
// StageMonitor.
func (m *Monitor) Run(ctx context.Context, handle jobs.Handle) outcome.Outcome {
	if m.State() != StateConnecting {
		return outcome.Outcome{
			Kind:  outcome.KindValidation,
			Stage: outcome.StageMonitor,
			JobID: handle,
			Err:   outcome.New(outcome.KindValidation, outcome.StageMonitor, "monitor already used", nil),
		}
	}

	log := m.log.With().Str("job_id", string(handle)).Logger()
	source := m.newSource(handle)
	defer func() {
		if err := source.Close(); err != nil {
			log.Debug().Err(err).Msg("Closing job channel")
		}
	}()

	if err := source.Open(ctx); err != nil {
		log.Error().Err(err).Msg("Job channel could not be opened")
		return m.terminate(handle, m.transportError("failed to open job channel", err))
	}
	if err := m.transition(StateOpen); err != nil {
		return m.terminate(handle, m.transportError("job channel state", err))
	}
	log.Info().Msg("Job channel established")

	for {
		payload, err := source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrChannelClosed):
				log.Warn().Msg("Job channel closed before a terminal notification")
				return m.terminate(handle, m.transportError("job channel closed before a terminal notification, run incomplete", nil))
			case ctx.Err() != nil:
				log.Error().Err(ctx.Err()).Msg("Gave up waiting for a terminal notification")
				return m.terminate(handle, m.transportError("no terminal notification before deadline", ctx.Err()))
			default:
				log.Error().Err(err).Msg("Job channel errored out")
				return m.terminate(handle, m.transportError("job channel read failed", err))
			}
		}

		var n jobs.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			metrics.MalformedNotificationsTotal.Inc()
			log.Warn().Err(err).Str("payload", outcome.Snippet(payload)).Msg("Ignoring malformed notification")
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(string(n.Status)).Inc()
		if m.observer != nil {
			m.observer(n)
		}

		if o, done := m.classify(log, handle, n); done {
			return o
		}
	}
}

func (m *Monitor) classify(log zerolog.Logger, handle jobs.Handle, n jobs.Notification) (outcome.Outcome, bool) {
	switch n.Status {
	case jobs.StatusFinished:
		stdout, stderr := n.OutputLengths()
		log.Info().Int("stdout_len", stdout).Int("stderr_len", stderr).Msg("Job has finished successfully")
		if n.JobOutput != nil {
			log.Debug().Str("stdout", n.JobOutput.Stdout).Str("stderr", n.JobOutput.Stderr).Msg("Job output")
		}
		o := outcome.Outcome{Kind: outcome.KindSuccess, Stage: outcome.StageMonitor}
		return m.finish(handle, o, &n), true

	case jobs.StatusFailed:
		log.Error().
			Str("error_message", n.ErrorMessage).
			Str("failure_reason", n.FailureReason).
			Msg("Job failed")
		err := outcome.RemoteFailure(n.ErrorMessage, n.FailureReason)
		o := outcome.Outcome{Kind: outcome.KindRemoteFailure, Stage: outcome.StageMonitor, Err: err}
		return m.finish(handle, o, &n), true

	default:
		event := log.Info().Str("status", string(n.Status))
		if n.QueuePosition != nil {
			event = event.Int("queue_position", *n.QueuePosition)
		}
		event.Msg("Job notification")
		return outcome.Outcome{}, false
	}
}

func (m *Monitor) transportError(message string, err error) *outcome.Error {
	return outcome.New(outcome.KindTransport, outcome.StageMonitor, message, err)
}

func (m *Monitor) terminate(handle jobs.Handle, err *outcome.Error) outcome.Outcome {
	o := outcome.Outcome{Kind: err.Kind, Stage: err.Stage, Err: err}
	return m.finish(handle, o, nil)
}

func (m *Monitor) finish(handle jobs.Handle, o outcome.Outcome, n *jobs.Notification) outcome.Outcome {
	if err := m.transition(StateTerminated); err != nil {
		m.log.Error().Err(err).Msg("Monitor terminated twice")
	}
	o.JobID = handle
	o.Notification = n
	return o
}

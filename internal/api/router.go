package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/logger"
	"github.com/mtr002/bansu-harness/internal/websocket"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

// AddRoutes registers the Bansu endpoints under prefix. Every job accepted
// by the returned handler follows scenario.
func AddRoutes(mux *http.ServeMux, prefix string, registry *Registry, scenario Scenario) {
	prefix = strings.TrimRight(prefix, "/")

	api := http.NewServeMux()
	api.HandleFunc("POST /run_acedrg", correlationMiddleware(handleRunAcedrg(registry, scenario)))
	api.HandleFunc("GET /ws/{job_id}", correlationMiddleware(handleJobChannel(registry)))
	api.HandleFunc("GET /get_cif/{job_id}", correlationMiddleware(handleGetCif(registry)))

	if prefix == "" {
		mux.Handle("/run_acedrg", api)
		mux.Handle("/ws/", api)
		mux.Handle("/get_cif/", api)
	} else {
		mux.Handle(prefix+"/", http.StripPrefix(prefix, api))
	}

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/health/ready", HandleReadiness(registry))
	mux.HandleFunc("/health/live", HandleLiveness)
}

func correlationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), correlationKey, correlationID)
		next(w, r.WithContext(ctx))
	}
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

type spawnReply struct {
	JobID         *string `json:"job_id"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	QueuePosition *int    `json:"queue_position,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func handleRunAcedrg(registry *Registry, scenario Scenario) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithCorrelationID(getCorrelationID(r.Context()))
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("Received request")

		var req jobs.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn().Err(err).Msg("Invalid JSON request")
			msg := "invalid JSON: " + err.Error()
			writeJSON(w, http.StatusBadRequest, spawnReply{ErrorMessage: &msg})
			return
		}
		if err := req.Validate(); err != nil {
			log.Warn().Err(err).Msg("Job request rejected")
			msg := err.Error()
			writeJSON(w, http.StatusBadRequest, spawnReply{ErrorMessage: &msg})
			return
		}

		if scenario.SubmitBody != "" {
			w.WriteHeader(scenario.submitStatus())
			w.Write([]byte(scenario.SubmitBody))
			return
		}
		if scenario.RejectMessage != "" {
			msg := scenario.RejectMessage
			writeJSON(w, scenario.submitStatus(), spawnReply{ErrorMessage: &msg})
			return
		}

		job := registry.Create(req, scenario)
		reply := spawnReply{JobID: &job.ID, QueuePosition: scenario.QueuePosition}
		if err := writeJSON(w, scenario.submitStatus(), reply); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
		}
	}
}

func handleJobChannel(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("job_id")
		job, ok := registry.Get(id)
		if !ok {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}

		updates := make(chan []byte, len(job.Scenario.Messages))
		for _, msg := range job.Scenario.Messages {
			updates <- []byte(msg)
		}
		if !job.Scenario.Hold {
			close(updates)
		}

		logger.WithJobID(id).Info().Int("messages", len(job.Scenario.Messages)).Msg("Job channel attached")
		websocket.HandleJobChannel(w, r, updates)
	}
}

func handleGetCif(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("job_id")
		log := logger.WithJobID(id)

		job, ok := registry.Get(id)
		if !ok {
			log.Warn().Msg("Job not found")
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		if status := job.Scenario.artifactStatus(); status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}

		w.Header().Set("Content-Type", "chemical/x-cif")
		if _, err := w.Write(job.Scenario.Artifact); err != nil {
			log.Error().Err(err).Msg("Failed to write artifact")
			return
		}
		log.Info().Int("bytes", len(job.Scenario.Artifact)).Msg("Artifact served")
	}
}

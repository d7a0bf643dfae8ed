package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/logger"
)

// Job is a submission accepted by the stub
type Job struct {
	ID        string
	Request   jobs.Request
	Scenario  Scenario
	CreatedAt time.Time
}

// Registry keeps the jobs accepted by the stub in memory
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create stores a new job and assigns its id
func (r *Registry) Create(req jobs.Request, scenario Scenario) *Job {
	job := &Job{
		ID:        uuid.New().String(),
		Request:   req,
		Scenario:  scenario,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	logger.WithJobID(job.ID).Info().
		Str("input", req.InputKind()).
		Str("scenario", scenario.Name).
		Msg("Job accepted")
	return job
}

// Get returns the job with the given id
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Count returns the number of accepted jobs
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/logger"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

// Task is one run of a batch
type Task struct {
	Index   int
	Name    string
	Request jobs.Request
}

// Result pairs a task with the outcome of its run
type Result struct {
	Task     Task
	Outcome  outcome.Outcome
	ExitCode int
	Duration time.Duration
}

// RunFunc drives one task to completion. Each call must use its own
// component instances; the pool shares nothing between calls.
type RunFunc func(ctx context.Context, task Task) outcome.Outcome

// Pool runs batch tasks with a bounded number of workers
type Pool struct {
	run         RunFunc
	workerCount int
}

// NewPool creates a new worker pool
func NewPool(run RunFunc, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		run:         run,
		workerCount: workerCount,
	}
}

// Run processes every task and returns results in task order
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	queue := make(chan int)

	workers := min(p.workerCount, len(tasks))
	logger.Logger.Info().Int("worker_count", workers).Int("tasks", len(tasks)).Msg("Starting worker pool")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, queue, results, &wg)
	}

	for i := range tasks {
		queue <- i
	}
	close(queue)
	wg.Wait()

	logger.Logger.Info().Msg("Worker pool finished")
	return results
}

// worker drains the queue; results are written to distinct indices
func (p *Pool) worker(ctx context.Context, id int, tasks []Task, queue <-chan int, results []Result, wg *sync.WaitGroup) {
	defer wg.Done()

	logger.Logger.Debug().Int("worker_id", id).Msg("Worker started")
	for i := range queue {
		results[i] = p.processTask(ctx, id, tasks[i])
	}
	logger.Logger.Debug().Int("worker_id", id).Msg("Worker shutting down")
}

func (p *Pool) processTask(ctx context.Context, workerID int, task Task) Result {
	startTime := time.Now()
	logger.Logger.Info().
		Int("worker_id", workerID).
		Str("task", task.Name).
		Str("input", task.Request.InputKind()).
		Msg("Processing task")

	o := p.run(ctx, task)
	code := outcome.ExitCode(o)

	event := logger.Logger.Info()
	if code != outcome.ExitSuccess {
		event = logger.Logger.Error()
	}
	event.
		Int("worker_id", workerID).
		Str("task", task.Name).
		Str("job_id", string(o.JobID)).
		Int("exit_code", code).
		Msg("Task completed")

	return Result{
		Task:     task,
		Outcome:  o,
		ExitCode: code,
		Duration: time.Since(startTime),
	}
}

// FirstFailure returns the exit code of the first failed result in task
// order, or ExitSuccess when every run succeeded.
func FirstFailure(results []Result) int {
	for _, r := range results {
		if r.ExitCode != outcome.ExitSuccess {
			return r.ExitCode
		}
	}
	return outcome.ExitSuccess
}

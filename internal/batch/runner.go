// Package batch implements the Batch runner (A7): it parallelises
// location runs across many events, one Event/Stepper pair per task
// (spec.md §5), bounded by a weighted semaphore. Grounded on the
// teacher's internal/referee/validation_engine.go semaphore-gated job
// pattern.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"hypolocator/internal/config"
	"hypolocator/internal/locate"
)

// Job is one event to locate.
type Job struct {
	Input locate.Input
}

// Result pairs a job's input id with its outcome; Err is set instead of
// Output when Locate itself failed at the boundary (bad input, unreadable
// provider).
type Result struct {
	EventID string
	Output  locate.Output
	Err     error
}

// Runner processes many Locate jobs concurrently, weighted by a single
// semaphore (no phase-specific weighting is needed here -- unlike the
// teacher's three-phase validation engine, every location run costs the
// same).
type Runner struct {
	cfg  *config.Config
	deps locate.Deps
	sem  *semaphore.Weighted
}

// NewRunner creates a Runner allowing at most maxConcurrent location runs
// in flight at once.
func NewRunner(cfg *config.Config, deps locate.Deps, maxConcurrent int64) *Runner {
	return &Runner{
		cfg:  cfg,
		deps: deps,
		sem:  semaphore.NewWeighted(maxConcurrent),
	}
}

// Run locates every job, blocking until all complete or ctx is cancelled.
// Results are returned in the same order as jobs, regardless of
// completion order.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	done := make(chan int, len(jobs))

	for i, job := range jobs {
		i, job := i, job
		if err := r.sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{EventID: job.Input.ID, Err: fmt.Errorf("acquire semaphore: %w", err)}
			done <- i
			continue
		}
		go func() {
			defer r.sem.Release(1)
			out, err := locate.Locate(r.cfg, r.deps, job.Input)
			results[i] = Result{EventID: job.Input.ID, Output: out, Err: err}
			done <- i
		}()
	}

	for range jobs {
		<-done
	}
	return results
}

// Package pipeline runs analysis jobs in-process for the all-in-one server.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"bodymetrics/internal/analyzer"
	"bodymetrics/internal/queue"
)

// ErrBusy is returned when the in-process queue is full.
var ErrBusy = errors.New("analysis queue is full")

// Runner executes analysis jobs on a single background goroutine. It stands in
// for the asynq worker when everything runs inside one process.
type Runner struct {
	pipeline *analyzer.Pipeline
	jobs     chan queue.AnalyzeJob
}

// NewRunner builds a Runner with a small dispatch buffer.
func NewRunner(p *analyzer.Pipeline) *Runner {
	return &Runner{
		pipeline: p,
		jobs:     make(chan queue.AnalyzeJob, 4),
	}
}

// Start consumes jobs until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-r.jobs:
				if err := r.pipeline.Run(ctx, job); err != nil {
					slog.Error("analysis job failed", "error", err, "session_id", job.SessionID)
				}
			}
		}
	}()
}

// Dispatch hands one job to the background goroutine without blocking.
func (r *Runner) Dispatch(ctx context.Context, job queue.AnalyzeJob) error {
	select {
	case r.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBusy
	}
}

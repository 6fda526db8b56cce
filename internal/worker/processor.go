// Package worker adapts the analysis pipeline to asynq task handling.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"bodymetrics/internal/analyzer"
	"bodymetrics/internal/queue"
)

// Processor handles queued analysis tasks.
type Processor struct {
	pipeline *analyzer.Pipeline
}

// NewProcessor wraps the pipeline for asynq.
func NewProcessor(p *analyzer.Pipeline) *Processor {
	return &Processor{pipeline: p}
}

// Handler returns the task mux for the asynq server.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.AnalyzeSessionTask, p.handleAnalyze)
	return mux
}

func (p *Processor) handleAnalyze(ctx context.Context, task *asynq.Task) error {
	var job queue.AnalyzeJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("unmarshal analyze payload: %w", err)
	}
	return p.pipeline.Run(ctx, job)
}

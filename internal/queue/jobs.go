// Package queue defines the analysis job and its asynq wiring.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// AnalyzeSessionTask is scheduled each time a user triggers analysis.
	AnalyzeSessionTask = "session:analyze"
)

// AnalyzeJob captures everything the worker needs for one analysis attempt.
// MediaID pins the attempt to the file that was current at dispatch time so
// stale responses can be discarded if the user replaces or removes the file.
type AnalyzeJob struct {
	SessionID   string `json:"session_id"`
	MediaID     string `json:"media_id"`
	ObjectKey   string `json:"object_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Height      string `json:"height"`
	Weight      string `json:"weight"`
	Gender      string `json:"gender"`
}

// Enqueuer dispatches analysis jobs onto asynq for the split deployment.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// Dispatch enqueues one analysis job. MaxRetry is zero: a failed attempt is a
// terminal state for that attempt and only a new user action retries.
func (e *Enqueuer) Dispatch(ctx context.Context, job AnalyzeJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(AnalyzeSessionTask, data)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue analyze task: %w", err)
	}
	return nil
}

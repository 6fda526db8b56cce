package analyzer

import (
	"context"
	"errors"
	"log/slog"

	"bodymetrics/internal/model"
	"bodymetrics/internal/queue"
	"bodymetrics/internal/staging"
	"bodymetrics/internal/store"
)

// Pipeline runs one dispatched analysis attempt end to end: read the staged
// bytes, call the remote service, record the outcome. Both the in-process
// runner and the asynq worker drive it.
type Pipeline struct {
	store  store.Store
	stager staging.Stager
	client *Client
}

// NewPipeline wires the pipeline dependencies.
func NewPipeline(st store.Store, stager staging.Stager, client *Client) *Pipeline {
	return &Pipeline{store: st, stager: stager, client: client}
}

// Run executes one attempt. The outcome transitions are conditional on the
// job's media still being current; a superseded or removed file means the
// response is discarded without touching session state.
func (p *Pipeline) Run(ctx context.Context, job queue.AnalyzeJob) error {
	media, err := p.stager.Open(ctx, job.ObjectKey)
	if err != nil {
		slog.Error("open staged media failed", "error", err, "session_id", job.SessionID)
		return p.fail(ctx, job, FallbackMessage)
	}
	defer media.Close()

	profile := model.PersonalProfile{
		HeightCm: job.Height,
		WeightKg: job.Weight,
		Gender:   model.Gender(job.Gender),
	}
	result, err := p.client.Analyze(ctx, media, job.FileName, job.ContentType, profile)
	if err != nil {
		slog.Warn("analysis attempt failed", "error", err, "session_id", job.SessionID, "media_id", job.MediaID)
		return p.fail(ctx, job, err.Error())
	}

	if err := p.store.MarkAnalyzed(ctx, job.SessionID, job.MediaID, result); err != nil {
		if errors.Is(err, store.ErrStale) || errors.Is(err, store.ErrNotFound) {
			slog.Debug("discarding stale analysis result", "session_id", job.SessionID, "media_id", job.MediaID)
			return nil
		}
		return err
	}
	slog.Info("session analyzed", "session_id", job.SessionID, "media_id", job.MediaID, "bmi", result.BMI)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, job queue.AnalyzeJob, message string) error {
	err := p.store.MarkAnalysisFailed(ctx, job.SessionID, job.MediaID, message)
	if err != nil {
		if errors.Is(err, store.ErrStale) || errors.Is(err, store.ErrNotFound) {
			slog.Debug("discarding stale analysis failure", "session_id", job.SessionID, "media_id", job.MediaID)
			return nil
		}
		return err
	}
	return nil
}

// Package intake owns the media-intake state machine: candidate validation,
// the staged upload run and removal.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bodymetrics/internal/config"
	"bodymetrics/internal/model"
	"bodymetrics/internal/staging"
	"bodymetrics/internal/store"
)

// Controller accepts a single candidate file per session, validates it and
// drives the visible upload progress before exposing the file as ready.
//
// The progress run is a fixed-interval simulation: the real network transfer
// happens later, during analysis submission, so reaching ready only means the
// bytes are staged and the candidate passed validation.
type Controller struct {
	store   store.Store
	stager  staging.Stager
	allowed map[string]bool
	tick    time.Duration
	step    int

	mu   sync.Mutex
	runs map[string]*uploadRun
}

type uploadRun struct {
	cancel context.CancelFunc
}

// NewController builds a Controller from the configured validation boundary.
func NewController(st store.Store, stager staging.Stager, cfg *config.Config) *Controller {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = true
	}
	return &Controller{
		store:   st,
		stager:  stager,
		allowed: allowed,
		tick:    cfg.UploadTick,
		step:    cfg.UploadStep,
		runs:    make(map[string]*uploadRun),
	}
}

// SubmitCandidate validates and stages one candidate file. Validation runs
// before any session state changes: an oversized or unsupported candidate is
// recorded as a rejection notice and a previously ready file stays untouched.
// On success the previous upload run (if any) is superseded, analysis state is
// reset and a new progress run begins at 0.
func (c *Controller) SubmitCandidate(ctx context.Context, sessionID, name, declaredType string, r io.Reader) (*model.MediaFile, error) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := uuid.NewString()
	staged, err := c.stager.Stage(ctx, key, r)
	if err != nil {
		if errors.Is(err, staging.ErrTooLarge) {
			return nil, c.reject(ctx, sessionID, model.ErrFileTooLarge)
		}
		return nil, fmt.Errorf("stage candidate: %w", err)
	}

	contentType := declaredType
	if contentType == "" {
		contentType = staged.SniffedType
	}
	if !c.allowed[contentType] {
		if rmErr := c.stager.Remove(ctx, key); rmErr != nil {
			slog.Warn("remove rejected staged object failed", "error", rmErr, "key", key)
		}
		return nil, c.reject(ctx, sessionID, model.ErrUnsupportedType)
	}

	media := model.MediaFile{
		ID:          uuid.NewString(),
		Name:        name,
		Size:        staged.Size,
		ContentType: contentType,
		ObjectKey:   key,
	}
	if media.Name == "" {
		media.Name = "upload-" + media.ID
	}

	c.mu.Lock()
	if prev, ok := c.runs[sessionID]; ok {
		prev.cancel()
		delete(c.runs, sessionID)
	}
	if err := c.store.BeginUpload(ctx, sessionID, media); err != nil {
		c.mu.Unlock()
		if rmErr := c.stager.Remove(ctx, key); rmErr != nil {
			slog.Warn("remove orphaned staged object failed", "error", rmErr, "key", key)
		}
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	run := &uploadRun{cancel: cancel}
	c.runs[sessionID] = run
	c.mu.Unlock()

	// The superseded file's bytes are no longer reachable from any state.
	if sess.Media != nil && sess.Media.ObjectKey != key {
		if rmErr := c.stager.Remove(ctx, sess.Media.ObjectKey); rmErr != nil {
			slog.Warn("remove superseded staged object failed", "error", rmErr, "key", sess.Media.ObjectKey)
		}
	}

	go c.advance(runCtx, sessionID, media.ID, run)

	slog.Info("candidate accepted", "session_id", sessionID, "media_id", media.ID,
		"name", media.Name, "size", media.Size, "content_type", media.ContentType)
	return &media, nil
}

// RemoveCurrent clears the current file and resets both lifecycles. Removing
// from an already-empty session is not an error.
func (c *Controller) RemoveCurrent(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if run, ok := c.runs[sessionID]; ok {
		run.cancel()
		delete(c.runs, sessionID)
	}
	c.mu.Unlock()

	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.store.ClearMedia(ctx, sessionID); err != nil {
		return err
	}
	if sess.Media != nil {
		if rmErr := c.stager.Remove(ctx, sess.Media.ObjectKey); rmErr != nil {
			slog.Warn("remove staged object failed", "error", rmErr, "key", sess.Media.ObjectKey)
		}
	}
	slog.Info("media removed", "session_id", sessionID)
	return nil
}

// advance drives one progress run. Progress is monotonic within the run and
// the run dies silently when superseded or removed: the store refuses stale
// updates and the run context is cancelled.
func (c *Controller) advance(ctx context.Context, sessionID, mediaID string, self *uploadRun) {
	defer func() {
		c.mu.Lock()
		if c.runs[sessionID] == self {
			delete(c.runs, sessionID)
		}
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	progress := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress += c.step
			if progress >= 100 {
				if err := c.store.MarkReady(ctx, sessionID, mediaID); err != nil && !errors.Is(err, store.ErrStale) {
					slog.Warn("mark ready failed", "error", err, "session_id", sessionID)
				}
				return
			}
			if err := c.store.SetUploadProgress(ctx, sessionID, mediaID, progress); err != nil {
				if !errors.Is(err, store.ErrStale) {
					slog.Warn("set progress failed", "error", err, "session_id", sessionID)
				}
				return
			}
		}
	}
}

// reject records the rejection notice and hands the validation error back to
// the caller for immediate surfacing.
func (c *Controller) reject(ctx context.Context, sessionID string, cause error) error {
	if err := c.store.RejectIntake(ctx, sessionID, cause.Error()); err != nil {
		slog.Warn("record rejection failed", "error", err, "session_id", sessionID)
	}
	slog.Info("candidate rejected", "session_id", sessionID, "reason", cause.Error())
	return cause
}

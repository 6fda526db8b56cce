// Package store persists live session state. Two implementations exist: an
// in-memory store for the all-in-one server and a Postgres store for the
// api + worker split. Only the current session state is kept; removing a
// session's media clears it and no history is retained.
package store

import (
	"context"
	"errors"

	"bodymetrics/internal/model"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when a conditional transition finds the
	// session in an incompatible state, e.g. analyze while not ready.
	ErrConflict = errors.New("session state conflict")
	// ErrStale is returned when a transition references a media file that is
	// no longer the session's current one. Callers discard the attempt.
	ErrStale = errors.New("media superseded")
)

// Store is the set of session transitions used by the intake controller, the
// analysis pipeline and the HTTP handlers. Every mutation is atomic with
// respect to its stated precondition.
type Store interface {
	Create(ctx context.Context, sess *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)

	UpdateProfile(ctx context.Context, id string, profile model.PersonalProfile) error

	// BeginUpload installs media as the session's current file, resets
	// intake to uploading(0), clears any rejection notice and resets the
	// analysis state and result.
	BeginUpload(ctx context.Context, id string, media model.MediaFile) error
	// SetUploadProgress advances progress for the given media while it is
	// uploading. Progress never decreases within a run.
	SetUploadProgress(ctx context.Context, id, mediaID string, progress int) error
	// MarkReady completes the upload run for the given media.
	MarkReady(ctx context.Context, id, mediaID string) error
	// RejectIntake records a dismissible rejection notice. A previously
	// ready file is left untouched; without one the intake state itself
	// becomes rejected.
	RejectIntake(ctx context.Context, id, reason string) error
	// ClearMedia removes the current file and resets both lifecycles.
	ClearMedia(ctx context.Context, id string) error

	// MarkAnalyzing atomically enters the analyzing state. It requires the
	// given media to be current and ready and no analysis to be outstanding.
	MarkAnalyzing(ctx context.Context, id, mediaID string) error
	// MarkAnalyzed records a successful result for the given media.
	MarkAnalyzed(ctx context.Context, id, mediaID string, result *model.MeasurementResult) error
	// MarkAnalysisFailed records a failed attempt for the given media.
	MarkAnalysisFailed(ctx context.Context, id, mediaID, message string) error
}

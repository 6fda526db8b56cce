package store

import (
	"context"
	"sync"
	"time"

	"bodymetrics/internal/model"
)

// MemoryStore keeps sessions in a mutex-guarded map. It backs the all-in-one
// server and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*model.Session)}
}

func (m *MemoryStore) Create(_ context.Context, sess *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	stored := cloneSession(sess)
	m.sessions[sess.ID] = stored
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id string, profile model.PersonalProfile) error {
	return m.mutate(id, func(sess *model.Session) error {
		sess.Profile = profile
		return nil
	})
}

func (m *MemoryStore) BeginUpload(_ context.Context, id string, media model.MediaFile) error {
	return m.mutate(id, func(sess *model.Session) error {
		media := media
		sess.Media = &media
		sess.Intake = model.IntakeState{Status: model.IntakeUploading, Progress: 0}
		sess.Analysis = model.AnalysisState{Status: model.AnalysisNotAnalyzed}
		sess.Result = nil
		return nil
	})
}

func (m *MemoryStore) SetUploadProgress(_ context.Context, id, mediaID string, progress int) error {
	return m.mutate(id, func(sess *model.Session) error {
		if sess.Media == nil || sess.Media.ID != mediaID {
			return ErrStale
		}
		if sess.Intake.Status != model.IntakeUploading {
			return ErrStale
		}
		if progress > sess.Intake.Progress {
			sess.Intake.Progress = progress
		}
		return nil
	})
}

func (m *MemoryStore) MarkReady(_ context.Context, id, mediaID string) error {
	return m.mutate(id, func(sess *model.Session) error {
		if sess.Media == nil || sess.Media.ID != mediaID || sess.Intake.Status != model.IntakeUploading {
			return ErrStale
		}
		sess.Intake = model.IntakeState{Status: model.IntakeReady, Progress: 100}
		return nil
	})
}

func (m *MemoryStore) RejectIntake(_ context.Context, id, reason string) error {
	return m.mutate(id, func(sess *model.Session) error {
		sess.Intake.Rejection = reason
		// A ready or in-flight file is left untouched.
		if sess.Media == nil && sess.Intake.Status != model.IntakeUploading {
			sess.Intake.Status = model.IntakeRejected
			sess.Intake.Progress = 0
		}
		return nil
	})
}

func (m *MemoryStore) ClearMedia(_ context.Context, id string) error {
	return m.mutate(id, func(sess *model.Session) error {
		sess.Media = nil
		sess.Intake = model.IntakeState{Status: model.IntakeIdle}
		sess.Analysis = model.AnalysisState{Status: model.AnalysisNotAnalyzed}
		sess.Result = nil
		return nil
	})
}

func (m *MemoryStore) MarkAnalyzing(_ context.Context, id, mediaID string) error {
	return m.mutate(id, func(sess *model.Session) error {
		if sess.Media == nil || sess.Media.ID != mediaID {
			return ErrConflict
		}
		if sess.Intake.Status != model.IntakeReady || sess.Analysis.Status == model.AnalysisAnalyzing {
			return ErrConflict
		}
		sess.Analysis = model.AnalysisState{Status: model.AnalysisAnalyzing}
		sess.Result = nil
		return nil
	})
}

func (m *MemoryStore) MarkAnalyzed(_ context.Context, id, mediaID string, result *model.MeasurementResult) error {
	return m.mutate(id, func(sess *model.Session) error {
		if sess.Media == nil || sess.Media.ID != mediaID {
			return ErrStale
		}
		res := *result
		sess.Analysis = model.AnalysisState{Status: model.AnalysisAnalyzed}
		sess.Result = &res
		return nil
	})
}

func (m *MemoryStore) MarkAnalysisFailed(_ context.Context, id, mediaID, message string) error {
	return m.mutate(id, func(sess *model.Session) error {
		if sess.Media == nil || sess.Media.ID != mediaID {
			return ErrStale
		}
		sess.Analysis = model.AnalysisState{Status: model.AnalysisFailed, Message: message}
		sess.Result = nil
		return nil
	})
}

func (m *MemoryStore) mutate(id string, fn func(*model.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(sess); err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneSession(sess *model.Session) *model.Session {
	out := *sess
	if sess.Media != nil {
		media := *sess.Media
		out.Media = &media
	}
	if sess.Result != nil {
		res := *sess.Result
		out.Result = &res
	}
	return &out
}

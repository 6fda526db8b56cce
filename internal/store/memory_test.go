package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodymetrics/internal/model"
	"bodymetrics/internal/store"
)

func newSession(t *testing.T, st *store.MemoryStore) *model.Session {
	t.Helper()
	sess := model.NewSession("sess-1", model.DefaultProfile())
	require.NoError(t, st.Create(context.Background(), sess))
	return sess
}

func media(id string) model.MediaFile {
	return model.MediaFile{
		ID:          id,
		Name:        "walk.mp4",
		Size:        5 << 20,
		ContentType: "video/mp4",
		ObjectKey:   "key-" + id,
	}
}

func TestMemoryStore_GetUnknownSession(t *testing.T) {
	st := store.NewMemoryStore()

	_, err := st.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)

	first, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	first.Profile.HeightCm = "999"

	second, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "170.00", second.Profile.HeightCm)
}

func TestMemoryStore_UploadLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)

	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.SetUploadProgress(ctx, "sess-1", "m1", 40))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.IntakeReady, sess.Intake.Status)
	assert.Equal(t, 100, sess.Intake.Progress)
	assert.Equal(t, model.AnalysisNotAnalyzed, sess.Analysis.Status)
}

func TestMemoryStore_ProgressNeverDecreases(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))

	require.NoError(t, st.SetUploadProgress(ctx, "sess-1", "m1", 60))
	require.NoError(t, st.SetUploadProgress(ctx, "sess-1", "m1", 30))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 60, sess.Intake.Progress)
}

func TestMemoryStore_StaleProgressRejected(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m2")))

	assert.ErrorIs(t, st.SetUploadProgress(ctx, "sess-1", "m1", 50), store.ErrStale)
	assert.ErrorIs(t, st.MarkReady(ctx, "sess-1", "m1"), store.ErrStale)
}

func TestMemoryStore_BeginUploadResetsAnalysis(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalyzing(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalyzed(ctx, "sess-1", "m1", &model.MeasurementResult{Gender: "Male", BMI: 22}))

	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m2")))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.IntakeUploading, sess.Intake.Status)
	assert.Equal(t, 0, sess.Intake.Progress)
	assert.Equal(t, model.AnalysisNotAnalyzed, sess.Analysis.Status)
	assert.Nil(t, sess.Result)
}

func TestMemoryStore_RejectKeepsReadyFile(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))

	require.NoError(t, st.RejectIntake(ctx, "sess-1", model.ErrFileTooLarge.Error()))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.IntakeReady, sess.Intake.Status)
	require.NotNil(t, sess.Media)
	assert.Equal(t, "m1", sess.Media.ID)
	assert.Equal(t, model.ErrFileTooLarge.Error(), sess.Intake.Rejection)
}

func TestMemoryStore_RejectWithoutFile(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)

	require.NoError(t, st.RejectIntake(ctx, "sess-1", model.ErrUnsupportedType.Error()))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.IntakeRejected, sess.Intake.Status)
	assert.Equal(t, model.ErrUnsupportedType.Error(), sess.Intake.Rejection)
}

func TestMemoryStore_ClearMediaResetsEverything(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalyzing(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalyzed(ctx, "sess-1", "m1", &model.MeasurementResult{Gender: "Male", BMI: 22}))

	require.NoError(t, st.ClearMedia(ctx, "sess-1"))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, sess.Media)
	assert.Equal(t, model.IntakeIdle, sess.Intake.Status)
	assert.Equal(t, 0, sess.Intake.Progress)
	assert.Equal(t, model.AnalysisNotAnalyzed, sess.Analysis.Status)
	assert.Nil(t, sess.Result)
}

func TestMemoryStore_MarkAnalyzingRequiresReady(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))

	assert.ErrorIs(t, st.MarkAnalyzing(ctx, "sess-1", "m1"), store.ErrConflict)
}

func TestMemoryStore_MarkAnalyzingRefusesSecondAttempt(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))

	require.NoError(t, st.MarkAnalyzing(ctx, "sess-1", "m1"))

	assert.ErrorIs(t, st.MarkAnalyzing(ctx, "sess-1", "m1"), store.ErrConflict)
}

func TestMemoryStore_StaleOutcomeDiscarded(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalyzing(ctx, "sess-1", "m1"))

	// The file is replaced while the first attempt is in flight.
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m2")))

	assert.ErrorIs(t, st.MarkAnalyzed(ctx, "sess-1", "m1", &model.MeasurementResult{Gender: "Male", BMI: 22}), store.ErrStale)
	assert.ErrorIs(t, st.MarkAnalysisFailed(ctx, "sess-1", "m1", "boom"), store.ErrStale)

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisNotAnalyzed, sess.Analysis.Status)
	assert.Nil(t, sess.Result)
}

func TestMemoryStore_AnalysisOutcomes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newSession(t, st)
	require.NoError(t, st.BeginUpload(ctx, "sess-1", media("m1")))
	require.NoError(t, st.MarkReady(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalyzing(ctx, "sess-1", "m1"))

	result := &model.MeasurementResult{Gender: "Female", Chest: 100.2, BMI: 24.7}
	require.NoError(t, st.MarkAnalyzed(ctx, "sess-1", "m1", result))

	sess, err := st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisAnalyzed, sess.Analysis.Status)
	require.NotNil(t, sess.Result)
	assert.Equal(t, *result, *sess.Result)

	// A failure after a new attempt replaces the result with the message.
	require.NoError(t, st.MarkAnalyzing(ctx, "sess-1", "m1"))
	require.NoError(t, st.MarkAnalysisFailed(ctx, "sess-1", "m1", "service unavailable"))

	sess, err = st.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisFailed, sess.Analysis.Status)
	assert.Equal(t, "service unavailable", sess.Analysis.Message)
	assert.Nil(t, sess.Result)
}

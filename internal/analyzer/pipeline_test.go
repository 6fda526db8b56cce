package analyzer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodymetrics/internal/analyzer"
	"bodymetrics/internal/model"
	"bodymetrics/internal/queue"
	"bodymetrics/internal/staging"
	"bodymetrics/internal/store"
)

func stageSession(t *testing.T, st *store.MemoryStore, stager *staging.LocalStager, mediaID string) queue.AnalyzeJob {
	t.Helper()
	ctx := context.Background()
	sess := model.NewSession("sess-1", model.DefaultProfile())
	require.NoError(t, st.Create(ctx, sess))

	_, err := stager.Stage(ctx, "key-"+mediaID, strings.NewReader("video bytes"))
	require.NoError(t, err)
	media := model.MediaFile{
		ID:          mediaID,
		Name:        "walk.mp4",
		Size:        11,
		ContentType: "video/mp4",
		ObjectKey:   "key-" + mediaID,
	}
	require.NoError(t, st.BeginUpload(ctx, sess.ID, media))
	require.NoError(t, st.MarkReady(ctx, sess.ID, mediaID))
	require.NoError(t, st.MarkAnalyzing(ctx, sess.ID, mediaID))

	return queue.AnalyzeJob{
		SessionID:   sess.ID,
		MediaID:     mediaID,
		ObjectKey:   media.ObjectKey,
		FileName:    media.Name,
		ContentType: media.ContentType,
		Height:      sess.Profile.HeightCm,
		Weight:      sess.Profile.WeightKg,
		Gender:      string(sess.Profile.Gender),
	}
}

func TestPipeline_RecordsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(validResponse))
	}))
	defer srv.Close()

	ctx := context.Background()
	st := store.NewMemoryStore()
	stager, err := staging.NewLocalStager(t.TempDir(), 1<<20)
	require.NoError(t, err)
	job := stageSession(t, st, stager, "m1")

	p := analyzer.NewPipeline(st, stager, analyzer.NewClient(srv.URL, time.Second))
	require.NoError(t, p.Run(ctx, job))

	sess, err := st.Get(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisAnalyzed, sess.Analysis.Status)
	require.NotNil(t, sess.Result)
	assert.Equal(t, 24.7, sess.Result.BMI)
}

func TestPipeline_RecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	st := store.NewMemoryStore()
	stager, err := staging.NewLocalStager(t.TempDir(), 1<<20)
	require.NoError(t, err)
	job := stageSession(t, st, stager, "m1")

	p := analyzer.NewPipeline(st, stager, analyzer.NewClient(srv.URL, time.Second))
	require.NoError(t, p.Run(ctx, job))

	sess, err := st.Get(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisFailed, sess.Analysis.Status)
	assert.Contains(t, sess.Analysis.Message, analyzer.FallbackMessage)
	// The failed attempt leaves the file ready for another try.
	assert.Equal(t, model.IntakeReady, sess.Intake.Status)
}

func TestPipeline_DiscardsStaleOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(validResponse))
	}))
	defer srv.Close()

	ctx := context.Background()
	st := store.NewMemoryStore()
	stager, err := staging.NewLocalStager(t.TempDir(), 1<<20)
	require.NoError(t, err)
	job := stageSession(t, st, stager, "m1")

	// The file is replaced between dispatch and completion.
	replacement := model.MediaFile{ID: "m2", Name: "new.mp4", ObjectKey: "key-m2"}
	require.NoError(t, st.BeginUpload(ctx, job.SessionID, replacement))

	p := analyzer.NewPipeline(st, stager, analyzer.NewClient(srv.URL, time.Second))
	require.NoError(t, p.Run(ctx, job))

	sess, err := st.Get(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisNotAnalyzed, sess.Analysis.Status)
	assert.Nil(t, sess.Result)
	assert.Equal(t, "m2", sess.Media.ID)
}

func TestPipeline_MissingObjectFailsAttempt(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	stager, err := staging.NewLocalStager(t.TempDir(), 1<<20)
	require.NoError(t, err)
	job := stageSession(t, st, stager, "m1")
	require.NoError(t, stager.Remove(ctx, job.ObjectKey))

	p := analyzer.NewPipeline(st, stager, analyzer.NewClient("http://localhost:0", time.Second))
	require.NoError(t, p.Run(ctx, job))

	sess, err := st.Get(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisFailed, sess.Analysis.Status)
	assert.Equal(t, analyzer.FallbackMessage, sess.Analysis.Message)
}

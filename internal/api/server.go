// Package api exposes the session, intake and analysis endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bodymetrics/internal/config"
	"bodymetrics/internal/intake"
	"bodymetrics/internal/measure"
	"bodymetrics/internal/model"
	"bodymetrics/internal/queue"
	"bodymetrics/internal/store"
)

// reportPrompt is shown in the session view until a result exists.
const reportPrompt = "Upload a video and click 'Analyze' to see your measurements"

// Dispatcher hands an analysis job to whatever executes it: the in-process
// runner in all-in-one mode, the asynq enqueuer in split mode.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.AnalyzeJob) error
}

// Server exposes HTTP endpoints for session state, media intake and analysis.
type Server struct {
	cfg      *config.Config
	store    store.Store
	intake   *intake.Controller
	dispatch Dispatcher
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, st store.Store, ctrl *intake.Controller, dispatch Dispatcher) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		intake:   ctrl,
		dispatch: dispatch,
	}
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionRoute)
	return corsMiddleware(loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	slog.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleSessionRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleSession(w, r, id)
		return
	}
	switch parts[1] {
	case "profile":
		if len(parts) == 3 && parts[2] == "step" {
			s.handleProfileStep(w, r, id)
			return
		}
		s.handleProfile(w, r, id)
	case "media":
		s.handleMedia(w, r, id)
	case "analyze":
		s.handleAnalyze(w, r, id)
	case "report":
		s.handleReport(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	profile := model.DefaultProfile()
	if r.ContentLength != 0 {
		var body model.PersonalProfile
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", "invalid profile body")
			return
		}
		if body.HeightCm != "" {
			profile.HeightCm = body.HeightCm
		}
		if body.WeightKg != "" {
			profile.WeightKg = body.WeightKg
		}
		if body.Gender != "" {
			if !body.Gender.Valid() {
				respondError(w, http.StatusBadRequest, "bad_request", "invalid gender")
				return
			}
			profile.Gender = body.Gender
		}
	}
	sess := model.NewSession(uuid.NewString(), profile)
	if err := s.store.Create(r.Context(), sess); err != nil {
		slog.Error("create session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}
	respondJSON(w, http.StatusCreated, s.view(sess))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var profile model.PersonalProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid profile body")
		return
	}
	if !profile.Gender.Valid() {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid gender")
		return
	}
	if err := s.store.UpdateProfile(r.Context(), id, profile); err != nil {
		s.respondStoreError(w, err)
		return
	}
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.view(sess))
}

type profileStepRequest struct {
	Field string  `json:"field"`
	Delta float64 `json:"delta"`
}

func (s *Server) handleProfileStep(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req profileStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid step body")
		return
	}
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	profile := sess.Profile
	switch req.Field {
	case "height":
		stepped, err := measure.StepDecimal(profile.HeightCm, req.Delta)
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		profile.HeightCm = stepped
	case "weight":
		stepped, err := measure.StepDecimal(profile.WeightKg, req.Delta)
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		profile.WeightKg = stepped
	default:
		respondError(w, http.StatusBadRequest, "bad_request", "field must be height or weight")
		return
	}
	if err := s.store.UpdateProfile(r.Context(), id, profile); err != nil {
		s.respondStoreError(w, err)
		return
	}
	sess.Profile = profile
	respondJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r, id)
	case http.MethodDelete:
		s.handleRemoveMedia(w, r, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "missing file part")
		return
	}
	defer part.Close()

	media, err := s.intake.SubmitCandidate(ctx, id, part.FileName(), part.Header.Get("Content-Type"), part)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			respondError(w, http.StatusBadRequest, "file_too_large", err.Error())
		case errors.Is(err, model.ErrUnsupportedType):
			respondError(w, http.StatusBadRequest, "unsupported_type", err.Error())
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "not_found", err.Error())
		default:
			slog.Error("submit candidate failed", "error", err, "session_id", id)
			respondError(w, http.StatusInternalServerError, "internal", "failed to accept file")
		}
		return
	}
	respondJSON(w, http.StatusAccepted, mediaView{
		ID:            media.ID,
		Name:          media.Name,
		Size:          media.Size,
		FormattedSize: measure.FormatSize(media.Size),
		ContentType:   media.ContentType,
	})
}

func (s *Server) handleRemoveMedia(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.intake.RemoveCurrent(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ctx := r.Context()
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if sess.Media == nil || sess.Intake.Status != model.IntakeReady {
		respondError(w, http.StatusConflict, "not_ready", "no ready file to analyze")
		return
	}
	mediaID := sess.Media.ID
	if err := s.store.MarkAnalyzing(ctx, id, mediaID); err != nil {
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrStale) {
			respondError(w, http.StatusConflict, "conflict", "analysis already in progress")
			return
		}
		s.respondStoreError(w, err)
		return
	}
	job := queue.AnalyzeJob{
		SessionID:   id,
		MediaID:     mediaID,
		ObjectKey:   sess.Media.ObjectKey,
		FileName:    sess.Media.Name,
		ContentType: sess.Media.ContentType,
		Height:      sess.Profile.HeightCm,
		Weight:      sess.Profile.WeightKg,
		Gender:      string(sess.Profile.Gender),
	}
	if err := s.dispatch.Dispatch(ctx, job); err != nil {
		slog.Error("dispatch analysis failed", "error", err, "session_id", id)
		if failErr := s.store.MarkAnalysisFailed(ctx, id, mediaID, "could not schedule analysis, please try again"); failErr != nil {
			slog.Warn("record dispatch failure failed", "error", failErr, "session_id", id)
		}
		respondError(w, http.StatusInternalServerError, "internal", "failed to schedule analysis")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":   string(model.AnalysisAnalyzing),
		"media_id": mediaID,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if sess.Analysis.Status != model.AnalysisAnalyzed || sess.Result == nil {
		respondError(w, http.StatusConflict, "not_analyzed", reportPrompt)
		return
	}
	report, err := measure.BuildReport(sess.Result)
	if err != nil {
		slog.Error("build report failed", "error", err, "session_id", id)
		respondError(w, http.StatusInternalServerError, "internal", "stored result is invalid")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type mediaView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	FormattedSize string `json:"formattedSize"`
	ContentType   string `json:"contentType"`
}

type sessionView struct {
	ID       string                `json:"id"`
	Profile  model.PersonalProfile `json:"profile"`
	Media    *mediaView            `json:"media,omitempty"`
	Intake   model.IntakeState     `json:"intake"`
	Analysis model.AnalysisState   `json:"analysis"`
	Report   *measure.Report       `json:"report,omitempty"`
	Prompt   string                `json:"prompt,omitempty"`
}

// view assembles the polling payload. The report slot carries either the
// formatted result or the prompt shown before any analysis exists.
func (s *Server) view(sess *model.Session) sessionView {
	v := sessionView{
		ID:       sess.ID,
		Profile:  sess.Profile,
		Intake:   sess.Intake,
		Analysis: sess.Analysis,
	}
	if sess.Media != nil {
		v.Media = &mediaView{
			ID:            sess.Media.ID,
			Name:          sess.Media.Name,
			Size:          sess.Media.Size,
			FormattedSize: measure.FormatSize(sess.Media.Size),
			ContentType:   sess.Media.ContentType,
		}
	}
	if sess.Analysis.Status == model.AnalysisAnalyzed && sess.Result != nil {
		if report, err := measure.BuildReport(sess.Result); err == nil {
			v.Report = report
			return v
		}
	}
	v.Prompt = reportPrompt
	return v
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	default:
		slog.Error("store operation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"code": code, "error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

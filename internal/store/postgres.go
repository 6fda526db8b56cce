package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bodymetrics/internal/model"
)

// PostgresStore persists live sessions in a single table so the api and
// worker processes share state. Conditional UPDATE ... WHERE guards implement
// the same atomic transitions the memory store enforces under its mutex.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Create(ctx context.Context, sess *model.Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, height, weight, gender, intake_status, upload_progress, analysis_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sess.ID, sess.Profile.HeightCm, sess.Profile.WeightKg, sess.Profile.Gender,
		sess.Intake.Status, sess.Intake.Progress, sess.Analysis.Status, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var (
		sess             model.Session
		mediaID          sql.NullString
		mediaName        sql.NullString
		mediaSize        sql.NullInt64
		mediaContentType sql.NullString
		mediaObjectKey   sql.NullString
		rejection        sql.NullString
		analysisMessage  sql.NullString
		resultJSON       []byte
	)
	row := p.pool.QueryRow(ctx, `
		SELECT id, height, weight, gender,
			media_id, media_name, media_size, media_content_type, media_object_key,
			intake_status, upload_progress, rejection,
			analysis_status, analysis_message, result,
			created_at, updated_at
		FROM sessions WHERE id=$1
	`, id)
	err := row.Scan(&sess.ID, &sess.Profile.HeightCm, &sess.Profile.WeightKg, &sess.Profile.Gender,
		&mediaID, &mediaName, &mediaSize, &mediaContentType, &mediaObjectKey,
		&sess.Intake.Status, &sess.Intake.Progress, &rejection,
		&sess.Analysis.Status, &analysisMessage, &resultJSON,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if mediaID.Valid {
		sess.Media = &model.MediaFile{
			ID:          mediaID.String,
			Name:        mediaName.String,
			Size:        mediaSize.Int64,
			ContentType: mediaContentType.String,
			ObjectKey:   mediaObjectKey.String,
		}
	}
	sess.Intake.Rejection = rejection.String
	sess.Analysis.Message = analysisMessage.String
	if len(resultJSON) > 0 {
		var result model.MeasurementResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode stored result: %w", err)
		}
		sess.Result = &result
	}
	return &sess, nil
}

func (p *PostgresStore) UpdateProfile(ctx context.Context, id string, profile model.PersonalProfile) error {
	return p.exec(ctx, id, `
		UPDATE sessions SET height=$2, weight=$3, gender=$4, updated_at=$5 WHERE id=$1
	`, ErrNotFound, id, profile.HeightCm, profile.WeightKg, profile.Gender, time.Now().UTC())
}

func (p *PostgresStore) BeginUpload(ctx context.Context, id string, media model.MediaFile) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET media_id=$2, media_name=$3, media_size=$4, media_content_type=$5, media_object_key=$6,
			intake_status='uploading', upload_progress=0, rejection=NULL,
			analysis_status='not_analyzed', analysis_message=NULL, result=NULL,
			updated_at=$7
		WHERE id=$1
	`, ErrNotFound, id, media.ID, media.Name, media.Size, media.ContentType, media.ObjectKey, time.Now().UTC())
}

func (p *PostgresStore) SetUploadProgress(ctx context.Context, id, mediaID string, progress int) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET upload_progress=GREATEST(upload_progress,$3), updated_at=$4
		WHERE id=$1 AND media_id=$2 AND intake_status='uploading'
	`, ErrStale, id, mediaID, progress, time.Now().UTC())
}

func (p *PostgresStore) MarkReady(ctx context.Context, id, mediaID string) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET intake_status='ready', upload_progress=100, updated_at=$3
		WHERE id=$1 AND media_id=$2 AND intake_status='uploading'
	`, ErrStale, id, mediaID, time.Now().UTC())
}

func (p *PostgresStore) RejectIntake(ctx context.Context, id, reason string) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET rejection=$2,
			intake_status = CASE WHEN media_id IS NULL AND intake_status <> 'uploading' THEN 'rejected' ELSE intake_status END,
			upload_progress = CASE WHEN media_id IS NULL AND intake_status <> 'uploading' THEN 0 ELSE upload_progress END,
			updated_at=$3
		WHERE id=$1
	`, ErrNotFound, id, reason, time.Now().UTC())
}

func (p *PostgresStore) ClearMedia(ctx context.Context, id string) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET media_id=NULL, media_name=NULL, media_size=NULL, media_content_type=NULL, media_object_key=NULL,
			intake_status='idle', upload_progress=0, rejection=NULL,
			analysis_status='not_analyzed', analysis_message=NULL, result=NULL,
			updated_at=$2
		WHERE id=$1
	`, ErrNotFound, id, time.Now().UTC())
}

func (p *PostgresStore) MarkAnalyzing(ctx context.Context, id, mediaID string) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET analysis_status='analyzing', analysis_message=NULL, result=NULL, updated_at=$3
		WHERE id=$1 AND media_id=$2 AND intake_status='ready' AND analysis_status <> 'analyzing'
	`, ErrConflict, id, mediaID, time.Now().UTC())
}

func (p *PostgresStore) MarkAnalyzed(ctx context.Context, id, mediaID string, result *model.MeasurementResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return p.exec(ctx, id, `
		UPDATE sessions
		SET analysis_status='analyzed', analysis_message=NULL, result=$3, updated_at=$4
		WHERE id=$1 AND media_id=$2
	`, ErrStale, id, mediaID, encoded, time.Now().UTC())
}

func (p *PostgresStore) MarkAnalysisFailed(ctx context.Context, id, mediaID, message string) error {
	return p.exec(ctx, id, `
		UPDATE sessions
		SET analysis_status='failed', analysis_message=$3, result=NULL, updated_at=$4
		WHERE id=$1 AND media_id=$2
	`, ErrStale, id, mediaID, message, time.Now().UTC())
}

// exec runs a conditional update. When no row matched, unmatched tells the
// caller apart from a missing session.
func (p *PostgresStore) exec(ctx context.Context, id, stmt string, unmatched error, args ...any) error {
	tag, err := p.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return unmatched
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/recording/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// PgxStore persists recording artifacts in PostgreSQL through pgx. Artifacts
// are bytea blobs up to tens of megabytes, so the store goes through pgx's
// binary protocol rather than the text-based database/sql path the smaller
// stores use.
type PgxStore struct {
	pool *pgxpool.Pool
}

// NewPgx constructs a pgx-backed recording store.
func NewPgx(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pool: pool}
}

func (s *PgxStore) Save(ctx context.Context, recording *models.Recording) error {
	if recording == nil {
		return fmt.Errorf("recording is required")
	}
	query := `
		INSERT INTO recordings (id, user_id, incident_id, mime_kind, kind, duration_ms, size_bytes, payload, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var incidentID *string
	if recording.IncidentID != nil {
		v := recording.IncidentID.String()
		incidentID = &v
	}
	_, err := s.pool.Exec(ctx, query,
		recording.ID.String(),
		recording.UserID.String(),
		incidentID,
		recording.MimeKind,
		recording.Kind,
		recording.Duration.Milliseconds(),
		recording.SizeBytes,
		recording.Payload,
		recording.StartedAt,
		recording.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

func (s *PgxStore) Get(ctx context.Context, userID id.UserID, recordingID id.RecordingID) (*models.Recording, error) {
	query := `
		SELECT id, user_id, incident_id, mime_kind, kind, duration_ms, size_bytes, payload, started_at, created_at
		FROM recordings
		WHERE user_id = $1 AND id = $2
	`
	recording, err := scanRecording(s.pool.QueryRow(ctx, query, userID.String(), recordingID.String()), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return recording, nil
}

func (s *PgxStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Recording, error) {
	query := `
		SELECT id, user_id, incident_id, mime_kind, kind, duration_ms, size_bytes, started_at, created_at
		FROM recordings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*models.Recording
	for rows.Next() {
		recording, err := scanRecording(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, recording)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return recordings, nil
}

func (s *PgxStore) Delete(ctx context.Context, userID id.UserID, recordingID id.RecordingID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM recordings WHERE user_id = $1 AND id = $2`,
		userID.String(), recordingID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanRecording(row pgx.Row, withPayload bool) (*models.Recording, error) {
	var (
		recording  models.Recording
		rawID      string
		rawUserID  string
		incidentID *string
		durationMS int64
	)
	dest := []any{&rawID, &rawUserID, &incidentID, &recording.MimeKind, &recording.Kind, &durationMS, &recording.SizeBytes}
	if withPayload {
		dest = append(dest, &recording.Payload)
	}
	dest = append(dest, &recording.StartedAt, &recording.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	recID, err := id.ParseRecordingID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse recording id: %w", err)
	}
	recording.ID = recID
	recording.UserID = id.UserID(rawUserID)
	recording.Duration = time.Duration(durationMS) * time.Millisecond
	if incidentID != nil {
		incID, err := id.ParseIncidentID(*incidentID)
		if err != nil {
			return nil, fmt.Errorf("parse incident id: %w", err)
		}
		recording.IncidentID = &incID
	}
	return &recording, nil
}

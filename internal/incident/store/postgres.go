package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"aegis/internal/incident/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code raised by the partial unique
// index on (user_id) WHERE status = 'active'.
const uniqueViolation = "23505"

// PostgresStore persists incidents in PostgreSQL. The one-active invariant is
// enforced by the database index, so concurrent Begin calls cannot both win.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed incident store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, incident *models.Incident) error {
	if incident == nil {
		return fmt.Errorf("incident is required")
	}
	query := `
		INSERT INTO incidents (id, user_id, status, start_time, end_time, lat, lon, recording_ref, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		incident.ID.String(),
		incident.UserID.String(),
		string(incident.Status),
		incident.StartTime,
		nullTime(incident.EndTime),
		nullLat(incident.Location),
		nullLon(incident.Location),
		nullRecordingRef(incident.RecordingRef),
		nullString(incident.Device),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save incident: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, incident *models.Incident) error {
	if incident == nil {
		return fmt.Errorf("incident is required")
	}
	query := `
		UPDATE incidents
		SET status = $3, end_time = $4, lat = $5, lon = $6, recording_ref = $7, device = $8
		WHERE user_id = $2 AND id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		incident.ID.String(),
		incident.UserID.String(),
		string(incident.Status),
		nullTime(incident.EndTime),
		nullLat(incident.Location),
		nullLon(incident.Location),
		nullRecordingRef(incident.RecordingRef),
		nullString(incident.Device),
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID, incidentID id.IncidentID) (*models.Incident, error) {
	query := selectIncident + ` WHERE user_id = $1 AND id = $2`
	incident, err := scanIncident(s.db.QueryRowContext(ctx, query, userID.String(), incidentID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, userID id.UserID) (*models.Incident, error) {
	query := selectIncident + ` WHERE user_id = $1 AND status = 'active'`
	incident, err := scanIncident(s.db.QueryRowContext(ctx, query, userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active incident: %w", err)
	}
	return incident, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Incident, error) {
	query := selectIncident + ` WHERE user_id = $1 ORDER BY start_time DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, incidentID id.IncidentID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM incidents WHERE user_id = $1 AND id = $2`,
		userID.String(), incidentID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE user_id = $1`,
		userID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}

const selectIncident = `
	SELECT id, user_id, status, start_time, end_time, lat, lon, recording_ref, device
	FROM incidents
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	var (
		incident     models.Incident
		rawID        string
		rawUserID    string
		rawStatus    string
		endTime      sql.NullTime
		lat, lon     sql.NullFloat64
		recordingRef sql.NullString
		device       sql.NullString
	)
	err := row.Scan(&rawID, &rawUserID, &rawStatus, &incident.StartTime, &endTime, &lat, &lon, &recordingRef, &device)
	if err != nil {
		return nil, err
	}

	incidentID, err := id.ParseIncidentID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse incident id: %w", err)
	}
	incident.ID = incidentID
	incident.UserID = id.UserID(rawUserID)
	incident.Status = models.Status(rawStatus)
	incident.Device = device.String
	if endTime.Valid {
		incident.EndTime = &endTime.Time
	}
	if lat.Valid && lon.Valid {
		incident.Location = &models.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	if recordingRef.Valid {
		recID, err := id.ParseRecordingID(recordingRef.String)
		if err != nil {
			return nil, fmt.Errorf("parse recording ref: %w", err)
		}
		incident.RecordingRef = &recID
	}
	return &incident, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullLat(p *models.GeoPoint) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Lat, Valid: true}
}

func nullLon(p *models.GeoPoint) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Lon, Valid: true}
}

func nullRecordingRef(r *id.RecordingID) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: r.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

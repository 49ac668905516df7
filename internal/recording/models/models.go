package models

import (
	"time"

	id "aegis/pkg/domain"
)

// Recording is a persisted capture artifact. The payload is the concatenated
// slice buffer exactly as the capture controller produced it.
type Recording struct {
	ID         id.RecordingID `json:"id"`
	UserID     id.UserID      `json:"user_id"`
	IncidentID *id.IncidentID `json:"incident_id,omitempty"`
	MimeKind   string         `json:"mime_kind"`
	Kind       string         `json:"kind"`
	Duration   time.Duration  `json:"duration_ms"`
	SizeBytes  int64          `json:"size_bytes"`
	Payload    []byte         `json:"-"`
	StartedAt  time.Time      `json:"started_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

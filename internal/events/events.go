package events

import (
	"context"
	"time"

	id "aegis/pkg/domain"
)

// Type names a lifecycle event on the SOS stream.
type Type string

const (
	TypeSOSRaised         Type = "sos_raised"
	TypeRecordingStopped  Type = "recording_stopped"
	TypeIncidentCompleted Type = "incident_completed"
	TypeDeliverySummary   Type = "delivery_summary"
)

// Event is one entry on the incident lifecycle stream. Downstream consumers
// (monitoring dashboards, the realtime hub) key on UserID, so events for one
// user arrive in order.
type Event struct {
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      id.UserID `json:"user_id"`
	IncidentID  string    `json:"incident_id,omitempty"`
	RecordingID string    `json:"recording_id,omitempty"`
	AlertID     string    `json:"alert_id,omitempty"`

	// Delivery summary fields.
	TotalContacts    int `json:"total_contacts,omitempty"`
	SuccessfulAlerts int `json:"successful_alerts,omitempty"`

	// Recording fields.
	DurationMS int64 `json:"duration_ms,omitempty"`
	AutoStop   bool  `json:"auto_stop,omitempty"`
}

// Publisher emits lifecycle events. Emission is best effort everywhere it is
// called: a down broker must never block an SOS.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

package models

import (
	"time"

	id "aegis/pkg/domain"
)

// Status is the lifecycle state of an incident record.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// GeoPoint is the coordinate pair frozen into the record at trigger time.
// The live fix keeps moving; the record keeps where the SOS was raised.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Incident is one SOS episode from trigger to completion. At most one per
// user may be active at a time; the store enforces it.
type Incident struct {
	ID           id.IncidentID   `json:"id"`
	UserID       id.UserID       `json:"user_id"`
	Status       Status          `json:"status"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	Location     *GeoPoint       `json:"location,omitempty"`
	RecordingRef *id.RecordingID `json:"recording_ref,omitempty"`
	Device       string          `json:"device,omitempty"`
}

// Active reports whether the incident is still open.
func (i *Incident) Active() bool { return i.Status == StatusActive }

package domain

import "github.com/google/uuid"

// Typed identifiers for the core entities. Keeping them distinct types stops
// a contact ID from being handed to an incident lookup at compile time.

// UserID identifies a user. It is opaque to this service; the identity
// provider owns its format.
type UserID string

func (u UserID) String() string { return string(u) }

// IsNil reports whether the user ID is empty.
func (u UserID) IsNil() bool { return u == "" }

// IncidentID identifies an incident record. Incident IDs are time-ordered
// (UUIDv7) so the store's most-recent-first listing can rely on ID order as a
// tiebreaker for identical timestamps.
type IncidentID uuid.UUID

// NewIncidentID returns a fresh time-ordered incident ID.
func NewIncidentID() IncidentID {
	v7, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4
		// rather than propagating an error through every Begin call.
		return IncidentID(uuid.New())
	}
	return IncidentID(v7)
}

// ParseIncidentID parses the canonical string form.
func ParseIncidentID(s string) (IncidentID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return IncidentID{}, err
	}
	return IncidentID(v), nil
}

func (i IncidentID) String() string { return uuid.UUID(i).String() }

func (i IncidentID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

// ContactID identifies a trusted contact.
type ContactID uuid.UUID

func NewContactID() ContactID { return ContactID(uuid.New()) }

func ParseContactID(s string) (ContactID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return ContactID{}, err
	}
	return ContactID(v), nil
}

func (c ContactID) String() string { return uuid.UUID(c).String() }

func (c ContactID) IsNil() bool { return uuid.UUID(c) == uuid.Nil }

// AlertID identifies one SOS alert fan-out (one per trigger, shared by all
// per-contact delivery results).
type AlertID uuid.UUID

func NewAlertID() AlertID { return AlertID(uuid.New()) }

func (a AlertID) String() string { return uuid.UUID(a).String() }

func (a AlertID) IsNil() bool { return uuid.UUID(a) == uuid.Nil }

// RecordingID identifies a capture session and, once stopped, its artifact.
type RecordingID uuid.UUID

func NewRecordingID() RecordingID { return RecordingID(uuid.New()) }

func ParseRecordingID(s string) (RecordingID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return RecordingID{}, err
	}
	return RecordingID(v), nil
}

func (r RecordingID) String() string { return uuid.UUID(r).String() }

func (r RecordingID) IsNil() bool { return uuid.UUID(r) == uuid.Nil }

package notify

import (
	"time"

	id "aegis/pkg/domain"
)

// Channel identifies the delivery method that carried an alert to a contact.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelShare Channel = "share"
	// ChannelNone marks a contact whose channels all failed.
	ChannelNone Channel = "none"
)

// DeliveryResult records the outcome for one contact. A failed contact keeps
// the error that exhausted its last channel.
type DeliveryResult struct {
	ContactID   id.ContactID `json:"contact_id"`
	ContactName string       `json:"contact_name"`
	Success     bool         `json:"success"`
	ChannelUsed Channel      `json:"channel_used"`
	Error       string       `json:"error,omitempty"`
}

// AlertSummary aggregates one fan-out. Partial success is a normal outcome,
// not an error: the caller inspects SuccessfulAlerts against TotalContacts.
type AlertSummary struct {
	AlertID          id.AlertID       `json:"alert_id"`
	SentAt           time.Time        `json:"sent_at"`
	PerContact       []DeliveryResult `json:"per_contact"`
	TotalContacts    int              `json:"total_contacts"`
	SuccessfulAlerts int              `json:"successful_alerts"`
}

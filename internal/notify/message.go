package notify

import (
	"fmt"
	"strings"
	"time"

	"aegis/internal/location"
	id "aegis/pkg/domain"
)

// Alert carries the incident facts that go into the outbound message. Every
// contact receives the same text; only the channel differs.
type Alert struct {
	Location *location.Position
	Kind     string
	Notes    string
}

// BuildSOSMessage renders the emergency alert text. Coordinates are truncated
// to four decimals, roughly 11m, which is plenty for a responder and avoids
// implying more accuracy than the fix had.
func BuildSOSMessage(at time.Time, alert Alert) string {
	var b strings.Builder
	b.WriteString("EMERGENCY ALERT\n\n")
	fmt.Fprintf(&b, "Time: %s\n", at.Format(time.RFC1123))
	if alert.Location != nil {
		fmt.Fprintf(&b, "Location: %.4f, %.4f\n\n", alert.Location.Lat, alert.Location.Lon)
	} else {
		b.WriteString("Location: Unknown\n\n")
	}
	b.WriteString("This is an automated emergency alert from Aegis.\n")
	if alert.Kind != "" {
		fmt.Fprintf(&b, "Incident Type: %s\n", alert.Kind)
	}
	if alert.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", alert.Notes)
	}
	b.WriteString("\nPlease check on the sender immediately.")
	if alert.Location != nil {
		fmt.Fprintf(&b, "\n\nGoogle Maps: https://maps.google.com/?q=%f,%f", alert.Location.Lat, alert.Location.Lon)
	}
	return b.String()
}

// BuildUpdateMessage renders a status update for an existing incident.
func BuildUpdateMessage(at time.Time, incidentID id.IncidentID, status, notes string) string {
	var b strings.Builder
	b.WriteString("Incident Update\n\n")
	fmt.Fprintf(&b, "Time: %s\n", at.Format(time.RFC1123))
	fmt.Fprintf(&b, "Incident ID: %s\n", incidentID)
	fmt.Fprintf(&b, "Status: %s\n\n", strings.ToUpper(status))
	if notes != "" {
		fmt.Fprintf(&b, "Update: %s\n\n", notes)
	}
	b.WriteString("This is an automated update from Aegis.")
	return b.String()
}

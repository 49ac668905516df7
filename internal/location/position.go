package location

import "time"

// Position is a geographic fix. Transient: the acquirer caches the most
// recent one per user with a freshness window, nothing else persists it.
type Position struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
}

// Age returns how stale the fix is relative to now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

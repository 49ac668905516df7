package models

import (
	"time"

	id "aegis/pkg/domain"
)

// User is an account profile. Premium unlocks unlimited incidents and
// artifact archival; the entitlement policy reads the flag at SOS time.
type User struct {
	ID           id.UserID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Premium      bool      `json:"premium"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

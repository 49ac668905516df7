package models

import (
	"time"

	id "aegis/pkg/domain"
)

// TrustedContact is a person the user wants alerted when an SOS is raised.
// At least name, phone and relationship are required to persist one; email is
// an optional secondary channel.
type TrustedContact struct {
	ID           id.ContactID `json:"id"`
	UserID       id.UserID    `json:"user_id"`
	Name         string       `json:"name" validate:"required"`
	Phone        string       `json:"phone" validate:"required,phonechars"`
	Email        string       `json:"email,omitempty" validate:"omitempty,email"`
	Relationship string       `json:"relationship" validate:"required"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// UpsertContactRequest is the transport payload for creating or updating a
// trusted contact.
type UpsertContactRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship"`
}

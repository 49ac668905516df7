package store

import (
	"context"

	"aegis/internal/contacts/models"
	id "aegis/pkg/domain"
)

// Store persists trusted contacts per user.
type Store interface {
	Upsert(ctx context.Context, contact *models.TrustedContact) error
	Get(ctx context.Context, userID id.UserID, contactID id.ContactID) (*models.TrustedContact, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.TrustedContact, error)
	Delete(ctx context.Context, userID id.UserID, contactID id.ContactID) error
	CountByUser(ctx context.Context, userID id.UserID) (int, error)
}

package store

import (
	"context"

	"aegis/internal/user/models"
	id "aegis/pkg/domain"
)

// Store persists user profiles.
type Store interface {
	// Create fails with sentinel.ErrConflict when the email is taken.
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

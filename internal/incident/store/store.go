package store

import (
	"context"

	"aegis/internal/incident/models"
	id "aegis/pkg/domain"
)

// Store persists incident records.
//
// Save must reject a second active incident for the same user with
// sentinel.ErrConflict; the one-active invariant lives here so every
// implementation enforces it atomically.
type Store interface {
	Save(ctx context.Context, incident *models.Incident) error
	Update(ctx context.Context, incident *models.Incident) error
	Get(ctx context.Context, userID id.UserID, incidentID id.IncidentID) (*models.Incident, error)
	// FindActive returns the user's open incident or sentinel.ErrNotFound.
	FindActive(ctx context.Context, userID id.UserID) (*models.Incident, error)
	// ListByUser returns records most recent first.
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Incident, error)
	Delete(ctx context.Context, userID id.UserID, incidentID id.IncidentID) error
	CountByUser(ctx context.Context, userID id.UserID) (int, error)
}

package store

import (
	"context"

	"aegis/internal/recording/models"
	id "aegis/pkg/domain"
)

// Store persists recording artifacts.
type Store interface {
	Save(ctx context.Context, recording *models.Recording) error
	// Get returns one recording with its payload.
	Get(ctx context.Context, userID id.UserID, recordingID id.RecordingID) (*models.Recording, error)
	// ListByUser returns metadata only, most recent first; payloads stay in
	// the database until a single Get asks for one.
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Recording, error)
	Delete(ctx context.Context, userID id.UserID, recordingID id.RecordingID) error
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aegis/internal/capture"
	"aegis/internal/recording/models"
	"aegis/internal/recording/store"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
)

// Service archives capture artifacts and serves them back. Whether an
// artifact gets archived at all is the orchestrator's call; this service only
// stores what it is handed.
type Service struct {
	store  store.Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(recordingStore store.Store, opts ...Option) (*Service, error) {
	if recordingStore == nil {
		return nil, errors.New("recording store is required")
	}
	s := &Service{
		store:  recordingStore,
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Persist archives a stopped capture artifact under the incident it belongs
// to. Empty artifacts are archived too; a zero-length payload still proves a
// recording was attempted.
func (s *Service) Persist(ctx context.Context, userID id.UserID, incidentID *id.IncidentID, artifact capture.Artifact) (*models.Recording, error) {
	if userID.IsNil() {
		return nil, derrors.New(derrors.CodeInvalidInput, "user id is required")
	}

	recording := &models.Recording{
		ID:         artifact.RecordingID,
		UserID:     userID,
		IncidentID: incidentID,
		MimeKind:   artifact.MimeKind,
		Kind:       string(artifact.Type),
		Duration:   artifact.Duration,
		SizeBytes:  artifact.SizeBytes,
		Payload:    artifact.Payload,
		StartedAt:  artifact.StartedAt,
		CreatedAt:  s.clock(),
	}
	if err := s.store.Save(ctx, recording); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to save recording")
	}

	s.logger.InfoContext(ctx, "recording archived",
		"recording_id", recording.ID,
		"user_id", userID,
		"size_bytes", recording.SizeBytes,
		"duration_ms", recording.Duration.Milliseconds(),
	)
	return recording, nil
}

// Get returns one recording with its payload.
func (s *Service) Get(ctx context.Context, userID id.UserID, recordingID id.RecordingID) (*models.Recording, error) {
	recording, err := s.store.Get(ctx, userID, recordingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "recording not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load recording")
	}
	return recording, nil
}

// List returns the user's recordings, metadata only, most recent first.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*models.Recording, error) {
	recordings, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list recordings")
	}
	return recordings, nil
}

// Delete removes an archived recording.
func (s *Service) Delete(ctx context.Context, userID id.UserID, recordingID id.RecordingID) error {
	if err := s.store.Delete(ctx, userID, recordingID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeNotFound, "recording not found")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "failed to delete recording")
	}
	return nil
}

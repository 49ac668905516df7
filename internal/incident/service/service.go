package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aegis/internal/incident/models"
	"aegis/internal/incident/store"
	"aegis/internal/platform/metrics"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
)

// Service owns the incident record lifecycle. Records are the durable trail
// of SOS episodes: one row per trigger, completed when the episode ends.
type Service struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(incidentStore store.Store, opts ...Option) (*Service, error) {
	if incidentStore == nil {
		return nil, errors.New("incident store is required")
	}
	s := &Service{
		store:  incidentStore,
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BeginParams carries the facts frozen into the record at trigger time.
type BeginParams struct {
	Location     *models.GeoPoint
	RecordingRef *id.RecordingID
	Device       string
}

// Begin opens a new active incident. At most one may be active per user; a
// second Begin while one is open fails with a conflict.
func (s *Service) Begin(ctx context.Context, userID id.UserID, params BeginParams) (*models.Incident, error) {
	if userID.IsNil() {
		return nil, derrors.New(derrors.CodeInvalidInput, "user id is required")
	}

	incident := &models.Incident{
		ID:           id.NewIncidentID(),
		UserID:       userID,
		Status:       models.StatusActive,
		StartTime:    s.clock(),
		Location:     params.Location,
		RecordingRef: params.RecordingRef,
		Device:       params.Device,
	}
	if err := s.store.Save(ctx, incident); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, derrors.New(derrors.CodeConflict, "an incident is already active")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to save incident")
	}

	s.logger.InfoContext(ctx, "incident started",
		"incident_id", incident.ID,
		"user_id", userID,
		"has_location", incident.Location != nil,
	)
	return incident, nil
}

// Complete closes an active incident. The end time always comes from this
// service's clock, never from the caller, so durations are consistent.
func (s *Service) Complete(ctx context.Context, userID id.UserID, incidentID id.IncidentID, recordingRef *id.RecordingID) (*models.Incident, error) {
	incident, err := s.store.Get(ctx, userID, incidentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "incident not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load incident")
	}
	if !incident.Active() {
		return nil, derrors.New(derrors.CodeConflict, "incident is not active")
	}

	now := s.clock()
	incident.Status = models.StatusCompleted
	incident.EndTime = &now
	if recordingRef != nil {
		incident.RecordingRef = recordingRef
	}

	if err := s.store.Update(ctx, incident); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to update incident")
	}
	if s.metrics != nil {
		s.metrics.IncrementIncidentsCompleted()
	}

	s.logger.InfoContext(ctx, "incident completed",
		"incident_id", incident.ID,
		"user_id", userID,
		"duration_s", now.Sub(incident.StartTime).Seconds(),
	)
	return incident, nil
}

// ActiveIncident returns the user's open incident, if any.
func (s *Service) ActiveIncident(ctx context.Context, userID id.UserID) (*models.Incident, error) {
	incident, err := s.store.FindActive(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "no active incident")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to find active incident")
	}
	return incident, nil
}

// List returns the user's incident history, most recent first.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*models.Incident, error) {
	incidents, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list incidents")
	}
	return incidents, nil
}

// Remove deletes a record from the history.
func (s *Service) Remove(ctx context.Context, userID id.UserID, incidentID id.IncidentID) error {
	if err := s.store.Delete(ctx, userID, incidentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeNotFound, "incident not found")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "failed to delete incident")
	}
	return nil
}

// Count returns how many incidents the user has ever recorded. The
// entitlement policy reads it to gate free-tier usage.
func (s *Service) Count(ctx context.Context, userID id.UserID) (int, error) {
	count, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		return 0, derrors.Wrap(err, derrors.CodeInternal, "failed to count incidents")
	}
	return count, nil
}

package store

import (
	"context"
	"sort"
	"sync"

	"aegis/internal/incident/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// MemoryStore is an in-memory incident store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[id.UserID]map[id.IncidentID]models.Incident
}

func NewMemory() *MemoryStore {
	return &MemoryStore{incidents: make(map[id.UserID]map[id.IncidentID]models.Incident)}
}

func (s *MemoryStore) Save(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.incidents[incident.UserID]
	if !ok {
		byID = make(map[id.IncidentID]models.Incident)
		s.incidents[incident.UserID] = byID
	}
	if incident.Status == models.StatusActive {
		for _, existing := range byID {
			if existing.Status == models.StatusActive && existing.ID != incident.ID {
				return sentinel.ErrConflict
			}
		}
	}
	byID[incident.ID] = *incident
	return nil
}

func (s *MemoryStore) Update(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.incidents[incident.UserID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := byID[incident.ID]; !ok {
		return sentinel.ErrNotFound
	}
	byID[incident.ID] = *incident
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID id.UserID, incidentID id.IncidentID) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incident, ok := s.incidents[userID][incidentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &incident, nil
}

func (s *MemoryStore) FindActive(_ context.Context, userID id.UserID) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, incident := range s.incidents[userID] {
		if incident.Status == models.StatusActive {
			i := incident
			return &i, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Incident, 0, len(s.incidents[userID]))
	for _, incident := range s.incidents[userID] {
		i := incident
		out = append(out, &i)
	}
	// Most recent first. IDs are time-ordered, so they break start-time ties.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID id.UserID, incidentID id.IncidentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.incidents[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := byID[incidentID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(byID, incidentID)
	return nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents[userID]), nil
}

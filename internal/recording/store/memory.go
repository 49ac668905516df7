package store

import (
	"context"
	"sort"
	"sync"

	"aegis/internal/recording/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// MemoryStore is an in-memory recording store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	recordings map[id.UserID]map[id.RecordingID]models.Recording
}

func NewMemory() *MemoryStore {
	return &MemoryStore{recordings: make(map[id.UserID]map[id.RecordingID]models.Recording)}
}

func (s *MemoryStore) Save(_ context.Context, recording *models.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.recordings[recording.UserID]
	if !ok {
		byID = make(map[id.RecordingID]models.Recording)
		s.recordings[recording.UserID] = byID
	}
	byID[recording.ID] = *recording
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID id.UserID, recordingID id.RecordingID) (*models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recording, ok := s.recordings[userID][recordingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &recording, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Recording, 0, len(s.recordings[userID]))
	for _, recording := range s.recordings[userID] {
		r := recording
		r.Payload = nil
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID id.UserID, recordingID id.RecordingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.recordings[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := byID[recordingID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(byID, recordingID)
	return nil
}

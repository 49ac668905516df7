package store

import (
	"context"
	"sort"
	"sync"

	"aegis/internal/contacts/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// MemoryStore is an in-memory contact store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	contacts map[id.UserID]map[id.ContactID]models.TrustedContact
}

func NewMemory() *MemoryStore {
	return &MemoryStore{contacts: make(map[id.UserID]map[id.ContactID]models.TrustedContact)}
}

func (s *MemoryStore) Upsert(_ context.Context, contact *models.TrustedContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.contacts[contact.UserID]
	if !ok {
		byID = make(map[id.ContactID]models.TrustedContact)
		s.contacts[contact.UserID] = byID
	}
	byID[contact.ID] = *contact
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID id.UserID, contactID id.ContactID) (*models.TrustedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contact, ok := s.contacts[userID][contactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &contact, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.TrustedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TrustedContact, 0, len(s.contacts[userID]))
	for _, contact := range s.contacts[userID] {
		c := contact
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID id.UserID, contactID id.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.contacts[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := byID[contactID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(byID, contactID)
	return nil
}

func (s *MemoryStore) CountByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts[userID]), nil
}

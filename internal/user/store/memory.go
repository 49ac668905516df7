package store

import (
	"context"
	"strings"
	"sync"

	"aegis/internal/user/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// MemoryStore is an in-memory user store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]models.User
	byEmail map[string]id.UserID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:   make(map[id.UserID]models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *MemoryStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = *user
	s.byEmail[key] = user.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !strings.EqualFold(existing.Email, user.Email) {
		delete(s.byEmail, strings.ToLower(existing.Email))
		s.byEmail[strings.ToLower(user.Email)] = user.ID
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	user := s.users[userID]
	return &user, nil
}

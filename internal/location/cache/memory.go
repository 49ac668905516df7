package cache

import (
	"context"
	"sync"

	"aegis/internal/location"
)

// Memory is the in-process cache used when Redis is not configured.
type Memory struct {
	mu        sync.RWMutex
	positions map[string]location.Position
}

func NewMemory() *Memory {
	return &Memory{positions: make(map[string]location.Position)}
}

func (m *Memory) Get(ctx context.Context, userID string) (location.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[userID]
	return pos, ok, nil
}

func (m *Memory) Put(ctx context.Context, userID string, pos location.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[userID] = pos
	return nil
}

package events

import (
	"context"
	"sync"
	"time"

	id "aegis/pkg/domain"
)

// MemoryPublisher buffers events in memory. Tests and brokerless deployments
// use it in place of the Kafka publisher.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
	clock  func() time.Time
}

func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{clock: time.Now}
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() {}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Event{}, p.events...)
}

// EventsForUser filters the buffer by user.
func (p *MemoryPublisher) EventsForUser(userID id.UserID) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Event
	for _, event := range p.events {
		if event.UserID == userID {
			out = append(out, event)
		}
	}
	return out
}

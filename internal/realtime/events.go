package realtime

import (
	"context"

	"aegis/internal/events"
)

// EventPublisher pushes lifecycle events onto the owning user's websocket
// stream. It satisfies events.Publisher so the orchestrator needs no
// knowledge of the hub.
type EventPublisher struct {
	hub *Hub
}

func NewEventPublisher(hub *Hub) *EventPublisher {
	return &EventPublisher{hub: hub}
}

func (p *EventPublisher) Publish(ctx context.Context, event events.Event) error {
	return p.hub.Publish(ctx, event.UserID, event)
}

// Close is a no-op; the hub's lifecycle is owned by whoever built it.
func (p *EventPublisher) Close() {}

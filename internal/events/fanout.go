package events

import "context"

// FanoutPublisher publishes every event to each wrapped publisher. The first
// error is returned after all publishers have been tried.
type FanoutPublisher struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *FanoutPublisher {
	return &FanoutPublisher{publishers: publishers}
}

func (p *FanoutPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *FanoutPublisher) Close() {
	for _, pub := range p.publishers {
		pub.Close()
	}
}

package bridge

import (
	"context"
	"errors"
	"sync"

	"aegis/internal/capture"
	"aegis/internal/location"
	id "aegis/pkg/domain"
)

// locationProvider adapts client-pushed fixes to the location.Provider
// boundary. A "fresh fix" here is the next fix the device reports; the
// acquirer's own timeout bounds the wait.
type locationProvider struct {
	gateway *Gateway
	userID  id.UserID
}

func (p *locationProvider) CurrentPosition(ctx context.Context, opts location.FixOptions) (location.Position, error) {
	b := p.gateway.bridgeFor(p.userID)

	// A fix already reported within the requested window counts as current.
	b.mu.Lock()
	if b.lastFix != nil && opts.Timeout > 0 && b.lastFix.Age(p.gateway.clock()) <= opts.Timeout {
		pos := *b.lastFix
		b.mu.Unlock()
		return pos, nil
	}
	ch := make(chan location.Position, 1)
	b.fixWaiters = append(b.fixWaiters, ch)
	b.mu.Unlock()

	select {
	case pos := <-ch:
		return pos, nil
	case <-ctx.Done():
		b.mu.Lock()
		for i, waiter := range b.fixWaiters {
			if waiter == ch {
				b.fixWaiters = append(b.fixWaiters[:i], b.fixWaiters[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		return location.Position{}, location.ErrTimeout
	}
}

func (p *locationProvider) Watch(ctx context.Context, _ location.FixOptions, onUpdate func(location.Position)) (context.CancelFunc, error) {
	b := p.gateway.bridgeFor(p.userID)

	b.mu.Lock()
	watchID := b.nextWatch
	b.nextWatch++
	b.watchers[watchID] = onUpdate
	b.mu.Unlock()

	remove := func() {
		b.mu.Lock()
		delete(b.watchers, watchID)
		b.mu.Unlock()
	}

	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}, nil
}

// mediaStream is one open capture fed by uploaded chunks.
type mediaStream struct {
	chunks chan capture.Chunk
	once   sync.Once
	done   func()
}

func (s *mediaStream) Chunks() <-chan capture.Chunk { return s.chunks }

func (s *mediaStream) Close() error {
	s.once.Do(func() {
		s.done()
		close(s.chunks)
	})
	return nil
}

// push delivers a chunk without blocking the upload handler. Reports false
// when the buffer is full and the chunk was dropped.
func (s *mediaStream) push(chunk capture.Chunk) bool {
	select {
	case s.chunks <- chunk:
		return true
	default:
		return false
	}
}

// mediaProvider adapts client uploads to the capture.MediaProvider boundary.
// Open registers a stream; the device learns a capture started through the
// realtime channel and begins uploading chunks.
type mediaProvider struct {
	gateway *Gateway
	userID  id.UserID
}

var supportedMimeKinds = map[string]bool{
	"audio/webm;codecs=opus": true,
	"video/webm;codecs=vp9":  true,
}

func (p *mediaProvider) TypeSupported(mimeKind string) bool {
	return supportedMimeKinds[mimeKind]
}

func (p *mediaProvider) Open(_ context.Context, constraints capture.Constraints) (capture.Stream, error) {
	if !supportedMimeKinds[constraints.MimeKind] {
		return nil, capture.ErrUnsupported
	}

	b := p.gateway.bridgeFor(p.userID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream != nil {
		// One live capture per user; the controller enforces this on its
		// side, so a second open means a stale stream was never closed.
		return nil, errors.New("capture stream already open")
	}

	stream := &mediaStream{
		chunks: make(chan capture.Chunk, chunkBuffer),
		done: func() {
			b.mu.Lock()
			b.stream = nil
			b.mu.Unlock()
		},
	}
	b.stream = stream
	return stream, nil
}

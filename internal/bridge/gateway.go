// Package bridge is the device boundary of the backend. The mobile client is
// the sensor: it pushes location fixes and encoded media chunks up to the
// server, and the gateway feeds them into the provider interfaces the capture
// controller and location acquirer consume.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"aegis/internal/capture"
	"aegis/internal/location"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
)

const chunkBuffer = 64

// Gateway routes device-pushed data to per-user providers.
type Gateway struct {
	logger *slog.Logger
	clock  func() time.Time

	mu    sync.Mutex
	users map[id.UserID]*userBridge
}

type userBridge struct {
	mu sync.Mutex

	lastFix    *location.Position
	fixWaiters []chan location.Position
	watchers   map[int]func(location.Position)
	nextWatch  int

	stream *mediaStream
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) {
		if clock != nil {
			g.clock = clock
		}
	}
}

func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
		users:  make(map[id.UserID]*userBridge),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) bridgeFor(userID id.UserID) *userBridge {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.users[userID]
	if !ok {
		b = &userBridge{watchers: make(map[int]func(location.Position))}
		g.users[userID] = b
	}
	return b
}

// ReportFix ingests one location fix pushed by the user's device. A zero
// timestamp is stamped with server time.
func (g *Gateway) ReportFix(ctx context.Context, userID id.UserID, pos location.Position) error {
	if userID.IsNil() {
		return derrors.New(derrors.CodeInvalidInput, "user id is required")
	}
	if pos.Lat < -90 || pos.Lat > 90 || pos.Lon < -180 || pos.Lon > 180 {
		return derrors.New(derrors.CodeInvalidInput, "coordinates out of range")
	}
	if pos.Timestamp.IsZero() {
		pos.Timestamp = g.clock()
	}

	b := g.bridgeFor(userID)
	b.mu.Lock()
	b.lastFix = &pos
	waiters := b.fixWaiters
	b.fixWaiters = nil
	watchers := make([]func(location.Position), 0, len(b.watchers))
	for _, fn := range b.watchers {
		watchers = append(watchers, fn)
	}
	b.mu.Unlock()

	for _, ch := range waiters {
		ch <- pos
	}
	for _, fn := range watchers {
		fn(pos)
	}

	g.logger.DebugContext(ctx, "location fix reported", "user_id", userID, "accuracy", pos.Accuracy)
	return nil
}

// IngestChunk delivers one encoded media slice into the user's open capture
// stream. Chunks arriving with no capture in progress are rejected so the
// client can stop uploading.
func (g *Gateway) IngestChunk(ctx context.Context, userID id.UserID, data []byte) error {
	if len(data) == 0 {
		return derrors.New(derrors.CodeInvalidInput, "empty media chunk")
	}

	b := g.bridgeFor(userID)
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()

	if stream == nil {
		return derrors.New(derrors.CodeConflict, "no capture in progress")
	}
	if !stream.push(capture.Chunk{Data: data, RecordedAt: g.clock()}) {
		g.logger.WarnContext(ctx, "media chunk dropped, stream buffer full", "user_id", userID)
	}
	return nil
}

// LocationProviderFor returns the location boundary for one user.
func (g *Gateway) LocationProviderFor(userID id.UserID) location.Provider {
	return &locationProvider{gateway: g, userID: userID}
}

// MediaProviderFor returns the capture boundary for one user.
func (g *Gateway) MediaProviderFor(userID id.UserID) capture.MediaProvider {
	return &mediaProvider{gateway: g, userID: userID}
}

package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	derrors "aegis/pkg/domain-errors"
)

// fakeProvider scripts the provider boundary for unit tests.
type fakeProvider struct {
	mu          sync.Mutex
	position    Position
	fixErr      error
	watchErr    error
	fixCalls    int
	watchActive int
}

func (f *fakeProvider) CurrentPosition(ctx context.Context, opts FixOptions) (Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixCalls++
	if f.fixErr != nil {
		return Position{}, f.fixErr
	}
	return f.position, nil
}

func (f *fakeProvider) Watch(ctx context.Context, opts FixOptions, onUpdate func(Position)) (context.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.watchActive++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.watchActive--
	}, nil
}

func (f *fakeProvider) activeWatches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchActive
}

type memoryCache struct {
	mu        sync.RWMutex
	positions map[string]Position
}

func newMemoryCache() *memoryCache {
	return &memoryCache{positions: make(map[string]Position)}
}

func (m *memoryCache) Get(ctx context.Context, userID string) (Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[userID]
	return pos, ok, nil
}

func (m *memoryCache) Put(ctx context.Context, userID string, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[userID] = pos
	return nil
}

type AcquirerSuite struct {
	suite.Suite
	provider *fakeProvider
	cache    *memoryCache
	acquirer *Acquirer
	now      time.Time
}

func TestAcquirerSuite(t *testing.T) {
	suite.Run(t, new(AcquirerSuite))
}

func (s *AcquirerSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.provider = &fakeProvider{
		position: Position{Lat: 37.7749, Lon: -122.4194, Accuracy: 10, Timestamp: s.now},
	}
	s.cache = newMemoryCache()

	var err error
	s.acquirer, err = New(s.provider, s.cache, "user-1",
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *AcquirerSuite) TestNew() {
	s.Run("nil provider returns error", func() {
		_, err := New(nil, s.cache, "user-1")
		s.Error(err)
	})

	s.Run("nil cache returns error", func() {
		_, err := New(s.provider, nil, "user-1")
		s.Error(err)
	})
}

func (s *AcquirerSuite) TestAcquire() {
	ctx := context.Background()

	s.Run("fresh fix is returned and cached", func() {
		pos, err := s.acquirer.Acquire(ctx, 5*time.Minute)
		s.NoError(err)
		s.InDelta(37.7749, pos.Lat, 1e-9)

		cached, ok, err := s.cache.Get(ctx, "user-1")
		s.NoError(err)
		s.True(ok)
		s.InDelta(37.7749, cached.Lat, 1e-9)
	})

	s.Run("falls back to fresh-enough cached position", func() {
		s.Require().NoError(s.cache.Put(ctx, "user-1", Position{
			Lat: 40.0, Lon: -100.0, Timestamp: s.now.Add(-2 * time.Minute),
		}))
		s.provider.fixErr = ErrUnavailable

		pos, err := s.acquirer.Acquire(ctx, 5*time.Minute)
		s.NoError(err)
		s.InDelta(40.0, pos.Lat, 1e-9)
	})

	s.Run("stale cache is not a fallback", func() {
		s.Require().NoError(s.cache.Put(ctx, "user-1", Position{
			Lat: 40.0, Lon: -100.0, Timestamp: s.now.Add(-10 * time.Minute),
		}))
		s.provider.fixErr = ErrUnavailable

		_, err := s.acquirer.Acquire(ctx, 5*time.Minute)
		s.Error(err)
		s.True(derrors.Is(err, derrors.CodeUnavailable))
	})

	s.Run("permission denial carries its own code", func() {
		s.provider.fixErr = ErrPermissionDenied

		_, err := s.acquirer.Acquire(ctx, 0)
		s.Error(err)
		s.True(derrors.Is(err, derrors.CodePermissionDenied))
	})

	s.Run("timeout carries its own code", func() {
		s.provider.fixErr = ErrTimeout

		_, err := s.acquirer.Acquire(ctx, 0)
		s.Error(err)
		s.True(derrors.Is(err, derrors.CodeTimeout))
	})
}

func (s *AcquirerSuite) TestWatch() {
	ctx := context.Background()
	noop := func(Position) {}

	s.Run("starting a second watch replaces the first", func() {
		w1, err := s.acquirer.StartWatch(ctx, noop)
		s.Require().NoError(err)
		s.Equal(1, s.provider.activeWatches())

		w2, err := s.acquirer.StartWatch(ctx, noop)
		s.Require().NoError(err)
		s.Equal(1, s.provider.activeWatches())

		// Stopping the stale handle must not touch the live watch.
		s.acquirer.StopWatch(w1)
		s.Equal(1, s.provider.activeWatches())

		s.acquirer.StopWatch(w2)
		s.Equal(0, s.provider.activeWatches())
	})

	s.Run("close cancels a live watch", func() {
		_, err := s.acquirer.StartWatch(ctx, noop)
		s.Require().NoError(err)
		s.Equal(1, s.provider.activeWatches())

		s.acquirer.Close()
		s.Equal(0, s.provider.activeWatches())
	})

	s.Run("watch failure maps to taxonomy", func() {
		s.provider.watchErr = ErrUnsupported
		_, err := s.acquirer.StartWatch(ctx, noop)
		s.Error(err)
		s.True(derrors.Is(err, derrors.CodeUnsupported))
	})
}

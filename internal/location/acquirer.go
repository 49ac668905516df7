package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	derrors "aegis/pkg/domain-errors"
)

// Cache holds the last known position per user, used as a fallback when a
// fresh fix fails. Implementations live in internal/location/cache.
type Cache interface {
	Get(ctx context.Context, userID string) (Position, bool, error)
	Put(ctx context.Context, userID string, pos Position) error
}

// Watch represents one live position subscription.
type Watch struct {
	cancel context.CancelFunc
}

// Acquirer wraps the location provider with cache fallback and single-watch
// bookkeeping. One acquirer serves one user session.
type Acquirer struct {
	provider   Provider
	cache      Cache
	userID     string
	fixTimeout time.Duration
	logger     *slog.Logger
	clock      func() time.Time

	mu      sync.Mutex
	current *Watch
}

type Option func(*Acquirer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

func WithFixTimeout(d time.Duration) Option {
	return func(a *Acquirer) {
		a.fixTimeout = d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(a *Acquirer) {
		if clock != nil {
			a.clock = clock
		}
	}
}

func New(provider Provider, cache Cache, userID string, opts ...Option) (*Acquirer, error) {
	if provider == nil {
		return nil, errors.New("location provider is required")
	}
	if cache == nil {
		return nil, errors.New("position cache is required")
	}

	a := &Acquirer{
		provider:   provider,
		cache:      cache,
		userID:     userID,
		fixTimeout: 10 * time.Second,
		logger:     slog.New(slog.DiscardHandler),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Acquire attempts a fresh fix and falls back to the cached position when the
// cached fix is no older than maxCacheAge. The returned error carries one of
// the taxonomy codes so callers can distinguish the failure mode.
func (a *Acquirer) Acquire(ctx context.Context, maxCacheAge time.Duration) (*Position, error) {
	fixCtx, cancel := context.WithTimeout(ctx, a.fixTimeout)
	defer cancel()

	pos, err := a.provider.CurrentPosition(fixCtx, FixOptions{
		HighAccuracy: true,
		Timeout:      a.fixTimeout,
	})
	if err == nil {
		if cacheErr := a.cache.Put(ctx, a.userID, pos); cacheErr != nil {
			// Cache failures never surface; the fresh fix is still good.
			a.logger.WarnContext(ctx, "failed to cache position", "error", cacheErr)
		}
		return &pos, nil
	}

	a.logger.WarnContext(ctx, "fresh position fix failed, trying cache",
		"error", err,
		"max_cache_age", maxCacheAge,
	)

	cached, ok, cacheErr := a.cache.Get(ctx, a.userID)
	if cacheErr != nil {
		a.logger.WarnContext(ctx, "position cache read failed", "error", cacheErr)
	}
	if ok && cached.Age(a.clock()) <= maxCacheAge {
		return &cached, nil
	}

	return nil, classify(err)
}

// StartWatch begins streaming position updates. At most one watch is live per
// acquirer; starting a new one first cancels the old one (idempotent replace,
// not an error). Updates refresh the cache as they arrive.
func (a *Acquirer) StartWatch(ctx context.Context, onUpdate func(Position)) (*Watch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		a.current.cancel()
		a.current = nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	providerCancel, err := a.provider.Watch(watchCtx, FixOptions{HighAccuracy: true}, func(pos Position) {
		if cacheErr := a.cache.Put(watchCtx, a.userID, pos); cacheErr != nil {
			a.logger.WarnContext(watchCtx, "failed to cache watched position", "error", cacheErr)
		}
		onUpdate(pos)
	})
	if err != nil {
		cancel()
		return nil, classify(err)
	}

	// Cancellation must be idempotent: a replaced watch is cancelled by
	// StartWatch, and its stale handle may still be passed to StopWatch.
	var once sync.Once
	w := &Watch{cancel: func() {
		once.Do(func() {
			providerCancel()
			cancel()
		})
	}}
	a.current = w
	return w, nil
}

// StopWatch cancels the given watch. Stale handles (already replaced or
// stopped) are ignored.
func (a *Acquirer) StopWatch(w *Watch) {
	if w == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	w.cancel()
	if a.current == w {
		a.current = nil
	}
}

// Close cancels any live watch. Owners must call this when the session ends
// so no watch outlives its consumer.
func (a *Acquirer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.cancel()
		a.current = nil
	}
}

// classify maps provider taxonomy errors onto domain error codes.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return derrors.Wrap(err, derrors.CodePermissionDenied, "location access denied")
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return derrors.Wrap(err, derrors.CodeTimeout, "location request timed out")
	case errors.Is(err, ErrUnsupported):
		return derrors.Wrap(err, derrors.CodeUnsupported, "location not supported")
	default:
		return derrors.Wrap(err, derrors.CodeUnavailable, "location unavailable")
	}
}

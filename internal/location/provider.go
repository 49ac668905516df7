package location

import (
	"context"
	"errors"
	"time"
)

// Provider failure taxonomy. Each is distinguishable so the orchestrator can
// decide to proceed without a fix instead of aborting the SOS.
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnsupported      = errors.New("location not supported")
)

// FixOptions mirror the provider boundary's tunables.
type FixOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// Provider is the external geolocation boundary. Implementations wrap a
// platform positioning API and return the taxonomy errors above.
type Provider interface {
	// CurrentPosition attempts one fresh fix.
	CurrentPosition(ctx context.Context, opts FixOptions) (Position, error)

	// Watch streams position updates to onUpdate until the returned cancel
	// function is called or ctx ends.
	Watch(ctx context.Context, opts FixOptions, onUpdate func(Position)) (context.CancelFunc, error)
}

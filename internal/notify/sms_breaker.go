package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	derrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/circuit"
)

// DefaultProbeInterval is how long an open circuit waits before letting one
// call through to test recovery.
const DefaultProbeInterval = 30 * time.Second

// ResilientSMSGateway wraps a gateway with a circuit breaker. A dead SMS
// provider then fails fast to the email channel instead of eating the
// per-contact timeout on every delivery.
type ResilientSMSGateway struct {
	inner         SMSGateway
	breaker       *circuit.Breaker
	probeInterval time.Duration
	logger        *slog.Logger
	clock         func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

type ResilientSMSOption func(*ResilientSMSGateway)

func WithBreakerLogger(logger *slog.Logger) ResilientSMSOption {
	return func(g *ResilientSMSGateway) {
		g.logger = logger
	}
}

func WithProbeInterval(d time.Duration) ResilientSMSOption {
	return func(g *ResilientSMSGateway) {
		if d > 0 {
			g.probeInterval = d
		}
	}
}

func WithBreakerClock(clock func() time.Time) ResilientSMSOption {
	return func(g *ResilientSMSGateway) {
		if clock != nil {
			g.clock = clock
		}
	}
}

func NewResilientSMSGateway(inner SMSGateway, opts ...ResilientSMSOption) *ResilientSMSGateway {
	g := &ResilientSMSGateway{
		inner:         inner,
		breaker:       circuit.New("sms-gateway", circuit.WithFailureThreshold(3)),
		probeInterval: DefaultProbeInterval,
		logger:        slog.New(slog.DiscardHandler),
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *ResilientSMSGateway) SendSMS(ctx context.Context, phone, message string) error {
	if g.breaker.IsOpen() && !g.allowProbe() {
		return derrors.New(derrors.CodeUnavailable, "sms gateway circuit open")
	}

	if err := g.inner.SendSMS(ctx, phone, message); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			// Stamp the probe clock so the first probe waits a full
			// interval after opening.
			g.mu.Lock()
			g.lastProbe = g.clock()
			g.mu.Unlock()
			g.logger.WarnContext(ctx, "sms gateway circuit opened", "error", err)
		}
		return err
	}

	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "sms gateway circuit closed")
	}
	return nil
}

// allowProbe lets one call through per probe interval while the circuit is
// open, so recovery can be observed without a thundering herd.
func (g *ResilientSMSGateway) allowProbe() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if now.Sub(g.lastProbe) < g.probeInterval {
		return false
	}
	g.lastProbe = now
	return true
}

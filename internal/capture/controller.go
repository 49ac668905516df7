package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
)

// DefaultSliceInterval is the buffering granularity. Partial data survives a
// delayed stop because the provider hands over a slice every interval.
const DefaultSliceInterval = time.Second

// Controller owns the capture state machine and the device resources behind
// it. One controller serves one session; only one capture can be live at a
// time, and starting another while recording is rejected without disturbing
// the running session.
type Controller struct {
	provider      MediaProvider
	maxDuration   time.Duration
	sliceInterval time.Duration
	logger        *slog.Logger
	clock         func() time.Time
	onAutoStop    func(Artifact)

	mu          sync.Mutex
	state       State
	kind        Kind
	stream      Stream
	slices      [][]byte
	startedAt   time.Time
	recordingID id.RecordingID
	autoStop    *time.Timer
	collectDone chan struct{}
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMaxDuration bounds every capture session. The bound is a hard
// safety/storage limit: a still-running session self-stops when it elapses.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Controller) {
		c.maxDuration = d
	}
}

func WithSliceInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.sliceInterval = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithAutoStopHandler registers the callback that receives the artifact when
// the max-duration bound fires. The orchestrator uses it to complete the
// incident that owns the recording.
func WithAutoStopHandler(fn func(Artifact)) Option {
	return func(c *Controller) {
		c.onAutoStop = fn
	}
}

func New(provider MediaProvider, opts ...Option) (*Controller, error) {
	if provider == nil {
		return nil, fmt.Errorf("media provider is required")
	}

	c := &Controller{
		provider:      provider,
		maxDuration:   time.Hour,
		sliceInterval: DefaultSliceInterval,
		logger:        slog.New(slog.DiscardHandler),
		clock:         time.Now,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot for display.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	var elapsed time.Duration
	if c.state == StateRecording || c.state == StatePaused {
		elapsed = c.clock().Sub(c.startedAt)
	}
	return Status{
		State:       c.state,
		Kind:        c.kind,
		RecordingID: c.recordingID,
		Elapsed:     elapsed,
		SliceCount:  len(c.slices),
	}
}

// Start begins a capture session of the given kind. Device access already
// held from a previous stop is reused for rapid restart; otherwise the
// provider is asked to open the device.
func (c *Controller) Start(ctx context.Context, kind Kind) (id.RecordingID, error) {
	if !kind.IsValid() {
		return id.RecordingID{}, derrors.Newf(derrors.CodeInvalidInput, "invalid capture kind %q", kind)
	}
	if !c.provider.TypeSupported(kind.MimeKind()) {
		return id.RecordingID{}, derrors.Newf(derrors.CodeUnsupported, "mime kind %s not supported", kind.MimeKind())
	}

	c.mu.Lock()
	switch c.state {
	case StateRecording, StatePaused:
		c.mu.Unlock()
		return id.RecordingID{}, derrors.New(derrors.CodeConflict, "recording already in progress")
	case StateRequesting:
		c.mu.Unlock()
		return id.RecordingID{}, derrors.New(derrors.CodeConflict, "capture start already in progress")
	}

	// Reuse a held stream only when it captures the same kind.
	stream := c.stream
	if stream != nil && c.kind != kind {
		_ = stream.Close()
		stream = nil
		c.stream = nil
	}
	c.state = StateRequesting
	c.kind = kind
	c.mu.Unlock()

	if stream == nil {
		opened, err := c.provider.Open(ctx, Constraints{
			Kind:          kind,
			MimeKind:      kind.MimeKind(),
			SliceInterval: c.sliceInterval,
		})
		if err != nil {
			c.mu.Lock()
			c.state = StateIdle
			c.mu.Unlock()
			return id.RecordingID{}, classifyStart(err)
		}
		stream = opened
	}

	recID := id.NewRecordingID()

	c.mu.Lock()
	// One collector per stream. A stream reused across stop/start keeps its
	// collector; chunks arriving while Idle are dropped by the state check.
	if c.stream != stream || c.collectDone == nil {
		done := make(chan struct{})
		c.collectDone = done
		go c.collect(stream, done)
	}
	c.stream = stream
	c.state = StateRecording
	c.slices = nil
	c.startedAt = c.clock()
	c.recordingID = recID
	if c.maxDuration > 0 {
		c.autoStop = time.AfterFunc(c.maxDuration, func() {
			c.fireAutoStop(recID)
		})
	}
	c.mu.Unlock()

	return recID, nil
}

// collect buffers slices while the controller is recording. It exits when the
// stream's chunk channel closes (on Cleanup).
func (c *Controller) collect(stream Stream, done chan struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		if len(chunk.Data) == 0 {
			continue
		}
		c.mu.Lock()
		if c.state == StateRecording {
			c.slices = append(c.slices, chunk.Data)
		}
		c.mu.Unlock()
	}
}

// Stop finalizes the buffered slices into one artifact and returns to Idle.
// Device resources stay acquired for rapid restart; Cleanup releases them.
func (c *Controller) Stop() (*Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() (*Artifact, error) {
	if c.state != StateRecording && c.state != StatePaused {
		return nil, derrors.New(derrors.CodeInvalidInput, "no active recording to stop")
	}

	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}

	size := 0
	for _, s := range c.slices {
		size += len(s)
	}
	payload := make([]byte, 0, size)
	for _, s := range c.slices {
		payload = append(payload, s...)
	}

	artifact := &Artifact{
		RecordingID: c.recordingID,
		Payload:     payload,
		MimeKind:    c.kind.MimeKind(),
		Duration:    c.clock().Sub(c.startedAt),
		SizeBytes:   int64(size),
		Type:        c.kind,
		StartedAt:   c.startedAt,
	}

	c.state = StateIdle
	c.slices = nil
	c.recordingID = id.RecordingID{}

	return artifact, nil
}

// fireAutoStop is the max-duration bound. It races an explicit Stop; whoever
// finds the session still live wins, the loser no-ops via the state and
// recording ID check.
func (c *Controller) fireAutoStop(recID id.RecordingID) {
	c.mu.Lock()
	if c.recordingID != recID || (c.state != StateRecording && c.state != StatePaused) {
		c.mu.Unlock()
		return
	}
	artifact, err := c.stopLocked()
	handler := c.onAutoStop
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("auto-stop failed", "recording_id", recID, "error", err)
		return
	}
	c.logger.Info("recording auto-stopped at max duration",
		"recording_id", recID,
		"duration_ms", artifact.Duration.Milliseconds(),
	)
	if handler != nil {
		handler(*artifact)
	}
}

// Pause suspends buffering. Valid only while recording.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return derrors.New(derrors.CodeInvalidInput, "cannot pause: not recording")
	}
	c.state = StatePaused
	return nil
}

// Resume restarts buffering. Valid only while paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return derrors.New(derrors.CodeInvalidInput, "cannot resume: not paused")
	}
	c.state = StateRecording
	return nil
}

// Cleanup releases every device resource acquired by Start. Safe to call on
// any state and on every exit path; repeated start/stop cycles must not leak.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	stream := c.stream
	done := c.collectDone
	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}
	c.stream = nil
	c.state = StateIdle
	c.slices = nil
	c.recordingID = id.RecordingID{}
	c.collectDone = nil
	c.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logger.Warn("failed to close capture stream", "error", err)
		}
	}
	if done != nil {
		<-done
	}
}

func classifyStart(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return derrors.Wrap(err, derrors.CodePermissionDenied, "media permission denied")
	case errors.Is(err, ErrUnsupported):
		return derrors.Wrap(err, derrors.CodeUnsupported, "media capture not supported")
	default:
		return derrors.Wrap(err, derrors.CodeUnavailable, "failed to open capture device")
	}
}

package capture

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"time"
)

// Provider failure taxonomy.
var (
	ErrPermissionDenied = errors.New("media permission denied")
	ErrUnsupported      = errors.New("media capture not supported")
)

// Chunk is one slice of encoded media emitted by the provider stream.
type Chunk struct {
	Data       []byte
	RecordedAt time.Time
}

// Stream is an open device capture. Chunks are emitted at the slice interval
// requested in the constraints; the channel closes when the stream is closed.
type Stream interface {
	Chunks() <-chan Chunk
	Close() error
}

// Constraints describe what to open on the device.
type Constraints struct {
	Kind          Kind
	MimeKind      string
	SliceInterval time.Duration
}

// MediaProvider is the external capture boundary (device/media stack).
type MediaProvider interface {
	// Open acquires device access and starts producing chunks.
	Open(ctx context.Context, constraints Constraints) (Stream, error)

	// TypeSupported reports whether the provider can encode the mime kind.
	TypeSupported(mimeKind string) bool
}

package capture

import (
	"time"

	id "aegis/pkg/domain"
)

// Kind selects what the capture session records.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// IsValid checks if the kind is one of the supported enum values.
func (k Kind) IsValid() bool {
	switch k {
	case KindAudio, KindVideo:
		return true
	}
	return false
}

// MimeKind returns the container/codec the provider is asked to produce.
func (k Kind) MimeKind() string {
	if k == KindVideo {
		return "video/webm;codecs=vp9"
	}
	return "audio/webm;codecs=opus"
}

// State is the capture controller's state machine. The states are exclusive:
// exactly one holds at any time.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
)

// Artifact is the output of one completed capture session. Ownership
// transfers to the caller of Stop; the controller keeps no reference.
type Artifact struct {
	RecordingID id.RecordingID
	Payload     []byte
	MimeKind    string
	Duration    time.Duration
	SizeBytes   int64
	Type        Kind
	StartedAt   time.Time
}

// Status is a read-only snapshot of the controller for display.
type Status struct {
	State       State
	Kind        Kind
	RecordingID id.RecordingID
	Elapsed     time.Duration
	SliceCount  int
}

package audio

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNotStarted       = errors.New("recorder not started")
)

// Origin describes the execution context capture runs in: the page origin
// for a browser, a fixed loopback origin for the native backends.
type Origin struct {
	Scheme string
	Host   string
}

func (o Origin) String() string { return o.Scheme + "://" + o.Host }

// Constraints are the processing options requested when the microphone is opened.
type Constraints struct {
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
}

func DefaultConstraints() Constraints {
	return Constraints{EchoCancellation: true, NoiseSuppression: true, AutoGainControl: true}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context is the capture capability a recording pipeline consumes.
type Context interface {
	Origin() Origin
	// Available reports whether any recording capability exists at all.
	Available() bool
	IsTypeSupported(mimeType string) bool
	// Open acquires the microphone. Denial is reported as ErrPermissionDenied.
	Open(ctx context.Context, c Constraints) (Stream, error)
	NewRecorder(s Stream, mimeType string) (Recorder, error)
	Close()
}

// Stream is an acquired microphone.
type Stream interface {
	Tracks() []Track
}

type Track interface {
	Stop()
}

// StopTracks releases every track of s.
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Recorder produces encoded fragments from a Stream. Data is closed after
// the final fragment following Stop has been delivered.
type Recorder interface {
	Start(timeslice time.Duration) error
	Data() <-chan []byte
	Stop() error
	MimeType() string
}

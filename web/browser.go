package web

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"vocalscript/audio"
)

var errDisconnected = errors.New("browser disconnected")

// browserContext is the audio.Context of one connected page. Capture runs
// in the browser; this side only issues commands and collects fragments.
type browserContext struct {
	origin    audio.Origin
	supported []string
	recorder  bool
	send      func(message) error

	openResult chan error
	closed     chan struct{}
	closeOnce  sync.Once

	mu     sync.Mutex
	active *browserRecorder
}

func newBrowserContext(origin audio.Origin, hello message, send func(message) error) *browserContext {
	return &browserContext{
		origin:     origin,
		supported:  hello.Supported,
		recorder:   hello.Recorder,
		send:       send,
		openResult: make(chan error, 1),
		closed:     make(chan struct{}),
	}
}

func (b *browserContext) Origin() audio.Origin { return b.origin }
func (b *browserContext) Available() bool      { return b.recorder }

func (b *browserContext) IsTypeSupported(mimeType string) bool {
	return slices.Contains(b.supported, mimeType)
}

func (b *browserContext) Open(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	// drop a stale answer from an earlier, abandoned request
	select {
	case <-b.openResult:
	default:
	}
	if err := b.send(message{Type: msgOpen, Constraints: &c}); err != nil {
		return nil, err
	}
	select {
	case err := <-b.openResult:
		if err != nil {
			return nil, err
		}
		return &browserStream{b: b}, nil
	case <-b.closed:
		return nil, errDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *browserContext) NewRecorder(s audio.Stream, mimeType string) (audio.Recorder, error) {
	if _, ok := s.(*browserStream); !ok {
		return nil, fmt.Errorf("stream %T not opened by this context", s)
	}
	r := &browserRecorder{b: b, mime: mimeType, data: make(chan []byte, 256)}
	b.mu.Lock()
	if old := b.active; old != nil {
		// the page never confirmed the last stop; its pump must still drain
		go old.finish()
	}
	b.active = r
	b.mu.Unlock()
	return r, nil
}

func (b *browserContext) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != nil {
		b.active.finish()
		b.active = nil
	}
}

func (b *browserContext) opened() {
	select {
	case b.openResult <- nil:
	default:
	}
}

func (b *browserContext) denied(reason string) {
	if reason == "" {
		reason = "permission dismissed"
	}
	select {
	case b.openResult <- fmt.Errorf("%w: %s", audio.ErrPermissionDenied, reason):
	default:
	}
}

// fragment hands a binary frame to the recording in progress, if any.
func (b *browserContext) fragment(data []byte) {
	b.mu.Lock()
	r := b.active
	b.mu.Unlock()
	if r == nil {
		return
	}
	r.deliver(data, b.closed)
}

func (b *browserContext) stopped() {
	b.mu.Lock()
	r := b.active
	b.active = nil
	b.mu.Unlock()
	if r != nil {
		r.finish()
	}
}

type browserStream struct {
	b    *browserContext
	once sync.Once
}

func (s *browserStream) Tracks() []audio.Track { return []audio.Track{s} }

// Stop asks the page to stop every microphone track.
func (s *browserStream) Stop() {
	s.once.Do(func() {
		s.b.send(message{Type: msgRelease})
	})
}

type browserRecorder struct {
	b    *browserContext
	mime string
	data chan []byte

	mu       sync.Mutex
	started  bool
	finished bool
}

func (r *browserRecorder) MimeType() string    { return r.mime }
func (r *browserRecorder) Data() <-chan []byte { return r.data }

func (r *browserRecorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return r.b.send(message{Type: msgRecord, MimeType: r.mime, TimesliceMs: timeslice.Milliseconds()})
}

func (r *browserRecorder) Stop() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return audio.ErrNotStarted
	}
	return r.b.send(message{Type: msgStop})
}

// deliver holds mu so finish cannot close data mid-send.
func (r *browserRecorder) deliver(data []byte, closed <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	select {
	case r.data <- data:
	case <-closed:
	}
}

// finish closes Data. Fragments arriving afterwards are dropped.
func (r *browserRecorder) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finished {
		r.finished = true
		close(r.data)
	}
}

package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fakeFragmentSize = 16 * 1024

// FakeContext is a scripted capture context for tests and the headless
// -test mode. Every recorder it creates emits Fragments in order.
type FakeContext struct {
	OriginValue Origin
	Supported   []string
	Unavailable bool
	Deny        bool
	Fragments   [][]byte
	// Interval spaces fragments out in time. Zero delivers them at once.
	Interval time.Duration
	// Stuck recorders never close Data, like a page that stops answering.
	Stuck bool

	mu      sync.Mutex
	streams []*FakeStream
	opens   int
}

func NewFakeContext(fragments ...[]byte) *FakeContext {
	return &FakeContext{
		OriginValue: Origin{Scheme: "https", Host: "example.test"},
		Supported:   []string{"audio/webm;codecs=opus", "audio/webm"},
		Fragments:   fragments,
	}
}

// NewFakeContextFromFile replays an audio file in fixed-size fragments. The
// container type is taken from the file extension. With realtime set the
// fragments arrive one per second like a live recorder would emit them.
func NewFakeContextFromFile(path string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mime := mimeFromExt(filepath.Ext(path))
	if mime == "" {
		return nil, fmt.Errorf("unknown audio type for %s", path)
	}
	var frags [][]byte
	for len(data) > 0 {
		n := min(fakeFragmentSize, len(data))
		frags = append(frags, data[:n])
		data = data[n:]
	}
	f := NewFakeContext(frags...)
	f.OriginValue = Origin{Scheme: "app", Host: "localhost"}
	f.Supported = []string{mime}
	if realtime {
		f.Interval = time.Second
	}
	return f, nil
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	case ".mp4", ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	}
	return ""
}

func (f *FakeContext) Origin() Origin  { return f.OriginValue }
func (f *FakeContext) Available() bool { return !f.Unavailable }
func (f *FakeContext) Close()          {}

func (f *FakeContext) IsTypeSupported(mimeType string) bool {
	for _, s := range f.Supported {
		if s == mimeType {
			return true
		}
	}
	return false
}

func (f *FakeContext) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.Deny {
		return nil, ErrPermissionDenied
	}
	s := &FakeStream{}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *FakeContext) NewRecorder(s Stream, mimeType string) (Recorder, error) {
	if _, ok := s.(*FakeStream); !ok {
		return nil, fmt.Errorf("stream %T not opened by this context", s)
	}
	return &FakeRecorder{
		mime:      mimeType,
		fragments: f.Fragments,
		interval:  f.Interval,
		stuck:     f.Stuck,
		data:      make(chan []byte, len(f.Fragments)+1),
		stop:      make(chan struct{}),
	}, nil
}

// Opens reports how many times the microphone was requested.
func (f *FakeContext) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Streams returns every stream handed out so far.
func (f *FakeContext) Streams() []*FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeStream(nil), f.streams...)
}

type FakeStream struct {
	mu      sync.Mutex
	stopped int
}

func (s *FakeStream) Tracks() []Track { return []Track{fakeTrack{s}} }

// Stopped reports whether the stream's track has been released.
func (s *FakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped > 0
}

type fakeTrack struct{ s *FakeStream }

func (t fakeTrack) Stop() {
	t.s.mu.Lock()
	t.s.stopped++
	t.s.mu.Unlock()
}

// FakeRecorder delivers its fragments and closes Data once stopped. Stop
// flushes anything not yet delivered.
type FakeRecorder struct {
	mime      string
	fragments [][]byte
	interval  time.Duration
	stuck     bool
	data      chan []byte

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *FakeRecorder) MimeType() string    { return r.mime }
func (r *FakeRecorder) Data() <-chan []byte { return r.data }

func (r *FakeRecorder) Start(time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("recorder already started")
	}
	r.started = true
	go r.run()
	return nil
}

func (r *FakeRecorder) run() {
	if !r.stuck {
		defer close(r.data)
	}
	stopping := false
	for _, frag := range r.fragments {
		if r.interval > 0 && !stopping {
			select {
			case <-time.After(r.interval):
			case <-r.stop:
				stopping = true
			}
		}
		r.data <- frag
	}
	if !stopping {
		<-r.stop
	}
}

func (r *FakeRecorder) Stop() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

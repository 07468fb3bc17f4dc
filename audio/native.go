package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vocalscript/encoder"
	"vocalscript/log"
)

// autoGain is the fixed boost applied when AutoGainControl is requested on
// a native device. Laptop microphones sit far below what the service needs.
const autoGain = 8

// NativeContext records from the local microphone through pulse or malgo.
// Its origin is fixed to app://localhost, which always counts as secure.
type NativeContext struct {
	backend pcmBackend

	mu     sync.Mutex
	device *DeviceInfo
}

func NewNativeContext() (*NativeContext, error) {
	b, err := newBackend()
	if err != nil {
		return nil, fmt.Errorf("audio backend: %w", err)
	}
	return &NativeContext{backend: b}, nil
}

func (n *NativeContext) Devices() ([]DeviceInfo, error) {
	return n.backend.Devices()
}

// UseDevice pins capture to d. A nil device means the system default.
func (n *NativeContext) UseDevice(d *DeviceInfo) {
	n.mu.Lock()
	n.device = d
	n.mu.Unlock()
}

// DeviceName returns the pinned device name, or "default".
func (n *NativeContext) DeviceName() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.device == nil {
		return "default"
	}
	return n.device.Name
}

func (n *NativeContext) Origin() Origin  { return Origin{Scheme: "app", Host: "localhost"} }
func (n *NativeContext) Available() bool { return true }
func (n *NativeContext) Close()          { n.backend.Close() }
func (n *NativeContext) IsTypeSupported(mimeType string) bool {
	return encoder.Supports(mimeType)
}

func (n *NativeContext) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	device := n.device
	n.mu.Unlock()

	s := &nativeStream{}
	if c.AutoGainControl {
		s.gain = autoGain
	}
	cfg := CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels}
	capture, err := n.backend.NewCapture(device, cfg, s.onSamples)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	if err := capture.Start(); err != nil {
		capture.Close()
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	s.capture = capture
	log.Infof("microphone opened: %s", n.DeviceName())
	return s, nil
}

func (n *NativeContext) NewRecorder(s Stream, mimeType string) (Recorder, error) {
	ns, ok := s.(*nativeStream)
	if !ok {
		return nil, fmt.Errorf("stream %T not opened by this context", s)
	}
	w, err := encoder.NewStreamWriter(mimeType)
	if err != nil {
		return nil, err
	}
	return &nativeRecorder{
		stream: ns,
		writer: w,
		data:   make(chan []byte, 16),
		stop:   make(chan struct{}),
	}, nil
}

type nativeStream struct {
	capture pcmCapture
	gain    int32

	mu   sync.Mutex
	sink func([]int16)
	once sync.Once
}

func (s *nativeStream) onSamples(samples []int16) {
	applyGain(samples, s.gain)
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(samples)
	}
}

func (s *nativeStream) setSink(fn func([]int16)) {
	s.mu.Lock()
	s.sink = fn
	s.mu.Unlock()
}

func (s *nativeStream) Tracks() []Track { return []Track{nativeTrack{s}} }

type nativeTrack struct{ s *nativeStream }

func (t nativeTrack) Stop() {
	t.s.once.Do(func() {
		t.s.setSink(nil)
		if t.s.capture != nil {
			t.s.capture.Stop()
			t.s.capture.Close()
		}
		log.Info("microphone released")
	})
}

// nativeRecorder encodes PCM into a container stream and emits whatever
// has been produced once per timeslice.
type nativeRecorder struct {
	stream *nativeStream
	writer encoder.StreamWriter
	data   chan []byte

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *nativeRecorder) MimeType() string    { return r.writer.MimeType() }
func (r *nativeRecorder) Data() <-chan []byte { return r.data }

func (r *nativeRecorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("recorder already started")
	}
	r.started = true

	r.stream.setSink(func(samples []int16) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.writer.Write(samples); err != nil {
			log.Warnf("encode: %v", err)
		}
	})
	go r.run(timeslice)
	return nil
}

func (r *nativeRecorder) run(timeslice time.Duration) {
	defer close(r.data)
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			chunk := r.writer.Take()
			r.mu.Unlock()
			if len(chunk) > 0 {
				r.data <- chunk
			}
		case <-r.stop:
			r.stream.setSink(nil)
			r.mu.Lock()
			if err := r.writer.Close(); err != nil {
				log.Warnf("encoder close: %v", err)
			}
			chunk := r.writer.Take()
			frames := r.writer.TotalFrames()
			r.mu.Unlock()
			if len(chunk) > 0 {
				r.data <- chunk
			}
			log.Infof("recorder stopped after %d frames", frames)
			return
		}
	}
}

// Stop requests the final fragment. It does not wait for Data to close.
func (r *nativeRecorder) Stop() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

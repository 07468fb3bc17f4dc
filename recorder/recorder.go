// Package recorder owns the capture lifecycle: it opens the microphone,
// collects recorder fragments, assembles them into one recording and hands
// that to the transcription pipeline.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"vocalscript/audio"
	"vocalscript/encoder"
	"vocalscript/log"
	"vocalscript/probe"
	"vocalscript/transcriber"
)

var (
	ErrCaptureFailed    = errors.New("could not start recording")
	ErrPermissionDenied = errors.New("microphone access denied")
	ErrEmptyRecording   = errors.New("recording is empty")
	ErrBusy             = errors.New("busy")
	ErrNotRecording     = errors.New("not recording")
	ErrClosed           = errors.New("controller stopped")
)

type State int32

const (
	Idle State = iota
	Recording
	Assembling
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Assembling:
		return "assembling"
	case Processing:
		return "processing"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Config struct {
	Candidates  []string
	Timeslice   time.Duration
	MinBytes    int
	MaxDuration time.Duration
	MaxBytes    int

	// DrainTimeout bounds the wait for the recorder's last fragment after
	// stop. On expiry the recording is assembled from what arrived.
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Candidates:  probe.DefaultCandidates,
		Timeslice:   time.Second,
		MinBytes:    1000,
		MaxDuration: 10 * time.Minute,
		MaxBytes:    15 << 20,

		DrainTimeout: 5 * time.Second,
	}
}

// Transcriber is the pipeline's view of transcriber.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, mimeType, data string, publish func(string)) (string, error)
}

type command struct {
	start bool
	reply chan error
}

type session struct {
	id       int
	stream   audio.Stream
	rec      audio.Recorder
	mimeType string
	frags    [][]byte
	size     int
	started  time.Time
}

type fragment struct {
	id   int
	data []byte
}

type drained struct{ id int }

type settled struct{ err error }

// Controller serialises every state change through Run. Start, Stop and
// Toggle block until Run has handled them.
type Controller struct {
	ctx    audio.Context
	client Transcriber
	sink   Sink
	cfg    Config
	probe  probe.Result

	cmds     chan command
	internal chan any
	done     chan struct{}

	state      atomic.Int32
	recordings atomic.Int32

	// owned by Run
	cur    *session
	nextID int
	timer  *time.Timer
	drain  *time.Timer
}

// New probes ctx once. The result is fixed for the controller's lifetime.
func New(ctx audio.Context, client Transcriber, sink Sink, cfg Config) *Controller {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	c := &Controller{
		ctx:      ctx,
		client:   client,
		sink:     sink,
		cfg:      cfg,
		probe:    probe.Probe(ctx, cfg.Candidates),
		cmds:     make(chan command),
		internal: make(chan any, 64),
		done:     make(chan struct{}),
	}
	log.Probe(ctx.Origin().String(), c.probe.Encoding, c.probe.Err())
	return c
}

func (c *Controller) Probe() probe.Result { return c.probe }
func (c *Controller) State() State        { return State(c.state.Load()) }

// Recordings counts recordings handed to the transcriber.
func (c *Controller) Recordings() int { return int(c.recordings.Load()) }

func (c *Controller) Start() error { return c.send(command{start: true}) }
func (c *Controller) Stop() error  { return c.send(command{start: false}) }

// Toggle starts when idle and stops while recording.
func (c *Controller) Toggle() error {
	switch c.State() {
	case Idle:
		return c.Start()
	case Recording:
		return c.Stop()
	}
	return ErrBusy
}

func (c *Controller) send(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) post(ev any) {
	select {
	case c.internal <- ev:
	case <-c.done:
	}
}

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

// Run processes commands until ctx is done. A recording still in progress
// at that point is abandoned and its microphone released.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.abandon()

	for {
		var timeout, drainTimeout <-chan time.Time
		if c.timer != nil {
			timeout = c.timer.C
		}
		if c.drain != nil {
			drainTimeout = c.drain.C
		}

		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.cmds:
			if cmd.start {
				cmd.reply <- c.start(ctx)
			} else {
				cmd.reply <- c.stop("user")
			}
		case <-timeout:
			c.timer = nil
			log.Info("maximum recording duration reached")
			c.stop("duration")
		case <-drainTimeout:
			c.drain = nil
			if s := c.cur; s != nil {
				log.Warnf("recorder did not finish within %s, using %d fragments", c.cfg.DrainTimeout, len(s.frags))
				c.onDrained(ctx, drained{id: s.id})
			}
		case ev := <-c.internal:
			switch ev := ev.(type) {
			case fragment:
				c.onFragment(ev)
			case drained:
				c.onDrained(ctx, ev)
			case settled:
				c.onSettled(ev)
			}
		}
	}
}

func (c *Controller) start(ctx context.Context) error {
	if c.State() != Idle {
		return ErrBusy
	}
	c.sink.Publish(Event{Kind: StartRequested})

	if err := c.probe.Err(); err != nil {
		c.fail(err)
		return err
	}

	stream, err := c.ctx.Open(ctx, audio.DefaultConstraints())
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		c.fail(err)
		return err
	}
	rec, err := c.ctx.NewRecorder(stream, c.probe.Encoding)
	if err == nil {
		err = rec.Start(c.cfg.Timeslice)
	}
	if err != nil {
		audio.StopTracks(stream)
		err = fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		c.fail(err)
		return err
	}

	c.nextID++
	c.cur = &session{
		id:       c.nextID,
		stream:   stream,
		rec:      rec,
		mimeType: c.probe.Encoding,
		started:  time.Now(),
	}
	go c.pump(c.cur.id, rec.Data())

	if c.cfg.MaxDuration > 0 {
		c.timer = time.NewTimer(c.cfg.MaxDuration)
	}
	if w, ok := c.client.(interface{ Warm() }); ok {
		w.Warm()
	}

	c.setState(Recording)
	c.sink.Publish(Event{Kind: RecordingStarted})
	log.Infof("recording started (%s)", c.cur.mimeType)
	return nil
}

// pump forwards fragments in order and reports when the recorder is done.
func (c *Controller) pump(id int, data <-chan []byte) {
	for frag := range data {
		if len(frag) == 0 {
			continue
		}
		c.post(fragment{id: id, data: frag})
	}
	c.post(drained{id: id})
}

func (c *Controller) stop(reason string) error {
	if c.State() != Recording {
		if c.State() == Idle {
			return ErrNotRecording
		}
		return ErrBusy
	}
	s := c.cur
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if err := s.rec.Stop(); err != nil {
		log.Warnf("recorder stop: %v", err)
	}
	audio.StopTracks(s.stream)
	if c.cfg.DrainTimeout > 0 {
		c.drain = time.NewTimer(c.cfg.DrainTimeout)
	}

	c.setState(Assembling)
	c.sink.Publish(Event{Kind: RecordingStopped})
	c.sink.Publish(Event{Kind: ProcessingStarted})
	log.Infof("recording stopped (%s) after %s", reason, time.Since(s.started).Round(time.Millisecond))
	return nil
}

func (c *Controller) onFragment(f fragment) {
	s := c.cur
	if s == nil || s.id != f.id {
		return
	}
	s.frags = append(s.frags, f.data)
	s.size += len(f.data)
	if c.cfg.MaxBytes > 0 && s.size >= c.cfg.MaxBytes && c.State() == Recording {
		log.Info("maximum recording size reached")
		c.stop("size")
	}
}

func (c *Controller) onDrained(ctx context.Context, d drained) {
	s := c.cur
	if s == nil || s.id != d.id {
		return
	}
	if c.State() == Recording {
		// The recorder ended on its own, e.g. the browser went away.
		c.stop("recorder ended")
	}
	if c.drain != nil {
		c.drain.Stop()
		c.drain = nil
	}
	c.cur = nil

	blob := encoder.Concat(s.mimeType, s.frags)
	log.Recording(blob.MimeType, len(s.frags), blob.Size())

	if blob.Size() <= c.cfg.MinBytes {
		c.setState(Idle)
		c.fail(fmt.Errorf("%w: %d bytes", ErrEmptyRecording, blob.Size()))
		c.sink.Publish(Event{Kind: ProcessingFinished})
		return
	}

	c.setState(Processing)
	c.recordings.Add(1)
	go c.process(ctx, blob)
}

// process runs the encode and transcribe steps. It is not cancelled by
// user actions, only by ctx.
func (c *Controller) process(ctx context.Context, blob encoder.Blob) {
	data, err := encoder.Base64(blob)
	if err != nil {
		c.post(settled{err: err})
		return
	}
	mime := encoder.NormalizeMIME(blob.MimeType)
	_, err = c.client.Transcribe(ctx, mime, data, func(text string) {
		c.sink.Publish(Event{Kind: TranscriptUpdated, Text: text})
	})
	c.post(settled{err: err})
}

func (c *Controller) onSettled(s settled) {
	c.setState(Idle)
	if s.err != nil {
		c.fail(s.err)
	}
	c.sink.Publish(Event{Kind: ProcessingFinished})
}

func (c *Controller) fail(err error) {
	if !errors.Is(err, transcriber.ErrNothingRecognized) {
		log.Warnf("%v", err)
	}
	c.sink.Publish(Event{Kind: Failed, Err: err})
}

func (c *Controller) abandon() {
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.drain != nil {
		c.drain.Stop()
	}
	if s := c.cur; s != nil {
		s.rec.Stop()
		audio.StopTracks(s.stream)
		c.cur = nil
	}
}

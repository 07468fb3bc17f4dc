package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"vocalscript/audio"
	"vocalscript/log"
	"vocalscript/recorder"
	"vocalscript/ui"
)

// headless drives a controller from line commands and prints what a user
// would see. It backs the -test mode used by the integration tests.
type headless struct {
	out io.Writer

	mu       sync.Mutex
	state    ui.State
	finished chan struct{}
}

func newHeadless(out io.Writer) *headless {
	return &headless{out: out, finished: make(chan struct{}, 16)}
}

func (h *headless) Publish(e recorder.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Apply(e)
	switch e.Kind {
	case recorder.RecordingStarted:
		fmt.Fprintln(h.out, "RECORDING")
	case recorder.RecordingStopped:
		fmt.Fprintln(h.out, "STOPPED")
	case recorder.TranscriptUpdated:
		fmt.Fprintf(h.out, "PARTIAL: %s\n", e.Text)
	case recorder.Failed:
		fmt.Fprintf(h.out, "ERROR: %s\n", h.state.Error)
	case recorder.ProcessingFinished:
		if h.state.Error == "" {
			fmt.Fprintf(h.out, "TEXT: %s\n", h.state.Text)
		}
		select {
		case h.finished <- struct{}{}:
		default:
		}
	}
}

func (h *headless) drain() {
	for {
		select {
		case <-h.finished:
		default:
			return
		}
	}
}

// run executes commands until QUIT or end of input:
// START, STOP, WAIT (for the current recording to finish), CLEAR,
// SLEEP <ms>, QUIT.
func (h *headless) run(ctx context.Context, ctrl *recorder.Controller, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "START":
			h.drain()
			if err := ctrl.Start(); err != nil {
				log.Warnf("start: %v", err)
			}
		case cmd == "STOP":
			if err := ctrl.Stop(); err != nil {
				log.Warnf("stop: %v", err)
			}
		case cmd == "WAIT":
			if ctrl.State() == recorder.Idle {
				// nothing in flight, or it already finished
				h.drain()
				continue
			}
			select {
			case <-h.finished:
			case <-ctx.Done():
				return ctx.Err()
			}
		case cmd == "CLEAR":
			h.mu.Lock()
			h.state.Clear()
			h.mu.Unlock()
			fmt.Fprintln(h.out, "CLEARED")
		case cmd == "QUIT":
			return nil
		case strings.HasPrefix(cmd, "SLEEP "):
			ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:]))
			if err != nil {
				return fmt.Errorf("bad SLEEP argument %q", cmd[6:])
			}
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return fmt.Errorf("unknown command %q", cmd)
		}
	}
	return scanner.Err()
}

// runTestMode replays an audio file as if it were the microphone.
func runTestMode(ctx context.Context, path string, client recorder.Transcriber, cfg recorder.Config, in io.Reader, out io.Writer) error {
	fake, err := audio.NewFakeContextFromFile(path, false)
	if err != nil {
		return err
	}

	h := newHeadless(out)
	ctrl := recorder.New(fake, client, h, cfg)
	h.state = ui.New(ctrl.Probe())

	ctx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		ctrl.Run(ctx)
	}()
	defer func() {
		cancel()
		<-runDone
		log.SessionEnd(ctrl.Recordings())
	}()

	return h.run(ctx, ctrl, in)
}

package main

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"vocalscript/beep"
	"vocalscript/recorder"
	"vocalscript/transcriber"
)

// programSink forwards controller events to the Bubble Tea program, which
// folds them into its ui.State.
type programSink struct {
	p *tea.Program
}

func (s *programSink) Publish(e recorder.Event) {
	s.p.Send(eventMsg(e))
}

// cueSink plays a tone on recording transitions and passes every event on.
type cueSink struct {
	next recorder.Sink
	play func(beep.Cue)
}

func (s cueSink) Publish(e recorder.Event) {
	switch e.Kind {
	case recorder.RecordingStarted:
		s.play(beep.Start)
	case recorder.RecordingStopped:
		s.play(beep.Stop)
	case recorder.Failed:
		if !errors.Is(e.Err, transcriber.ErrNothingRecognized) {
			s.play(beep.Error)
		}
	}
	s.next.Publish(e)
}

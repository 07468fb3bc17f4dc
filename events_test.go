package main

import (
	"errors"
	"slices"
	"testing"

	"vocalscript/beep"
	"vocalscript/recorder"
	"vocalscript/transcriber"
)

func TestCueSink(t *testing.T) {
	var cues []beep.Cue
	var kinds []recorder.EventKind
	s := cueSink{
		next: recorder.SinkFunc(func(e recorder.Event) { kinds = append(kinds, e.Kind) }),
		play: func(c beep.Cue) { cues = append(cues, c) },
	}

	for _, e := range []recorder.Event{
		{Kind: recorder.StartRequested},
		{Kind: recorder.RecordingStarted},
		{Kind: recorder.RecordingStopped},
		{Kind: recorder.ProcessingStarted},
		{Kind: recorder.Failed, Err: transcriber.ErrNothingRecognized},
		{Kind: recorder.Failed, Err: errors.New("network")},
		{Kind: recorder.ProcessingFinished},
	} {
		s.Publish(e)
	}

	if want := []beep.Cue{beep.Start, beep.Stop, beep.Error}; !slices.Equal(cues, want) {
		t.Errorf("cues = %v, want %v", cues, want)
	}
	if len(kinds) != 7 {
		t.Errorf("forwarded %d events, want 7", len(kinds))
	}
}

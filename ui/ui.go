// Package ui holds the presentation state shared by the terminal and web
// front ends. Rendering is a pure function of State.
package ui

import (
	"errors"

	"vocalscript/probe"
	"vocalscript/recorder"
	"vocalscript/transcriber"
)

const InsecureBanner = "WARNING: HTTPS REQUIRED FOR MICROPHONE"

type State struct {
	Text       string `json:"text"`
	Error      string `json:"error,omitempty"`
	Recording  bool   `json:"recording"`
	Processing bool   `json:"processing"`
	Secure     bool   `json:"secure"`
	Encoding   string `json:"encoding,omitempty"`
}

// New seeds a State from the probe. A failed probe is shown straight away.
func New(p probe.Result) State {
	s := State{Secure: p.Secure, Encoding: p.Encoding}
	if err := p.Err(); err != nil {
		s.Error = Message(err)
	}
	return s
}

// Apply folds one controller event into the state.
func (s *State) Apply(e recorder.Event) {
	switch e.Kind {
	case recorder.StartRequested:
		s.Error = ""
	case recorder.RecordingStarted:
		s.Recording = true
	case recorder.RecordingStopped:
		s.Recording = false
	case recorder.ProcessingStarted:
		s.Processing = true
	case recorder.TranscriptUpdated:
		s.Text = e.Text
	case recorder.Failed:
		s.Error = Message(e.Err)
		s.Recording = false
		s.Processing = false
	case recorder.ProcessingFinished:
		s.Processing = false
	}
}

// Clear empties the transcript. It leaves errors and flags alone.
func (s *State) Clear() {
	s.Text = ""
}

// CanStart reports whether the record action should be enabled.
func (s State) CanStart() bool {
	return s.Secure && s.Encoding != "" && !s.Processing && !s.Recording
}

func (s State) Banner() string {
	if !s.Secure {
		return InsecureBanner
	}
	return ""
}

// Message converts any pipeline error into the single line shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, probe.ErrInsecureContext):
		return "Voice recording requires a secure connection (HTTPS). Please open the https version of this page."
	case errors.Is(err, probe.ErrNoCapture):
		return "Your browser is too old or does not support voice recording."
	case errors.Is(err, probe.ErrNoEncoding):
		return "No supported recording format found."
	case errors.Is(err, recorder.ErrPermissionDenied):
		return "Could not access the microphone. Check the microphone permissions in your settings."
	case errors.Is(err, recorder.ErrCaptureFailed):
		return "Could not start the recorder. Try reloading the page."
	case errors.Is(err, recorder.ErrEmptyRecording):
		return "The recording is empty. Try again and speak louder."
	case errors.Is(err, recorder.ErrBusy):
		return "Still working on the previous recording."
	case errors.Is(err, transcriber.ErrMissingCredential):
		return "Failure: API key is missing. Set API_KEY and restart."
	case errors.Is(err, transcriber.ErrNothingRecognized):
		return "The AI did not recognize any words. Try again."
	case errors.Is(err, transcriber.ErrBadRequest):
		return "Format error. Try reloading the page or use Safari (on iPhone)."
	case errors.Is(err, transcriber.ErrRateLimited):
		return "Too many attempts. Wait a minute."
	case errors.Is(err, transcriber.ErrRequestFailed):
		if d := transcriber.Detail(err); d != "" {
			return "Failure: " + d
		}
		return "Failure: check your internet connection."
	}
	return "Failure: " + err.Error()
}

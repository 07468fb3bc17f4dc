package web

import (
	"vocalscript/audio"
	"vocalscript/ui"
)

// Message types exchanged with the page. Fragments travel as binary frames.
const (
	// server -> page
	msgHello   = "hello"
	msgOpen    = "open"
	msgRecord  = "record"
	msgStop    = "stop"
	msgRelease = "release"
	msgState   = "state"

	// page -> server, besides hello
	msgOpened  = "opened"
	msgDenied  = "denied"
	msgStopped = "stopped"
	msgToggle  = "toggle"
	msgClear   = "clear"
)

type message struct {
	Type        string             `json:"type"`
	Candidates  []string           `json:"candidates,omitempty"`
	Supported   []string           `json:"supported,omitempty"`
	Recorder    bool               `json:"recorder,omitempty"`
	Constraints *audio.Constraints `json:"constraints,omitempty"`
	MimeType    string             `json:"mimeType,omitempty"`
	TimesliceMs int64              `json:"timesliceMs,omitempty"`
	Error       string             `json:"error,omitempty"`
	State       *view              `json:"state,omitempty"`
}

// view is ui.State plus what the page derives from it.
type view struct {
	ui.State
	Banner   string `json:"banner,omitempty"`
	CanStart bool   `json:"canStart"`
}

func newView(s ui.State) *view {
	return &view{State: s, Banner: s.Banner(), CanStart: s.CanStart()}
}

// Package probe decides whether recording is possible in a capture context
// and which container format to record in.
package probe

import (
	"errors"
	"net"
	"strings"

	"vocalscript/audio"
)

var (
	ErrInsecureContext = errors.New("microphone requires a secure context (https)")
	ErrNoCapture       = errors.New("no audio recording capability")
	ErrNoEncoding      = errors.New("no supported audio format")
)

// DefaultCandidates is the encoding preference order. FLAC is last so only
// native capture, which cannot produce the compressed browser formats,
// falls through to it.
var DefaultCandidates = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"audio/aac",
	"audio/wav",
	"audio/mpeg",
	"audio/flac",
}

// Result is the outcome of a probe. Encoding is empty unless recording is
// possible.
type Result struct {
	Secure    bool
	Available bool
	Encoding  string
}

func (r Result) Err() error {
	switch {
	case !r.Secure:
		return ErrInsecureContext
	case !r.Available:
		return ErrNoCapture
	case r.Encoding == "":
		return ErrNoEncoding
	}
	return nil
}

func (r Result) Ready() bool { return r.Err() == nil }

// IsSecure reports whether microphone access may be requested from origin.
func IsSecure(o audio.Origin) bool {
	if strings.EqualFold(o.Scheme, "https") {
		return true
	}
	host := o.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(strings.ToLower(host), "[]")
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Choose returns the first candidate accepted by supported, or "".
func Choose(candidates []string, supported func(string) bool) string {
	for _, c := range candidates {
		if supported(c) {
			return c
		}
	}
	return ""
}

// Probe inspects ctx. An insecure context is reported before any format
// is checked.
func Probe(ctx audio.Context, candidates []string) Result {
	if !IsSecure(ctx.Origin()) {
		return Result{}
	}
	if !ctx.Available() {
		return Result{Secure: true}
	}
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return Result{
		Secure:    true,
		Available: true,
		Encoding:  Choose(candidates, ctx.IsTypeSupported),
	}
}

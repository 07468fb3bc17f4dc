package transcriber

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"
)

var (
	ErrMissingCredential = errors.New("API key is not configured")
	ErrBadRequest        = errors.New("audio rejected by the service")
	ErrRateLimited       = errors.New("rate limited")
	ErrRequestFailed     = errors.New("transcription request failed")
	ErrNothingRecognized = errors.New("no words recognized")
)

const DefaultLanguage = "Ukrainian"

// Instruction is the text sent alongside the audio.
func Instruction(language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return "Transcribe this audio recording. Correct grammar and punctuation. Output only the clean text in " + language + "."
}

// Request is one transcription call. Data is standard padded base64.
type Request struct {
	MimeType    string
	Data        string
	Instruction string
}

// Provider streams refined transcript fragments for a request. The
// sequence is single-use: it issues exactly one remote call when ranged
// over and stops at the first error.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// Warmer is implemented by providers that can pre-open a connection while
// the user is still speaking.
type Warmer interface {
	Warm()
}

// APIError is a non-success answer from the remote service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error %d", e.StatusCode)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

// failure tags a request error with its category and keeps the cause.
type failure struct {
	kind  error
	cause error
}

func (f *failure) Error() string   { return f.kind.Error() + ": " + f.cause.Error() }
func (f *failure) Unwrap() []error { return []error{f.kind, f.cause} }

// classify sorts a provider error into one of the request categories.
func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest:
			return &failure{kind: ErrBadRequest, cause: err}
		case http.StatusTooManyRequests:
			return &failure{kind: ErrRateLimited, cause: err}
		}
	}
	return &failure{kind: ErrRequestFailed, cause: err}
}

// Detail returns the service's own explanation for a classified request
// error, or "" when there is none.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var f *failure
	if errors.As(err, &f) {
		return strings.TrimSpace(f.cause.Error())
	}
	return ""
}

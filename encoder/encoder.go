package encoder

import (
	"fmt"
	"strings"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	MimeFLAC = "audio/flac"
	MimeWAV  = "audio/wav"
)

// StreamWriter turns PCM into a container byte stream that can be drained
// incrementally. Concatenating every Take result, including the one after
// Close, yields a complete file.
type StreamWriter interface {
	Write(samples []int16) error
	Take() []byte
	Close() error
	MimeType() string
	TotalFrames() uint64
}

// Supports reports whether NewStreamWriter can produce the given type.
func Supports(mimeType string) bool {
	switch baseType(mimeType) {
	case MimeFLAC, MimeWAV:
		return true
	}
	return false
}

func NewStreamWriter(mimeType string) (StreamWriter, error) {
	switch baseType(mimeType) {
	case MimeFLAC:
		return NewFlac()
	case MimeWAV:
		return NewWav(), nil
	default:
		return nil, fmt.Errorf("unsupported container %q", mimeType)
	}
}

func baseType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

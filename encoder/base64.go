package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrUnreadableAudio = errors.New("audio unreadable")

// Blob is a finalized recording: every fragment of one session, in order,
// tagged with the encoding it was captured in.
type Blob struct {
	MimeType string
	Data     []byte
}

func (b Blob) Size() int { return len(b.Data) }

// Reader exposes the blob bytes without copying.
func (b Blob) Reader() io.Reader { return bytes.NewReader(b.Data) }

// Concat joins fragments in insertion order.
func Concat(mimeType string, fragments [][]byte) Blob {
	n := 0
	for _, f := range fragments {
		n += len(f)
	}
	data := make([]byte, 0, n)
	for _, f := range fragments {
		data = append(data, f...)
	}
	return Blob{MimeType: mimeType, Data: data}
}

// Base64 returns the standard, padded base64 text of the blob.
func Base64(b Blob) (string, error) {
	return Base64From(b.Reader())
}

// Base64From streams r through a base64 encoder.
func Base64From(r io.Reader) (string, error) {
	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableAudio, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableAudio, err)
	}
	return sb.String(), nil
}

package encoder

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
)

func TestNormalizeMIME(t *testing.T) {
	for _, tt := range []struct{ input, want string }{
		{"audio/webm;codecs=opus", "audio/webm"},
		{"audio/webm", "audio/webm"},
		{"audio/webm; codecs=\"opus\"", "audio/webm"},
		{"video/webm;codecs=vp8,opus", "audio/webm"},
		{"audio/mp4", "audio/mp4"},
		{"audio/mp4;codecs=mp4a.40.2", "audio/mp4"},
		{"audio/aac", "audio/mp4"},
		{"audio/x-m4a", "audio/mp4"},
		{"AUDIO/MP4", "audio/mp4"},
		{"audio/wav", "audio/wav"},
		{"audio/mpeg", "audio/mpeg"},
		{"audio/ogg;codecs=opus", "audio/ogg"},
	} {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeMIME(tt.input); got != tt.want {
				t.Errorf("NormalizeMIME(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBase64RoundTrip(t *testing.T) {
	data := make([]byte, 6000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	got, err := Base64(Blob{MimeType: "audio/webm", Data: data})
	if err != nil {
		t.Fatalf("Base64: %v", err)
	}
	if want := base64.StdEncoding.EncodeToString(data); got != want {
		t.Error("Base64 output differs from standard encoding")
	}
}

func TestBase64Empty(t *testing.T) {
	got, err := Base64(Blob{})
	if err != nil {
		t.Fatalf("Base64: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestBase64Unreadable(t *testing.T) {
	_, err := Base64From(failingReader{})
	if !errors.Is(err, ErrUnreadableAudio) {
		t.Errorf("err = %v, want ErrUnreadableAudio", err)
	}
}

func TestConcatPreservesOrder(t *testing.T) {
	blob := Concat("audio/webm", [][]byte{{1, 2}, {3}, nil, {4, 5, 6}})
	want := []byte{1, 2, 3, 4, 5, 6}
	if string(blob.Data) != string(want) {
		t.Errorf("Data = %v, want %v", blob.Data, want)
	}
	if blob.Size() != 6 || blob.MimeType != "audio/webm" {
		t.Errorf("unexpected blob %+v", blob)
	}
}

func TestWavEncoderHeader(t *testing.T) {
	enc := NewWav()
	if err := enc.Write([]int16{1, -1, 300}); err != nil {
		t.Fatal(err)
	}
	out := enc.Take()
	if len(out) != WAVHeaderSize+6 {
		t.Fatalf("len = %d, want %d", len(out), WAVHeaderSize+6)
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Error("malformed WAV header")
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := int16(binary.LittleEndian.Uint16(out[WAVHeaderSize+2:])); got != -1 {
		t.Errorf("second sample = %d, want -1", got)
	}
	if len(enc.Take()) != 0 {
		t.Error("Take should drain the buffer")
	}
}

func TestNewStreamWriter(t *testing.T) {
	for _, mime := range []string{"audio/flac", "audio/wav", "AUDIO/WAV;rate=16000"} {
		t.Run(mime, func(t *testing.T) {
			if !Supports(mime) {
				t.Fatalf("Supports(%q) = false", mime)
			}
			w, err := NewStreamWriter(mime)
			if err != nil {
				t.Fatalf("NewStreamWriter(%q): %v", mime, err)
			}
			if w == nil {
				t.Fatalf("NewStreamWriter(%q) returned nil", mime)
			}
		})
	}
	t.Run("unknown", func(t *testing.T) {
		if Supports("audio/webm") {
			t.Error("webm should not be supported natively")
		}
		if _, err := NewStreamWriter("audio/webm"); err == nil {
			t.Error("expected error for webm")
		}
	})
}

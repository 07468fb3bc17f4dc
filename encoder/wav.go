package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
)

const WAVHeaderSize = 44

// streamingSize marks RIFF and data chunk lengths as unknown.
const streamingSize = 0xFFFFFFFF

// WavEncoder emits a 16-bit PCM WAV stream. The header is written before
// the length is known, so both size fields carry the streaming marker.
type WavEncoder struct {
	buf         bytes.Buffer
	totalFrames uint64
	closed      bool
	mu          sync.Mutex
}

func NewWav() *WavEncoder {
	e := &WavEncoder{}
	e.buf.Write(wavHeader(streamingSize))
	return e
}

func (e *WavEncoder) MimeType() string { return MimeWAV }

func (e *WavEncoder) Write(samples []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("wav encoder closed")
	}
	var b [2]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		e.buf.Write(b[:])
	}
	e.totalFrames += uint64(len(samples))
	return nil
}

func (e *WavEncoder) Take() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	e.buf.Reset()
	return out
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func wavHeader(dataSize uint32) []byte {
	const blockAlign = Channels * BitsPerSample / 8
	riffSize := dataSize
	if dataSize != streamingSize {
		riffSize = dataSize + WAVHeaderSize - 8
	}

	h := make([]byte, WAVHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], riffSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], Channels)
	binary.LittleEndian.PutUint32(h[24:28], SampleRate)
	binary.LittleEndian.PutUint32(h[28:32], SampleRate*blockAlign)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

package doctor

import (
	"bytes"
	"context"
	"testing"
	"time"

	"vocalscript/audio"
	"vocalscript/recorder"
)

func TestCaptureKeepsRecording(t *testing.T) {
	fctx := audio.NewFakeContext(bytes.Repeat([]byte{1}, 3072))
	rec := &capture{}
	done := make(chan string, 1)
	c := recorder.New(fctx, rec, recorder.SinkFunc(func(e recorder.Event) {
		if e.Kind == recorder.TranscriptUpdated {
			done <- e.Text
		}
	}), recorder.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-done:
		if msg != "audio/webm, 3.0 KB" {
			t.Errorf("report = %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no report")
	}
	if rec.mimeType != "audio/webm" || len(rec.data) != 4096 {
		t.Errorf("captured %q with %d base64 chars", rec.mimeType, len(rec.data))
	}
}

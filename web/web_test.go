package web

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"vocalscript/audio"
	"vocalscript/config"
	"vocalscript/recorder"
	"vocalscript/transcriber"
	"vocalscript/ui"
)

// fakeBrowser answers server commands the way app.js does.
type fakeBrowser struct {
	t         *testing.T
	conn      *websocket.Conn
	deny      bool
	fragments [][]byte
	states    chan view
	released  atomic.Bool
	recordMsg chan message

	// ignoreStop drops stop commands, so "stopped" never arrives
	ignoreStop atomic.Bool
}

func newTestServer(t *testing.T, provider *transcriber.FakeProvider) *httptest.Server {
	t.Helper()
	return newTestServerConfig(t, provider, recorder.DefaultConfig())
}

func newTestServerConfig(t *testing.T, provider *transcriber.FakeProvider, recCfg recorder.Config) *httptest.Server {
	t.Helper()
	client := transcriber.NewClient(provider, "test-key", "instruction")
	srv := NewServer(config.Server{Addr: ":0"}, recCfg, client, "fake")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, supported []string, deny bool, fragments ...[]byte) *fakeBrowser {
	t.Helper()
	ctx := t.Context()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	var hello message
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != msgHello || len(hello.Candidates) == 0 {
		t.Fatalf("hello = %+v", hello)
	}
	if err := wsjson.Write(ctx, conn, message{Type: msgHello, Supported: supported, Recorder: true}); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	b := &fakeBrowser{
		t:         t,
		conn:      conn,
		deny:      deny,
		fragments: fragments,
		states:    make(chan view, 64),
		recordMsg: make(chan message, 1),
	}
	go b.loop(ctx)
	return b
}

func (b *fakeBrowser) loop(ctx context.Context) {
	defer close(b.states)
	for {
		var m message
		if err := wsjson.Read(ctx, b.conn, &m); err != nil {
			return
		}
		switch m.Type {
		case msgOpen:
			if b.deny {
				wsjson.Write(ctx, b.conn, message{Type: msgDenied, Error: "NotAllowedError"})
			} else {
				wsjson.Write(ctx, b.conn, message{Type: msgOpened})
			}
		case msgRecord:
			b.recordMsg <- m
			for _, f := range b.fragments {
				b.conn.Write(ctx, websocket.MessageBinary, f)
			}
		case msgStop:
			if !b.ignoreStop.Load() {
				wsjson.Write(ctx, b.conn, message{Type: msgStopped})
			}
		case msgRelease:
			b.released.Store(true)
		case msgState:
			b.states <- *m.State
		}
	}
}

func (b *fakeBrowser) send(m message) {
	b.t.Helper()
	if err := wsjson.Write(b.t.Context(), b.conn, m); err != nil {
		b.t.Fatalf("write %s: %v", m.Type, err)
	}
}

// waitState returns the first pushed state matching ok.
func (b *fakeBrowser) waitState(ok func(view) bool) view {
	b.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v, open := <-b.states:
			if !open {
				b.t.Fatal("connection closed while waiting for state")
			}
			if ok(v) {
				return v
			}
		case <-timeout:
			b.t.Fatal("timed out waiting for state")
		}
	}
}

func TestSessionRecordsAndTranscribes(t *testing.T) {
	provider := transcriber.NewFake(nil, "Hello", " world")
	ts := newTestServer(t, provider)

	frag := bytes.Repeat([]byte{0x1a}, 2000)
	b := dial(t, ts, []string{"audio/webm"}, false, frag, frag, frag)

	initial := b.waitState(func(view) bool { return true })
	if !initial.CanStart || initial.Banner != "" || initial.Encoding != "audio/webm" {
		t.Fatalf("initial state = %+v", initial)
	}

	b.send(message{Type: msgToggle})
	b.waitState(func(v view) bool { return v.Recording })

	rec := <-b.recordMsg
	if rec.MimeType != "audio/webm" || rec.TimesliceMs != 1000 {
		t.Errorf("record = %+v", rec)
	}

	b.send(message{Type: msgToggle})
	final := b.waitState(func(v view) bool { return v.Text == "Hello world" && !v.Processing })
	if final.Error != "" || final.Recording {
		t.Errorf("final state = %+v", final)
	}
	if !b.released.Load() {
		t.Error("microphone not released")
	}

	reqs := provider.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].MimeType != "audio/webm" {
		t.Errorf("mime = %q", reqs[0].MimeType)
	}
	if len(reqs[0].Data) != 8000 {
		t.Errorf("base64 length = %d, want 8000", len(reqs[0].Data))
	}
}

func TestSessionClear(t *testing.T) {
	ts := newTestServer(t, transcriber.NewFake(nil, "text"))
	frag := bytes.Repeat([]byte{1}, 4000)
	b := dial(t, ts, []string{"audio/webm"}, false, frag)

	b.waitState(func(view) bool { return true })
	b.send(message{Type: msgToggle})
	b.waitState(func(v view) bool { return v.Recording })
	b.send(message{Type: msgToggle})
	b.waitState(func(v view) bool { return v.Text == "text" && !v.Processing })

	b.send(message{Type: msgClear})
	v := b.waitState(func(v view) bool { return v.Text == "" })
	if !v.CanStart {
		t.Errorf("state after clear = %+v", v)
	}
}

func TestSessionPermissionDenied(t *testing.T) {
	provider := transcriber.NewFake(nil, "unused")
	ts := newTestServer(t, provider)
	b := dial(t, ts, []string{"audio/webm"}, true)

	b.waitState(func(view) bool { return true })
	b.send(message{Type: msgToggle})
	v := b.waitState(func(v view) bool { return v.Error != "" })
	if v.Error != ui.Message(recorder.ErrPermissionDenied) {
		t.Errorf("error = %q", v.Error)
	}
	if v.Recording || v.Processing {
		t.Errorf("state = %+v", v)
	}
	if len(provider.Requests()) != 0 {
		t.Error("transcriber called after denial")
	}
}

func TestSessionNoSupportedEncoding(t *testing.T) {
	ts := newTestServer(t, transcriber.NewFake(nil))
	b := dial(t, ts, nil, false)

	v := b.waitState(func(view) bool { return true })
	if v.CanStart || v.Error == "" || v.Encoding != "" {
		t.Errorf("state = %+v", v)
	}
}

func TestServerServesPage(t *testing.T) {
	ts := newTestServer(t, transcriber.NewFake(nil))

	for path, want := range map[string]string{
		"/":          "vocalscript",
		"/app.js":    "MediaRecorder",
		"/style.css": ".record",
		"/healthz":   "ok",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), want) {
			t.Errorf("GET %s: body missing %q", path, want)
		}
	}
}

func TestRequestOrigin(t *testing.T) {
	r := httptest.NewRequest("GET", "http://rec.example.com/ws", nil)
	if got := requestOrigin(r); got.Scheme != "http" || got.Host != "rec.example.com" {
		t.Errorf("plain = %+v", got)
	}

	r.Header.Set("X-Forwarded-Proto", "HTTPS")
	if got := requestOrigin(r); got.Scheme != "https" {
		t.Errorf("forwarded = %+v", got)
	}

	r = httptest.NewRequest("GET", "https://rec.example.com/ws", nil)
	r.TLS = &tls.ConnectionState{}
	if got := requestOrigin(r); got.Scheme != "https" {
		t.Errorf("tls = %+v", got)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"https://app.example.com", "*.example.org", "http://localhost:3000"})
	want := []string{"app.example.com", "*.example.org", "localhost:3000"}
	if !slices.Equal(got, want) {
		t.Errorf("patterns = %v, want %v", got, want)
	}
	if originPatterns(nil) != nil {
		t.Error("no origins should allow same host only")
	}
}

func TestBrowserRecorderStopBeforeStart(t *testing.T) {
	b := newBrowserContext(audio.Origin{Scheme: "http", Host: "localhost"}, message{Supported: []string{"audio/mp4"}, Recorder: true},
		func(message) error { return nil })
	rec, err := b.NewRecorder(&browserStream{b: b}, "audio/mp4")
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Stop(); err == nil {
		t.Error("stop before start should fail")
	}
	if !b.IsTypeSupported("audio/mp4") || b.IsTypeSupported("audio/webm") {
		t.Error("supported types not taken from hello")
	}

	b.Close()
	if _, open := <-rec.Data(); open {
		t.Error("data channel open after close")
	}
	// late fragments are dropped
	b.fragment([]byte{1})
}

func TestBrowserOpenDisconnected(t *testing.T) {
	b := newBrowserContext(audio.Origin{Scheme: "http", Host: "localhost"}, message{}, func(message) error { return nil })
	b.Close()
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	if _, err := b.Open(ctx, audio.DefaultConstraints()); err != errDisconnected {
		t.Errorf("err = %v, want errDisconnected", err)
	}
}

func TestBrowserStaleRecorderFinished(t *testing.T) {
	b := newBrowserContext(audio.Origin{Scheme: "http", Host: "localhost"}, message{Supported: []string{"audio/mp4"}, Recorder: true},
		func(message) error { return nil })
	defer b.Close()
	s := &browserStream{b: b}
	old, err := b.NewRecorder(s, "audio/mp4")
	if err != nil {
		t.Fatal(err)
	}
	b.fragment([]byte{1})
	if _, err := b.NewRecorder(s, "audio/mp4"); err != nil {
		t.Fatal(err)
	}
	b.fragment([]byte{2})

	var got [][]byte
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case f, open := <-old.Data():
			if !open {
				done = true
				break
			}
			got = append(got, f)
		case <-timeout:
			t.Fatal("stale recorder never finished")
		}
	}
	if len(got) != 1 || got[0][0] != 1 {
		t.Errorf("stale recorder got %v, want only the first fragment", got)
	}
}

func TestSessionRecoversWhenPageNeverStops(t *testing.T) {
	provider := transcriber.NewFake(nil, "partial")
	cfg := recorder.DefaultConfig()
	cfg.DrainTimeout = 100 * time.Millisecond
	ts := newTestServerConfig(t, provider, cfg)

	frag := bytes.Repeat([]byte{7}, 4000)
	b := dial(t, ts, []string{"audio/webm"}, false, frag)
	b.ignoreStop.Store(true)

	b.waitState(func(view) bool { return true })
	b.send(message{Type: msgToggle})
	b.waitState(func(v view) bool { return v.Recording })
	<-b.recordMsg
	b.send(message{Type: msgToggle})

	v := b.waitState(func(v view) bool { return v.Text == "partial" && !v.Processing })
	if !v.CanStart || v.Error != "" {
		t.Fatalf("state after drain timeout = %+v", v)
	}
	if reqs := provider.Requests(); len(reqs) != 1 || len(reqs[0].Data) != 5336 {
		t.Errorf("requests = %d, want one with the 4000 bytes that arrived", len(reqs))
	}

	b.send(message{Type: msgToggle})
	b.waitState(func(v view) bool { return v.Recording })
}

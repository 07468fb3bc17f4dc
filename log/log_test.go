package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wd, "logs"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv(EnvLogPath, "/tmp/vs-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/vs-env-log" {
		t.Errorf("got %q, want /tmp/vs-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv(EnvLogPath, "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(nil); err != nil {
		t.Fatal(err)
	}
	Info("hello")
	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("diagnostics missing message: %q", data)
	}
}

func TestConsoleMirror(t *testing.T) {
	setupLogDir(t)
	var console bytes.Buffer
	if err := Init(&console); err != nil {
		t.Fatal(err)
	}
	Probe("http://example.test", "", errors.New("insecure context"))
	if !strings.Contains(console.String(), "insecure context") {
		t.Errorf("console missing probe record: %q", console.String())
	}
}

func TestRequestOmitsTranscript(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(nil); err != nil {
		t.Fatal(err)
	}
	Request(RequestMetrics{Provider: "gemini", MimeType: "audio/webm", Chars: 11})
	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "chars=11") {
		t.Errorf("expected char count in %q", data)
	}
}

func TestLoggingBeforeInit(t *testing.T) {
	Close()
	Info("dropped")
	Warnf("dropped %d", 1)
	SessionEnd(0)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)
	if err := Init(nil); err != nil {
		t.Fatal(err)
	}
	Close()
	Close()
}

func TestRequestFields(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(nil); err != nil {
		t.Fatal(err)
	}
	Request(RequestMetrics{Provider: "gemini", Chunks: 3})
	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "chunks=3") || strings.Contains(string(data), "fragments=") {
		t.Errorf("unexpected transcription record %q", data)
	}
}

func TestConcurrentLoggingAndClose(t *testing.T) {
	setupLogDir(t)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				Infof("tick %d", 1)
				Warn("tock")
				SessionEnd(0)
				_ = Logger()
			}
		}()
	}
	for range 5 {
		if err := Init(nil); err != nil {
			t.Fatal(err)
		}
		Close()
	}
	close(stop)
	wg.Wait()
}

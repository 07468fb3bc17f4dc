package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vocalscript/recorder"
	"vocalscript/transcriber"
)

func writeAudio(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runScript(t *testing.T, path string, provider transcriber.Provider, script string) (string, error) {
	t.Helper()
	client := transcriber.NewClient(provider, "test-key", transcriber.Instruction(transcriber.DefaultLanguage))
	var out bytes.Buffer
	err := runTestMode(t.Context(), path, client, recorder.DefaultConfig(), strings.NewReader(script), &out)
	return out.String(), err
}

func TestTestModeTranscribes(t *testing.T) {
	provider := transcriber.NewFake(nil, "Hello", " world")
	out, err := runScript(t, writeAudio(t, "speech.webm", 40000), provider, "START\nSTOP\nWAIT\nQUIT\n")
	if err != nil {
		t.Fatalf("runTestMode: %v", err)
	}
	for _, want := range []string{"RECORDING", "STOPPED", "PARTIAL: Hello", "TEXT: Hello world"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	reqs := provider.Requests()
	if len(reqs) != 1 || reqs[0].MimeType != "audio/webm" {
		t.Fatalf("requests = %+v", reqs)
	}
}

func TestTestModeEmptyRecording(t *testing.T) {
	provider := transcriber.NewFake(nil, "unused")
	out, err := runScript(t, writeAudio(t, "tiny.webm", 500), provider, "START\nSTOP\nWAIT\nQUIT\n")
	if err != nil {
		t.Fatalf("runTestMode: %v", err)
	}
	if !strings.Contains(out, "ERROR: The recording is empty") {
		t.Errorf("output:\n%s", out)
	}
	if len(provider.Requests()) != 0 {
		t.Error("empty recording was sent")
	}
}

func TestTestModeClear(t *testing.T) {
	out, err := runScript(t, writeAudio(t, "a.wav", 4000), transcriber.NewFake(nil, "x"), "CLEAR\nSLEEP 1\nQUIT\n")
	if err != nil {
		t.Fatalf("runTestMode: %v", err)
	}
	if !strings.Contains(out, "CLEARED") {
		t.Errorf("output:\n%s", out)
	}
}

func TestTestModeRejectsUnknownCommand(t *testing.T) {
	_, err := runScript(t, writeAudio(t, "a.wav", 4000), transcriber.NewFake(nil), "KEYDOWN\n")
	if err == nil || !strings.Contains(err.Error(), "KEYDOWN") {
		t.Errorf("err = %v", err)
	}
}

func TestTestModeMissingFile(t *testing.T) {
	_, err := runScript(t, filepath.Join(t.TempDir(), "missing.wav"), transcriber.NewFake(nil), "QUIT\n")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

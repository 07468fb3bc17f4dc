package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vocalscript/probe"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	for _, k := range []string{"API_KEY", "VOCALSCRIPT_TRANSCRIPTION_API_KEY", "VOCALSCRIPT_TRANSCRIPTION_PROVIDER", "VOCALSCRIPT_RECORDING_MIN_BYTES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transcription.Provider != "gemini" || cfg.Transcription.Language != "Ukrainian" {
		t.Errorf("transcription = %+v", cfg.Transcription)
	}
	if cfg.Transcription.APIKey != "" {
		t.Error("api key should default to empty")
	}
	r := cfg.RecorderConfig()
	if r.MinBytes != 1000 || r.Timeslice != time.Second || r.MaxDuration != 10*time.Minute || r.DrainTimeout != 5*time.Second {
		t.Errorf("recording = %+v", r)
	}
	if len(r.Candidates) != len(probe.DefaultCandidates) || r.Candidates[0] != "audio/webm;codecs=opus" {
		t.Errorf("candidates = %v", r.Candidates)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("API_KEY", "from-env")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TranscriberConfig().APIKey != "from-env" {
		t.Errorf("api key = %q", cfg.Transcription.APIKey)
	}
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("API_KEY=from-dotenv\nVOCALSCRIPT_RECORDING_MIN_BYTES=2048\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("API_KEY")
		os.Unsetenv("VOCALSCRIPT_RECORDING_MIN_BYTES")
	})
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transcription.APIKey != "from-dotenv" {
		t.Errorf("api key = %q", cfg.Transcription.APIKey)
	}
	if cfg.Recording.MinBytes != 2048 {
		t.Errorf("min bytes = %d", cfg.Recording.MinBytes)
	}
}

func TestConfigFile(t *testing.T) {
	dir := isolate(t)
	yml := `transcription:
  provider: groq
  api_key: file-key
  language: English
recording:
  timeslice: 500ms
  candidates: [audio/wav]
server:
  addr: 127.0.0.1:9000
  allowed_origins: [https://example.com]
`
	if err := os.WriteFile(filepath.Join(dir, "vocalscript.yml"), []byte(yml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOCALSCRIPT_TRANSCRIPTION_PROVIDER", "openai")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transcription.Provider != "openai" {
		t.Errorf("env should override file, provider = %q", cfg.Transcription.Provider)
	}
	if cfg.Transcription.APIKey != "file-key" || cfg.Transcription.Language != "English" {
		t.Errorf("transcription = %+v", cfg.Transcription)
	}
	if cfg.Recording.Timeslice != 500*time.Millisecond {
		t.Errorf("timeslice = %v", cfg.Recording.Timeslice)
	}
	if len(cfg.Recording.Candidates) != 1 || cfg.Recording.Candidates[0] != "audio/wav" {
		t.Errorf("candidates = %v", cfg.Recording.Candidates)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestValidation(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(path, []byte("transcription:\n  provider: deepgram\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "Provider") {
		t.Errorf("err = %v, want provider validation failure", err)
	}
}

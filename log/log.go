package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const EnvLogPath = "VOCALSCRIPT_LOG_PATH"

var (
	// diagLog is nil until Init and again after Close.
	diagLog  atomic.Pointer[zerolog.Logger]
	diagFile *os.File
	logMu    sync.Mutex
	dir      string
)

// RequestMetrics describes one transcription request. Transcript text is
// never logged, only its size.
type RequestMetrics struct {
	Provider   string
	Model      string
	MimeType   string
	AudioKB    float64
	Chunks     int
	Chars      int
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
	TLSProto   string
}

func ResolveDir(flagPath string) (string, error) {
	// -logpath flag, then environment, then the OS default.
	for _, p := range []string{flagPath, os.Getenv(EnvLogPath)} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens diagnostics_log.txt in the log directory. When console is not
// nil every record is mirrored to it as well.
func Init(console io.Writer) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	if console != nil {
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"})
	}
	l := zerolog.New(out).With().Timestamp().Int("pid", os.Getpid()).Logger()
	diagLog.Store(&l)
	return nil
}

// Logger exposes the diagnostics logger for request middleware.
func Logger() zerolog.Logger {
	if l := diagLog.Load(); l != nil {
		return *l
	}
	return zerolog.Nop()
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	diagLog.Store(nil)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

func Info(msg string) {
	if l := diagLog.Load(); l != nil {
		l.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if l := diagLog.Load(); l != nil {
		l.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if l := diagLog.Load(); l != nil {
		l.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if l := diagLog.Load(); l != nil {
		l.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if l := diagLog.Load(); l != nil {
		l.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if l := diagLog.Load(); l != nil {
		l.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Request(m RequestMetrics) {
	l := diagLog.Load()
	if l == nil {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}
	ev := l.Info().
		Str("provider", m.Provider).
		Str("model", m.Model).
		Str("mime", m.MimeType).
		Str("conn", connStatus)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	ev.Float64("audio_kb", m.AudioKB).
		Int("chunks", m.Chunks).
		Int("chars", m.Chars).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("transcription")
}

// Probe records the outcome of capability detection.
func Probe(origin, mimeType string, err error) {
	l := diagLog.Load()
	if l == nil {
		return
	}
	if err != nil {
		l.Warn().Str("origin", origin).AnErr("reason", err).Msg("probe")
		return
	}
	l.Info().Str("origin", origin).Str("mime", mimeType).Msg("probe")
}

func Recording(mimeType string, fragments, bytes int) {
	l := diagLog.Load()
	if l == nil {
		return
	}
	l.Info().
		Str("mime", mimeType).
		Int("fragments", fragments).
		Int("bytes", bytes).
		Msg("recording")
}

func SessionStart(mode, origin, provider string) {
	l := diagLog.Load()
	if l == nil {
		return
	}
	l.Info().
		Str("mode", mode).
		Str("origin", origin).
		Str("provider", provider).
		Msg("session_start")
}

func SessionEnd(count int) {
	l := diagLog.Load()
	if l == nil {
		return
	}
	l.Info().
		Int("recordings", count).
		Msg("session_end")
}

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNewLoggerConsole(t *testing.T) {
	log := Config{Level: "debug"}.NewLogger()
	if log == nil {
		t.Fatalf("expected logger")
	}
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug level should be enabled")
	}
	log = Config{Level: "error"}.NewLogger()
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be disabled at error level")
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devboxd.log")
	log := Config{Level: "info", File: path}.NewLogger()
	log.Info("agent started", "listen", ":8080")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
}

func TestColorTextHandlerLevelTag(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true))

	log.Warn("disk almost full")
	out := buf.String()
	if !strings.Contains(out, "\033[33mWARN\033[0m") {
		t.Fatalf("missing colored level tag in %q", out)
	}
	if !strings.Contains(out, "disk almost full") {
		t.Fatalf("missing message in %q", out)
	}

	buf.Reset()
	log.Error("boom")
	if !strings.Contains(buf.String(), "\033[31mERROR\033[0m") {
		t.Fatalf("missing error color in %q", buf.String())
	}
}

func TestWriterDefaults(t *testing.T) {
	w := Config{File: "x.log"}.Writer()
	l, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("writer is not lumberjack.Logger")
	}
	if l.MaxSize != DefaultMaxSizeMB || l.MaxBackups != DefaultMaxBackups || l.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", l.MaxSize, l.MaxBackups, l.MaxAge)
	}
	if l.Compress {
		t.Fatalf("compress should default to false")
	}
}

func TestWriterOverrides(t *testing.T) {
	cfg := Config{File: "x.log", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}
	l := cfg.Writer().(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 11 || !l.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", l.MaxSize, l.MaxBackups, l.MaxAge, l.Compress)
	}
}

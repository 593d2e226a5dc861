package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHelpersUseDefault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := defaultLogger
	SetDefault(zap.New(core))
	t.Cleanup(func() { defaultLogger = prev })

	Printf("joined %s", "spring")
	Debug("hidden")
	Warn("careful %d", 2)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Message != "joined spring" || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marathon.log")
	l := New("info", path)
	l.Info("team created", zap.String("team", "t-1"))
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{`"message":"team created"`, `"team":"t-1"`, `"level":"INFO"`} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("log line %s lacks %s", b, want)
		}
	}
}

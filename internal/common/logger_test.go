package common

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_ToSlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
		name     string
	}{
		{LogLevelError, slog.LevelError, "error"},
		{LogLevelWarn, slog.LevelWarn, "warn"},
		{LogLevelInfo, slog.LevelInfo, "info"},
		{LogLevelDebug, slog.LevelDebug, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.ToSlogLevel(); got != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			if tt.level.String() != tt.name {
				t.Fatalf("expected name %q, got %q", tt.name, tt.level.String())
			}
		})
	}
}

func TestLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelDebug)

	logger.WithComponent("runner").WithSuite("final").WithStep("backendHealth").Info("step finished", "passed", true)

	out := buf.String()
	for _, want := range []string{"component=\"runner\"", "suite=\"final\"", "step=\"backendHealth\"", "passed=true", "step finished"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %s", want, out)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelWarn)
	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("visible")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info/debug should be filtered at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[WARN ]") {
		t.Fatalf("expected warn record, got %s", buf.String())
	}
}

func TestSetDefaultLogger_IgnoresNil(t *testing.T) {
	before := GetLogger()
	SetDefaultLogger(nil)
	if GetLogger() != before {
		t.Fatalf("nil logger should not replace the default")
	}
}

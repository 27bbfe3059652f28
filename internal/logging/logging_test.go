package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("expected line to start with INFO, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("expected message in line, got %q", line)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("executor")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "[executor]") {
		t.Errorf("expected component in line, got %q", buf.String())
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithRunID("run-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "run=run-123") {
		t.Errorf("expected run id in line, got %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("gate checked", map[string]interface{}{
		"gate": "lint",
	})

	if !strings.Contains(buf.String(), "gate=lint") {
		t.Errorf("expected field in line, got %q", buf.String())
	}
}

func TestLogger_GateResult(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.GateResult("lint", "build", false, 5*time.Millisecond)

	line := buf.String()
	if !strings.HasPrefix(line, "WARN ") {
		t.Errorf("failed gate should log at WARN, got %q", line)
	}
	if !strings.Contains(line, "gate=lint") || !strings.Contains(line, "node=build") {
		t.Errorf("expected gate and node fields, got %q", line)
	}
}

func TestLogger_FactWritten_OmitsValue(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.FactWritten("api_token", "fetch", time.Minute)

	line := buf.String()
	if !strings.Contains(line, "key=api_token") {
		t.Errorf("expected key field, got %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

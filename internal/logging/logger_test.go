package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates log file at path", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nightshift.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("writes to fallback when path is empty", func(t *testing.T) {
		var buf bytes.Buffer

		logger, err := NewLogger("", LevelInfo, DefaultRotationConfig(), &buf)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.writer != nil {
			t.Error("expected writer to be nil when path is empty")
		}

		logger.Info("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Error("expected entry on fallback writer")
		}
	})

	t.Run("defaults to INFO level for invalid level string", func(t *testing.T) {
		var buf bytes.Buffer

		logger, err := NewLogger("", "invalid", DefaultRotationConfig(), &buf)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logger.Debug("hidden")
		logger.Info("visible")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Error("DEBUG entry should be filtered at default level")
		}
		if !strings.Contains(out, "visible") {
			t.Error("INFO entry should pass at default level")
		}
	})
}

func TestLogLevels(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nightshift.log")

	logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}

	expectedLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	expectedMsgs := []string{"debug message", "info message", "warn message", "error message"}

	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}

		if entry["level"] != expectedLevels[i] {
			t.Errorf("line %d: expected level %s, got %v", i, expectedLevels[i], entry["level"])
		}
		if entry["msg"] != expectedMsgs[i] {
			t.Errorf("line %d: expected msg %s, got %v", i, expectedMsgs[i], entry["msg"])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: expected key=value, got key=%v", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nightshift.log")

	logger, err := NewLogger(logPath, LevelWarn, DefaultRotationConfig(), os.Stderr)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines at WARN level, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "warn message") {
		t.Errorf("expected first line to be the WARN entry, got %s", lines[0])
	}
	if !strings.Contains(lines[1], "error message") {
		t.Errorf("expected second line to be the ERROR entry, got %s", lines[1])
	}
}

func TestChildLoggers(t *testing.T) {
	readEntry := func(t *testing.T, logPath string) map[string]any {
		t.Helper()
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
			t.Fatalf("failed to parse log entry: %v", err)
		}
		return entry
	}

	t.Run("WithRun adds run_id", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nightshift.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.WithRun("run-123").Info("message")
		logger.Close()

		entry := readEntry(t, logPath)
		if entry["run_id"] != "run-123" {
			t.Errorf("expected run_id=run-123, got %v", entry["run_id"])
		}
	})

	t.Run("chained context accumulates", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nightshift.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		child := logger.WithRun("run-123").
			WithRepo("/src/api").
			WithBranch("nightshift/add-auth-20260825-031500-9f2c").
			WithTask("Add auth middleware")
		child.Info("backend finished", "exit_code", 0)
		logger.Close()

		entry := readEntry(t, logPath)
		if entry["run_id"] != "run-123" {
			t.Errorf("expected run_id, got %v", entry["run_id"])
		}
		if entry["repo"] != "/src/api" {
			t.Errorf("expected repo, got %v", entry["repo"])
		}
		if entry["branch"] != "nightshift/add-auth-20260825-031500-9f2c" {
			t.Errorf("expected branch, got %v", entry["branch"])
		}
		if entry["task"] != "Add auth middleware" {
			t.Errorf("expected task, got %v", entry["task"])
		}
		if entry["exit_code"] != float64(0) {
			t.Errorf("expected exit_code=0, got %v", entry["exit_code"])
		}
	})

	t.Run("parent logger unaffected by child", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nightshift.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		_ = logger.WithRepo("/src/api")
		logger.Info("parent message")
		logger.Close()

		entry := readEntry(t, logPath)
		if _, ok := entry["repo"]; ok {
			t.Error("parent logger should not carry child attributes")
		}
	})

	t.Run("With adds arbitrary attributes", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nightshift.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.With("backend", "claude", "attempt", 1).Info("dispatching")
		logger.Close()

		entry := readEntry(t, logPath)
		if entry["backend"] != "claude" {
			t.Errorf("expected backend=claude, got %v", entry["backend"])
		}
		if entry["attempt"] != float64(1) {
			t.Errorf("expected attempt=1, got %v", entry["attempt"])
		}
	})

	t.Run("child loggers share rotation writer", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nightshift.log")

		logger, err := NewLogger(logPath, LevelDebug, DefaultRotationConfig(), os.Stderr)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		child := logger.WithRun("run-123").WithRepo("/src/api")
		if child.writer != logger.writer {
			t.Error("child logger should share parent's writer")
		}
	})
}

func TestLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nightshift.log")

	config := RotationConfig{
		MaxSizeMB:  0, // maxSizeB set directly below
		MaxBackups: 3,
		Compress:   false,
	}

	logger, err := NewLogger(logPath, LevelDebug, config, os.Stderr)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.writer.maxSizeB = 200

	for i := range 10 {
		logger.Info("this is a message that will trigger rotation when repeated", "iteration", i)
	}

	logger.Close()

	backupPath := logPath + ".1"
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		t.Error("backup file was not created after rotation")
	}
}

func TestLoggerClose(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nightshift.log")

	logger, err := NewLogger(logPath, LevelInfo, DefaultRotationConfig(), os.Stderr)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Second close is a no-op.
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// Must not panic or create files.
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	logger.WithRun("run").WithRepo("repo").Info("chained")

	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger failed: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"Info", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d", len(levels))
	}
	expected := []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("expected levels[%d]=%s, got %s", i, level, levels[i])
		}
	}
}

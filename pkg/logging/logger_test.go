package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level (info is higher)")
	}
	if logger.Logger == nil {
		t.Fatal("Default() returned Logger with nil slog.Logger")
	}

	logger2 := Default()
	if logger == logger2 {
		t.Error("Default() returned the same instance twice - expected new instances")
	}
}

func TestNewWithFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	logger := NewWithFile("info", path)
	logger.With("run_id", "r-1").Info("first record")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	logger = NewWithFile("info", path)
	logger.Info("second record")
	_ = logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "first record") || !strings.Contains(content, "second record") {
		t.Fatalf("expected both records in log file, got %q", content)
	}
	if !strings.Contains(content, `"run_id":"r-1"`) {
		t.Fatalf("expected run_id attribute, got %q", content)
	}
}

func TestNewWithFileFallsBackToStdout(t *testing.T) {
	logger := NewWithFile("info", filepath.Join(t.TempDir(), "missing", "dir", "bot.log"))
	if logger.Logger == nil {
		t.Fatal("expected usable logger")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close without file: %v", err)
	}
}

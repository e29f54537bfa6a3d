package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fraatlas/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A previous run's log must be rotated away
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	defaultLogger := slog.Default()
	defer slog.SetDefault(defaultLogger)

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	old, err := os.ReadFile(serverLog + ".old")
	if err != nil || string(old) != "previous run\n" {
		t.Errorf("expected rotated .old log, got %q (err %v)", string(old), err)
	}

	slog.Info("capture me", "district", "Mayurbhanj")
	if line := Activity.Last(); !strings.Contains(line, "capture me") {
		t.Errorf("activity log missed the line, got %q", line)
	}

	RequestLogger.Info("outbound", "path", "/states")
	data, err := os.ReadFile(requestLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "outbound") {
		t.Errorf("request log missing entry: %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

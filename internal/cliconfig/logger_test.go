package cliconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tagrelay.log")

	logger, closer, err := NewLogger("WARNING", path)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info().Msg("dropped")
	logger.Warn().Str("queue", "rfid_messages").Msg("kept")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "kept" || entry["queue"] != "rfid_messages" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		logger, _, err := NewLogger(tt.in, "")
		if (err != nil) != tt.wantErr {
			t.Fatalf("NewLogger(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && logger.GetLevel() != tt.want {
			t.Errorf("NewLogger(%q) level = %v, want %v", tt.in, logger.GetLevel(), tt.want)
		}
	}
}

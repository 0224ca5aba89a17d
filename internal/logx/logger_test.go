package logx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewConfigNormalizes(t *testing.T) {
	cfg := NewConfig("billsync", Settings{Level: "WARN", Format: "TEXT", Output: "bogus", MaxBackups: -1, MaxAgeDays: 3})

	if cfg.Level != slog.LevelWarn {
		t.Fatalf("expected warn level, got %v", cfg.Level)
	}
	if cfg.JSON {
		t.Fatalf("expected text format")
	}
	if !cfg.Stdout || cfg.File {
		t.Fatalf("expected fallback to stdout only, got stdout=%v file=%v", cfg.Stdout, cfg.File)
	}
	if cfg.FilePath != defaultFilePath {
		t.Fatalf("expected default file path, got %q", cfg.FilePath)
	}
	if cfg.MaxSizeMB != defaultMaxSizeMB || cfg.MaxBackups != defaultMaxBackups || cfg.MaxAgeDays != 3 {
		t.Fatalf("unexpected rotation settings: %+v", cfg)
	}
}

func TestNewConfigParsesBothSinks(t *testing.T) {
	cfg := NewConfig("billsync", Settings{Output: "file, STDOUT"})
	if !cfg.Stdout || !cfg.File {
		t.Fatalf("expected both sinks, got stdout=%v file=%v", cfg.Stdout, cfg.File)
	}
	if !cfg.JSON {
		t.Fatalf("expected json by default")
	}
}

func TestHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(NewConfig("billsync", Settings{}), &buf))

	logger.Info("token saved", "token", "sk-live-123", "Authorization", "Bearer x", "provider", "bigmodel")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line: %v", err)
	}
	if line["token"] != redacted || line["Authorization"] != redacted {
		t.Fatalf("expected secrets redacted, got %v", line)
	}
	if line["provider"] != "bigmodel" {
		t.Fatalf("expected other attributes untouched, got %v", line)
	}
}

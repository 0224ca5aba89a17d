// Package logx configures the process-wide slog logger and carries request
// ids through contexts.
package logx

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultFilePath   = "./logs/billsync.log"
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 7

	redacted = "[REDACTED]"
)

// sensitiveKeys never reach a sink in clear text.
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"api_key":       {},
	"authorization": {},
	"secret":        {},
	"password":      {},
}

// Settings are the raw, user supplied logging options.
type Settings struct {
	Level      string
	Format     string
	Output     string // "stdout", "file" or both, comma separated
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Config struct {
	ServiceName string
	Level       slog.Level
	JSON        bool
	Stdout      bool
	File        bool
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	AddSource   bool
}

// NewConfig normalizes s. Unknown levels become info, unknown formats JSON,
// and an output naming no known sink falls back to stdout.
func NewConfig(serviceName string, s Settings) Config {
	cfg := Config{
		ServiceName: serviceName,
		Level:       parseLevel(s.Level),
		JSON:        !strings.EqualFold(strings.TrimSpace(s.Format), "text"),
		FilePath:    s.FilePath,
		MaxSizeMB:   positiveOr(s.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups:  positiveOr(s.MaxBackups, defaultMaxBackups),
		MaxAgeDays:  positiveOr(s.MaxAgeDays, defaultMaxAgeDays),
	}
	if cfg.FilePath == "" {
		cfg.FilePath = defaultFilePath
	}
	for _, sink := range strings.Split(strings.ToLower(s.Output), ",") {
		switch strings.TrimSpace(sink) {
		case "stdout":
			cfg.Stdout = true
		case "file":
			cfg.File = true
		}
	}
	if !cfg.Stdout && !cfg.File {
		cfg.Stdout = true
	}
	return cfg
}

// Init installs the logger as slog's default. The returned func closes the
// rotating file, if any.
func Init(cfg Config) (*slog.Logger, func() error, error) {
	writer, closer, err := openSinks(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(newHandler(cfg, writer)).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	return logger, closer, nil
}

func newHandler(cfg Config, w io.Writer) slog.Handler {
	options := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}
	if cfg.JSON {
		return slog.NewJSONHandler(w, options)
	}
	return slog.NewTextHandler(w, options)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

func openSinks(cfg Config) (io.Writer, func() error, error) {
	var writers []io.Writer
	if cfg.Stdout {
		writers = append(writers, os.Stdout)
	}

	closeFn := func() error { return nil }
	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, rotator)
		closeFn = rotator.Close
	}

	if len(writers) == 1 {
		return writers[0], closeFn, nil
	}
	return io.MultiWriter(writers...), closeFn, nil
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

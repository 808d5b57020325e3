package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
)

// New builds a structured logger from the log settings. JSON is the default
// format since Cloud Logging parses it into structured entries.
func New(cfg config.LogConfig) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") || strings.EqualFold(cfg.Format, "console") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup installs the logger built from cfg as the process default.
func Setup(cfg config.LogConfig) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}

// SetupWithWriter installs a logger writing to w as the process default.
func SetupWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	logger := NewWithWriter(w, cfg)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

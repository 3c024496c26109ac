// Package logging builds the application slog logger with file rotation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"visitorstats/internal/config"
)

// NewLogger creates the application logger. In production output goes to a
// rotated JSON log file plus stdout; elsewhere it is a text handler on stdout.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.GetLogLevel())

	if cfg.IsProduction() {
		fileWriter, err := newFileWriter(cfg)
		if err != nil {
			// Fall back to stdout-only logging rather than refusing to start.
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			logger.Error("failed to set up log file, using stdout only", "error", err)
			return logger
		}
		multi := io.MultiWriter(os.Stdout, fileWriter)
		return slog.New(slog.NewJSONHandler(multi, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFileWriter(cfg *config.Config) (io.Writer, error) {
	if err := os.MkdirAll(cfg.LogsDirectory, 0o755); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
		MaxSize:    cfg.LogsMaxSizeInMb,
		MaxBackups: cfg.LogsMaxBackups,
		MaxAge:     cfg.LogsMaxAgeInDays,
		Compress:   true,
	}, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

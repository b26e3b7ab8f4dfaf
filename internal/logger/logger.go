// Package logger builds the slog loggers used by the server and the scan CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alkime/wardrobe/internal/config"
)

// SetupLogger configures JSON logging for the server based on environment
// and installs it as the default logger.
func SetupLogger(cfg *config.Config) *slog.Logger {
	logLevel := ParseLevel(cfg.LogLevel)
	if cfg.Env == config.EnvDevelopment {
		logLevel = slog.LevelDebug
	}

	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// SetupCLILogger installs a text logger writing to w.
func SetupCLILogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps debug/info/warn/error to a level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Package logging configures structured JSON logging for the process. MCP
// servers speak JSON-RPC on stdout, so logs go to a rotating file and,
// optionally, stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how much the process logs.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// FilePath is the log file; empty disables file logging.
	FilePath string
	// MaxSizeMB rotates the file when it exceeds this size.
	MaxSizeMB int
	// MaxFiles caps how many rotated files are kept.
	MaxFiles int
	// Stderr mirrors log output to stderr.
	Stderr bool
}

// DefaultConfig logs at info to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		MaxSizeMB: 10,
		MaxFiles:  5,
		Stderr:    true,
	}
}

// Setup installs the configured logger as the slog default and returns a
// cleanup function that flushes and closes the log file.
func Setup(cfg Config) (func(), error) {
	var writers []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		rw, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, err
		}
		writers = append(writers, rw)
		cleanup = func() {
			_ = rw.Sync()
			_ = rw.Close()
		}
	}
	if cfg.Stderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	slog.SetDefault(slog.New(handler))

	return cleanup, nil
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

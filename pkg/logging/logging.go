// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logger := logging.Setup(cfg.LogLevel)   // install as slog default
//	logger := logging.New(w, slog.LevelDebug)
//
// Levels: debug, info, warn, error (default: info).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup installs a tint handler on stderr at the named level as the slog
// default and returns it.
func Setup(level string) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level))
	slog.SetDefault(logger)
	return logger
}

// New returns a tint logger writing to w. Colors are enabled only when w is a
// terminal.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    !isTerminal(w),
	}))
}

// ParseLevel maps a level name to a slog.Level, falling back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Package logging sets up the message store's structured logger. The
// teacher repo lists gopkg.in/natefinch/lumberjack.v2 in its dependency
// stack but never wires it to anything; here it backs a rotating log/slog
// sink so long-running deployments don't need external logrotate config.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Path is the log file to rotate. Empty means "stderr only, no
	// rotation" — the common case for short-lived CLI invocations.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Level sets the minimum emitted level. Defaults to slog.LevelInfo.
	Level slog.Level
}

// New builds a slog.Logger per Options, writing JSON lines to a rotating
// file when Path is set, and to stderr otherwise.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Path != "" {
		w = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 5),
			MaxAge:     nonZero(opts.MaxAgeDays, 30),
			Compress:   true,
		}
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler)
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

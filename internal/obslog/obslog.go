// Package obslog wraps log/slog into the structured, run-scoped logger
// every component receives by constructor injection (never a global),
// generalizing the teacher's internal/utils.CrawlerLogger (which wrote a
// per-product file plus stdout via io.MultiWriter) into a slog handler
// with file rotation — the idiomatic ecosystem upgrade, grounded on the
// structured key/value call style used throughout
// other_examples/15dc80d5_jmylchreest-refyne__internal-crawler-crawler.go.go
// (logger.Debug("crawler starting", "seeds", len(seeds), ...)).
package obslog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level          string // DEBUG, INFO, WARNING, ERROR
	File           string // path to the rotating log file; "" disables file output
	RotationSizeMB int
	RetentionDays  int
}

// New builds a *slog.Logger that writes structured JSON to stdout and,
// when File is set, to a rotating log file.
func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxOr(opts.RotationSizeMB, 50),
			MaxAge:     maxOr(opts.RetentionDays, 14),
			MaxBackups: 10,
			Compress:   true,
		})
	}

	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
	}

	return slog.New(newFanoutHandler(handlers))
}

func maxOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func parseLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

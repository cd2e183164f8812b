// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName is attached to every record.
const ServiceName = "goattach"

// Levels accepted by ParseLevel.
var Levels = []string{"debug", "info", "warn", "error", "off"}

// Options selects level and destination.
type Options struct {
	Level string
	// File, if set, receives the logs instead of stdout. It rolls over at
	// 10 MB keeping one backup.
	File string
	// Stdout is used when File is empty. Defaults to os.Stdout.
	Stdout io.Writer
}

// ParseLevel maps a level name to a slog level. ok is false for "off".
func ParseLevel(name string) (level slog.Level, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace", "all":
		return slog.LevelDebug, true, nil
	case "", "info":
		return slog.LevelInfo, true, nil
	case "warn", "warning":
		return slog.LevelWarn, true, nil
	case "error", "fatal":
		return slog.LevelError, true, nil
	case "off":
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("unknown log level %q (want one of %s)", name, strings.Join(Levels, ", "))
	}
}

// New returns a JSON logger and a closer for the underlying file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, enabled, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if !enabled {
		return slog.New(slog.DiscardHandler), io.NopCloser(nil), nil
	}

	var out io.Writer = opts.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 1,
		}
		out, closer = lj, lj
	} else if out == nil {
		out = os.Stdout
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(h).With("service.name", ServiceName)
	return logger, closer, nil
}

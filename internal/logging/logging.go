// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oulianov/audioghost-ai/internal/config"
)

// New returns a logger writing to out in cfg.Format and, when cfg.File is
// set, to a rotating file as JSON. The returned closer flushes the file and
// is never nil.
func New(cfg config.LogConfig, out io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer
	switch cfg.Format {
	case "", "json":
		console = out
	case "console":
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	w := console
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		closer = lj
		w = zerolog.MultiLevelWriter(console, lj)
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return l, closer, nil
}

// ParseLevel accepts debug, info, warn, error and the empty string (info).
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

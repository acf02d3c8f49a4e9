// Package logger builds the zerolog logger shared by the whole bot.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger at level ("debug", "info", "warn", "error"; default
// info) writing to w. format "json" writes JSON lines, anything else a
// console layout.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
		}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// NewWithFile also appends JSON lines to a rotated file when path is set.
func NewWithFile(level, format, path string) zerolog.Logger {
	if path == "" {
		return New(level, format, os.Stdout)
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
	}
	var console io.Writer = os.Stdout
	if !strings.EqualFold(format, "json") {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime, NoColor: !isTerminal(os.Stdout)}
	}
	return zerolog.New(zerolog.MultiLevelWriter(console, file)).
		Level(ParseLevel(level)).
		With().Timestamp().Logger()
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

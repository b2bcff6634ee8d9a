package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets a console writer at debug
// level; everything else logs JSON at info unless level overrides it.
func New(environment, level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, environment, level)
}

func NewWithWriter(w io.Writer, environment, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if environment == "development" {
		lvl = zerolog.DebugLevel
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	out := w
	if environment == "development" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Nop returns a logger that drops everything; used by tests and optional deps.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Package logger builds the process logger from config.
package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/greghart/powerputty-idgen/internal/config"
)

// New returns a logger writing JSON lines to w, or human friendly output when cfg.Pretty.
// Unknown levels fall back to info.
func New(cfg config.Log, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "idgen").
		Logger()
}

// Package logging builds the process logger.
package logging

import (
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dshills/signals/internal/config"
	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the configured level, and the
// Level that controls it. The console format is human readable; json
// writes one object per line.
func New(cfg config.LogConfig, w io.Writer) (zerolog.Logger, *Level, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	lvl := NewLevel(level)

	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	logger := zerolog.New(out).
		Level(zerolog.TraceLevel).
		Hook(lvl).
		With().Timestamp().Logger()
	return logger, lvl, nil
}

// ParseLevel parses a case-insensitive level name. An empty name is info.
func ParseLevel(s string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return level, nil
}

// Level is a minimum level that can be changed while loggers built by New
// are in use. It filters events as a zerolog hook, so it can both raise
// and lower the threshold without touching the global level.
type Level struct {
	v atomic.Int32
}

// NewLevel returns a Level set to l.
func NewLevel(l zerolog.Level) *Level {
	lvl := &Level{}
	lvl.Set(l)
	return lvl
}

// Set changes the minimum level.
func (l *Level) Set(level zerolog.Level) {
	l.v.Store(int32(level))
}

// Get returns the minimum level.
func (l *Level) Get() zerolog.Level {
	return zerolog.Level(l.v.Load())
}

// Run implements zerolog.Hook.
func (l *Level) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < l.Get() {
		e.Discard()
	}
}

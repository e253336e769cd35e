// Package gridlog provides the structured logger every solver, fault
// model, and detector takes as an optional dependency. Components pass
// the logger they are given through OrNop, which substitutes a
// disabled logger for nil, so callers that don't care about logging
// don't have to construct one. The methods themselves are not
// nil-receiver safe.
package gridlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger wraps a zerolog.Logger with field helpers matching the
// key-value convenience calling convention used across the module.
type Logger struct {
	z zerolog.Logger
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var output io.Writer = cfg.Output
	if cfg.Format == FormatText {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	z := zerolog.New(output).With().Timestamp().Logger()
	switch cfg.Level {
	case LevelDebug:
		z = z.Level(zerolog.DebugLevel)
	case LevelWarn:
		z = z.Level(zerolog.WarnLevel)
	case LevelError:
		z = z.Level(zerolog.ErrorLevel)
	default:
		z = z.Level(zerolog.InfoLevel)
	}
	return &Logger{z: z}
}

// Nop returns a logger that discards everything, used as the default
// when a component is constructed without an explicit logger.
func Nop() *Logger {
	return &Logger{z: zerolog.Nop()}
}

func (l *Logger) event(e *zerolog.Event, msg string, fields ...any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...any) { l.event(l.z.Debug(), msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.event(l.z.Info(), msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.event(l.z.Warn(), msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.event(l.z.Error(), msg, fields...) }

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{z: l.z.With().Interface(key, value).Logger()}
}

// OrNop returns l, or a disabled logger if l is nil — the "nil-safe
// default" components accept in place of a required dependency.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

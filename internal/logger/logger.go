// Package logger wraps zerolog with the console and JSON setups the emulator uses.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	logger *zerolog.Logger
}

// New writes JSON lines to w at the given level ("debug", "info", ...).
func New(w io.Writer, level string) *Logger {
	l := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &Logger{logger: &l}
}

// NewConsole writes human-readable lines to stderr tagged with the component name.
func NewConsole(level, tag string, noColor bool) *Logger {
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			"s",
			"m",
			zerolog.MessageFieldName,
		},
	}
	l := zerolog.New(out).Level(parseLevel(level)).With().
		Str("s", tag).
		Timestamp().Logger()
	return &Logger{logger: &l}
}

// Nop discards everything.
func Nop() *Logger {
	l := zerolog.Nop()
	return &Logger{logger: &l}
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Module returns a child logger tagged with a subsystem name.
func (l *Logger) Module(name string) *Logger {
	if l == nil {
		return Nop()
	}
	return l.Extend(l.With().Str("m", name))
}

// Extend adds some additional context to the existing logger.
func (l *Logger) Extend(ctx zerolog.Context) *Logger {
	logger := ctx.Logger()
	return &Logger{logger: &logger}
}

func (l *Logger) With() zerolog.Context { return l.logger.With() }

func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }

func (l *Logger) Info() *zerolog.Event { return l.logger.Info() }

func (l *Logger) Warn() *zerolog.Event { return l.logger.Warn() }

func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }

// Every returns a logger that lets at most one event per period through.
// Used for conditions that can repeat every tick.
func (l *Logger) Every(period time.Duration) *Logger {
	s := l.logger.Sample(&zerolog.BurstSampler{Burst: 1, Period: period})
	return &Logger{logger: &s}
}

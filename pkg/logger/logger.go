package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured key/value logger
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	// With returns a child logger that always carries the given fields
	With(keyvals ...interface{}) Logger
}

// Options configures the zerolog backed logger
type Options struct {
	ServiceName string
	Level       string
	Format      string // "json" or "console"
	Output      io.Writer
}

type zeroLogger struct {
	base zerolog.Logger
}

// New creates a logger writing JSON lines (or console output) at the given level
func New(opts Options) Logger {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	if strings.EqualFold(opts.Format, "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	ctx := zerolog.New(output).With().Timestamp()
	if opts.ServiceName != "" {
		ctx = ctx.Str("service", opts.ServiceName)
	}

	return &zeroLogger{base: ctx.Logger().Level(ParseLevel(opts.Level))}
}

// NewLogger creates a new JSON logger with the specified level
func NewLogger(level string) Logger {
	return New(Options{Level: level})
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return &zeroLogger{base: zerolog.Nop()}
}

// ParseLevel maps a level name to a zerolog level, falling back to info
func ParseLevel(value string) zerolog.Level {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return zerolog.InfoLevel
	}

	lvl, err := zerolog.ParseLevel(value)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return lvl
}

func (l *zeroLogger) Debug(msg string, keyvals ...interface{}) {
	write(l.base.Debug(), msg, keyvals)
}

func (l *zeroLogger) Info(msg string, keyvals ...interface{}) {
	write(l.base.Info(), msg, keyvals)
}

func (l *zeroLogger) Warn(msg string, keyvals ...interface{}) {
	write(l.base.Warn(), msg, keyvals)
}

func (l *zeroLogger) Error(msg string, keyvals ...interface{}) {
	write(l.base.Error(), msg, keyvals)
}

func (l *zeroLogger) With(keyvals ...interface{}) Logger {
	return &zeroLogger{base: l.base.With().Fields(normalize(keyvals)).Logger()}
}

func write(event *zerolog.Event, msg string, keyvals []interface{}) {
	// disabled levels hand back a nil event
	if event == nil {
		return
	}

	event.Fields(normalize(keyvals)).Msg(msg)
}

// normalize turns loose variadic pairs into the []interface{} shape zerolog
// expects: string keys, and a "missing" value for a dangling key.
func normalize(keyvals []interface{}) []interface{} {
	if len(keyvals) == 0 {
		return nil
	}

	out := make([]interface{}, 0, len(keyvals)+1)

	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}

		var value interface{} = "missing"
		if i+1 < len(keyvals) {
			value = keyvals[i+1]
		}

		out = append(out, key, value)
	}

	return out
}

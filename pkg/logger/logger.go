package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a component-scoped structured logger backed by zerolog.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	switch cfg.Format {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// NewWriter logs JSON to w at the given level. Used by tests that assert on
// log output.
func NewWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level)}
}

// With returns a child logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithFields returns a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.context(ctx)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l *Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.event(e)
	}
	e.Msg(msg)
}

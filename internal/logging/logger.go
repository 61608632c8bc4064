// Package logging provides structured logging for spyrun, with an
// optional rotating file sink.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors the config's Log.level field and the SPYRUN_LOG_FILE /
// SPYRUN_LOG_STDOUT env var values.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses a case-insensitive level name, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ResolveLevel returns ParseLevel(os.Getenv(envVar)) when envVar is
// set, or fallback otherwise. SPYRUN_LOG_FILE and SPYRUN_LOG_STDOUT
// each override one sink's level independently of the other and of
// the config file's [log] level.
func ResolveLevel(envVar string, fallback Level) Level {
	v, ok := os.LookupEnv(envVar)
	if !ok {
		return fallback
	}
	return ParseLevel(v)
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the structured logging interface used throughout spyrun.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warn(ctx context.Context, err error, msg string, fields ...any)
	Error(ctx context.Context, err error, msg string, fields ...any)

	With(fields ...any) Logger
	WithComponent(component string) Logger
}

// spyrunLogger implements Logger on top of log/slog.
type spyrunLogger struct {
	logger    *slog.Logger
	level     Level
	component string
}

// Config holds logger construction options.
type Config struct {
	Level     Level
	Output    io.Writer
	Component string
}

// New creates a logger writing to cfg.Output (os.Stdout if nil).
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level.slogLevel()})
	return &spyrunLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component}
}

// FileConfig describes the rotating file sink from the config's [log]
// table (path, level, switch).
type FileConfig struct {
	Path  string
	Level Level
	// Switch, when true, forces a rotation of any existing file at
	// Path before the first write of this process run.
	Switch bool
}

// NewFileLogger opens a log file at cfg.Path through lumberjack,
// rotating once on startup when cfg.Switch is set and the file already
// exists. After that the file rotates only when it reaches lumberjack's
// default size limit; there is no time-based (daily) rotation.
func NewFileLogger(cfg FileConfig) (Logger, io.Closer, error) {
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("log path must not be empty")
	}

	writer := &lumberjack.Logger{
		Filename: cfg.Path,
		MaxAge:   1, // days; rotated files older than one day are removed
		Compress: false,
	}

	if cfg.Switch {
		if _, err := os.Stat(cfg.Path); err == nil {
			if err := writer.Rotate(); err != nil {
				return nil, nil, fmt.Errorf("rotate existing log %s: %w", cfg.Path, err)
			}
		}
	}

	logger := New(Config{Level: cfg.Level, Output: writer})
	return logger, writer, nil
}

func (l *spyrunLogger) Debug(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, slog.LevelDebug, nil, msg, fields...)
}

func (l *spyrunLogger) Info(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, slog.LevelInfo, nil, msg, fields...)
}

func (l *spyrunLogger) Warn(ctx context.Context, err error, msg string, fields ...any) {
	l.log(ctx, slog.LevelWarn, err, msg, fields...)
}

func (l *spyrunLogger) Error(ctx context.Context, err error, msg string, fields ...any) {
	l.log(ctx, slog.LevelError, err, msg, fields...)
}

func (l *spyrunLogger) With(fields ...any) Logger {
	return &spyrunLogger{logger: l.logger.With(fields...), level: l.level, component: l.component}
}

func (l *spyrunLogger) WithComponent(component string) Logger {
	return &spyrunLogger{logger: l.logger, level: l.level, component: component}
}

func (l *spyrunLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields ...any) {
	handler := l.logger.Handler()
	if handler == nil || !handler.Enabled(ctx, level) {
		return
	}

	attrs := fields
	if l.component != "" {
		attrs = append([]any{"component", l.component}, attrs...)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.Add(attrs...)

	_ = handler.Handle(ctx, record)
}

// NewTestLogger returns a Logger that discards output, for use in tests.
func NewTestLogger() Logger {
	return New(Config{Level: LevelDebug, Output: io.Discard})
}

// MultiLogger fans every call out to all of its loggers, so the file
// sink and the stdout sink can each run their own independent level
// filter while the rest of the codebase logs through one Logger.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger constructs a Logger that writes to every one of loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Debug(ctx context.Context, msg string, fields ...any) {
	for _, l := range m.loggers {
		l.Debug(ctx, msg, fields...)
	}
}

func (m *MultiLogger) Info(ctx context.Context, msg string, fields ...any) {
	for _, l := range m.loggers {
		l.Info(ctx, msg, fields...)
	}
}

func (m *MultiLogger) Warn(ctx context.Context, err error, msg string, fields ...any) {
	for _, l := range m.loggers {
		l.Warn(ctx, err, msg, fields...)
	}
}

func (m *MultiLogger) Error(ctx context.Context, err error, msg string, fields ...any) {
	for _, l := range m.loggers {
		l.Error(ctx, err, msg, fields...)
	}
}

func (m *MultiLogger) With(fields ...any) Logger {
	out := make([]Logger, len(m.loggers))
	for i, l := range m.loggers {
		out[i] = l.With(fields...)
	}
	return &MultiLogger{loggers: out}
}

func (m *MultiLogger) WithComponent(component string) Logger {
	out := make([]Logger, len(m.loggers))
	for i, l := range m.loggers {
		out[i] = l.WithComponent(component)
	}
	return &MultiLogger{loggers: out}
}

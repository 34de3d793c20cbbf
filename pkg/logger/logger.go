// Package logger provides the structured logger used across the engine.
//
// It wraps a *zap.Logger so that components can log through a nil instance,
// which keeps construction in tests and embedders trivial: a nil *Logger (or
// one built from a nil *zap.Logger) silently drops all records.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin wrapper around zap. All methods are safe to call on a nil
// receiver.
type Logger struct {
	l *zap.Logger
}

// NewLogger wraps an existing zap logger. A nil argument yields a no-op
// logger.
func NewLogger(l *zap.Logger) *Logger {
	return &Logger{l: l}
}

// New builds a production JSON logger writing to stderr at the given minimum
// level. Accepted levels (case-insensitive): "debug", "info", "warn",
// "error". An empty string defaults to "info".
func New(level string) (*Logger, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return NewLogger(l), nil
}

// ParseLevel converts a level string to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unrecognised log level %q", s)
	}
}

// WithFields returns a logger whose records carry the given fields.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	if l == nil || l.l == nil {
		return l
	}
	return &Logger{l: l.l.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	if l == nil || l.l == nil {
		return
	}
	l.l.Error(msg, fields...)
}

// Sync flushes buffered records. Callers typically defer it at shutdown.
func (l *Logger) Sync() error {
	if l == nil || l.l == nil {
		return nil
	}
	return l.l.Sync()
}

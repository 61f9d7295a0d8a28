package redstruct

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

// Logger defines an interface for logging operations.
// Implementations should be safe for concurrent use.
type Logger interface {
	// Info logs informational messages
	Info(ctx context.Context, format string, args ...interface{})

	// Warn logs warning messages
	Warn(ctx context.Context, format string, args ...interface{})

	// Error logs error messages
	Error(ctx context.Context, format string, args ...interface{})

	// Debug logs debug messages
	Debug(ctx context.Context, format string, args ...interface{})
}

// noopLogger is a Logger that does nothing.
type noopLogger struct{}

func (noopLogger) Info(ctx context.Context, format string, args ...interface{})  {}
func (noopLogger) Warn(ctx context.Context, format string, args ...interface{})  {}
func (noopLogger) Error(ctx context.Context, format string, args ...interface{}) {}
func (noopLogger) Debug(ctx context.Context, format string, args ...interface{}) {}

var defaultLogger Logger = noopLogger{}

type logFieldsKey struct{}

// WithLogFields attaches zap fields to ctx. Loggers built by NewZapLogger add
// them to every message logged with that context.
func WithLogFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, logFieldsKey{}, slices.Concat(logFields(ctx), fields))
}

func logFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(logFieldsKey{}).([]zap.Field)
	return fields
}

type zapLogger struct {
	l *zap.Logger
}

// NewZapLogger adapts a zap logger to Logger.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		return defaultLogger
	}
	return &zapLogger{l: l.WithOptions(zap.AddCallerSkip(1))}
}

func (z *zapLogger) sugar(ctx context.Context) *zap.SugaredLogger {
	if fields := logFields(ctx); len(fields) > 0 {
		return z.l.With(fields...).Sugar()
	}
	return z.l.Sugar()
}

func (z *zapLogger) Info(ctx context.Context, format string, args ...interface{}) {
	z.sugar(ctx).Infof(format, args...)
}

func (z *zapLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	z.sugar(ctx).Warnf(format, args...)
}

func (z *zapLogger) Error(ctx context.Context, format string, args ...interface{}) {
	z.sugar(ctx).Errorf(format, args...)
}

func (z *zapLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	z.sugar(ctx).Debugf(format, args...)
}

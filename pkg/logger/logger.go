// Package logger provides a zap-based application logger.
package logger

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging priority.
type Level = zapcore.Level

const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

// TraceIDFn extracts a trace id from a context; it returns "" when none.
type TraceIDFn func(ctx context.Context) string

// Logger writes structured JSON entries tagged with the service name and,
// when available, the trace id of the request.
type Logger struct {
	z       *zap.Logger
	traceID TraceIDFn
}

// New constructs a Logger writing JSON to w at minLevel and above.
func New(w io.Writer, minLevel Level, service string, traceIDFn TraceIDFn) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), minLevel)
	return FromZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).With(zap.String("service", service)), traceIDFn)
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger, traceIDFn TraceIDFn) *Logger {
	return &Logger{z: z, traceID: traceIDFn}
}

// ParseLevel parses a level name such as "debug" or "ERROR".
func ParseLevel(s string) (Level, error) {
	return zapcore.ParseLevel(s)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.Sugar().With(kv...).Desugar(), traceID: l.traceID}
}

func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, LevelDebug, msg, kv)
}

func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, LevelInfo, msg, kv)
}

func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, LevelWarn, msg, kv)
}

func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, LevelError, msg, kv)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) write(ctx context.Context, lvl Level, msg string, kv []any) {
	if !l.z.Core().Enabled(lvl) {
		return
	}
	if l.traceID != nil && ctx != nil {
		if id := l.traceID(ctx); id != "" {
			kv = append(kv, "trace_id", id)
		}
	}
	s := l.z.Sugar()
	switch lvl {
	case LevelDebug:
		s.Debugw(msg, kv...)
	case LevelWarn:
		s.Warnw(msg, kv...)
	case LevelError:
		s.Errorw(msg, kv...)
	default:
		s.Infow(msg, kv...)
	}
}

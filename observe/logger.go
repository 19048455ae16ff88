package observe

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown values map to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// structuredLogger writes one JSON object per line through zerolog.
type structuredLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a new structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	zl := zerolog.New(w).
		Level(ParseLogLevel(level).zerolog()).
		With().Timestamp().Logger()
	return &structuredLogger{zl: zl}
}

// With returns a logger with operation context attached.
func (l *structuredLogger) With(meta OperationMeta) Logger {
	ctx := l.zl.With().Str("op.id", meta.ID())
	if meta.Namespace != "" {
		ctx = ctx.Str("op.namespace", meta.Namespace)
	}
	if meta.Name != "" {
		ctx = ctx.Str("op.name", meta.Name)
	}
	if meta.Version != "" {
		ctx = ctx.Str("op.version", meta.Version)
	}
	return &structuredLogger{zl: ctx.Logger()}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(l.zl.Info(), msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(l.zl.Warn(), msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(l.zl.Error(), msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(l.zl.Debug(), msg, fields)
}

// log writes the event. A nil event means the level is filtered out.
func (l *structuredLogger) log(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch {
		case isRedactedField(f.Key):
			ev = ev.Str(f.Key, "[REDACTED]")
		default:
			if err, ok := f.Value.(error); ok {
				ev = ev.AnErr(f.Key, err)
				continue
			}
			ev = ev.Interface(f.Key, f.Value)
		}
	}
	ev.Msg(msg)
}

var redactedKeys = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = true
	}
	return m
}()

// isRedactedField returns true if the field should be redacted.
func isRedactedField(key string) bool {
	return redactedKeys[key]
}

// Ensure structuredLogger implements Logger
var _ Logger = (*structuredLogger)(nil)

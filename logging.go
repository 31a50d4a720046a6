package strata

import (
	"context"
	"log/slog"
	"time"
)

// LogLevel orders log events by severity.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LogEvent describes one engine occurrence worth logging: a resolution, a
// recovered diagnostic, an evaluator run or a catalog mutation.
type LogEvent struct {
	Level    LogLevel
	Message  string
	EntityID string
	Property string
	Layer    string
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// Logger records engine events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// NewSlogLogger routes engine events to a structured slog logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Log(event LogEvent) {
	attrs := make([]slog.Attr, 0, 7)
	if event.EntityID != "" {
		attrs = append(attrs, slog.String("entity", event.EntityID))
	}
	if event.Property != "" {
		attrs = append(attrs, slog.String("property", event.Property))
	}
	if event.Layer != "" {
		attrs = append(attrs, slog.String("layer", event.Layer))
	}
	if event.Engine != "" {
		attrs = append(attrs, slog.String("engine", event.Engine))
	}
	if event.Expr != "" {
		attrs = append(attrs, slog.String("expr", event.Expr))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), slogLevel(event.Level), event.Message, attrs...)
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	callerIDKey
	loggerKey
)

// Options controls how New builds a logger.
type Options struct {
	Service string
	Level   string
	// Format is "json" (default) or "text".
	Format string
}

// New creates a structured logger writing to stdout.
func New(service, level string) *slog.Logger {
	return NewWithOptions(Options{Service: service, Level: level}, os.Stdout)
}

// NewWithOptions creates a structured logger writing to w.
func NewWithOptions(opts Options, w io.Writer) *slog.Logger {
	lvl := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(h).With(slog.String("service", opts.Service))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID stores the request id used to correlate log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithCallerID stores the authenticated caller id for logging.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerIDKey, id)
}

// CallerIDFromContext returns the caller id or "".
func CallerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callerIDKey).(string)
	return id
}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request-scoped logger, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithContext decorates l with request_id, caller_id and the active trace.
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With(slog.String("request_id", id))
	}
	if id := CallerIDFromContext(ctx); id != "" {
		l = l.With(slog.String("caller_id", id))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}

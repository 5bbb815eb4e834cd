package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/timiFoxtrot/main-product-store/pkg/database"

type slowQueryConfig struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryConfig]

// SetSlowQueryLogging logs every traced query slower than threshold as a
// warning. A zero threshold turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryConfig{threshold: threshold, logger: logger})
}

// TraceQuery starts a client span for a store operation. Call the returned
// func with the operation's error when it completes:
//
//	ctx, end := database.TraceQuery(ctx, "postgresql", "products.list", query)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		cfg := slowQueries.Load()
		if cfg == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= cfg.threshold {
			cfg.logger.WarnContext(ctx, "slow query",
				slog.String("system", system),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			)
		}
	}
}

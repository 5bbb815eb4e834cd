package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgxpool.Pool used by repositories. pgxmock pools
// satisfy it as well.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultPostgresConfig returns pool defaults for a single service instance.
func DefaultPostgresConfig(url string) PostgresConfig {
	return PostgresConfig{
		URL:             url,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 15 * time.Minute,
	}
}

const (
	connectAttempts = 3
	baseBackoff     = time.Second
)

// backoff returns 1s, 2s, 4s... with +/-25% jitter.
func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := baseBackoff << attempt
	jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- jitter only
	return base + jitter
}

// withRetry runs fn up to connectAttempts times, sleeping between attempts
// while retryable(err) holds.
func withRetry(ctx context.Context, logger *slog.Logger, what string, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if attempt == connectAttempts-1 {
			break
		}
		wait := backoff(attempt)
		if logger != nil {
			logger.Warn(what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, connectAttempts, err)
}

// NewPostgresPool opens a pgx pool and pings it, retrying transient failures.
func NewPostgresPool(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	var pool *pgxpool.Pool
	always := func(error) bool { return true }
	err = withRetry(ctx, logger, "connect postgres", always, func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Package postgres is the metadata-store backend: the recordings, analysis,
// streams and detector_config tables written by the capture pipeline.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"panoptic/internal/playback"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options configures the connection pool and retry behaviour.
type Options struct {
	DSN            string
	MaxConns       int32
	ConnectRetries int
	RetryDelay     time.Duration
	// QueryRetries is how many extra attempts a read gets after an error
	// pgconn reports as safe to retry.
	QueryRetries int
}

// Store reads playback metadata from PostgreSQL.
type Store struct {
	pool         *pgxpool.Pool
	log          *slog.Logger
	queryRetries int
	retryDelay   time.Duration
}

var (
	_ playback.SegmentCatalog      = (*Store)(nil)
	_ playback.StreamDirectory     = (*Store)(nil)
	_ playback.RecordingStore      = (*Store)(nil)
	_ playback.DetectorConfigStore = (*Store)(nil)
)

// Connect creates the pool and pings the database, retrying up to
// ConnectRetries times. When every attempt fails the error wraps
// playback.ErrUpstreamUnavailable.
func Connect(ctx context.Context, opts Options, log *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	attempts := opts.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, pool.Ping(pingCtx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.RetryDelay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("database connection failed",
				slog.Int("max_attempts", attempts),
				slog.Duration("retry_in", next),
				slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		pool.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ping after %d attempts: %v", playback.ErrUpstreamUnavailable, attempts, err)
	}

	log.Info("database connection established",
		slog.String("host", cfg.ConnConfig.Host),
		slog.String("database", cfg.ConnConfig.Database),
		slog.Int("max_conns", int(cfg.MaxConns)))

	return &Store{
		pool:         pool,
		log:          log,
		queryRetries: opts.QueryRetries,
		retryDelay:   200 * time.Millisecond,
	}, nil
}

// Ping checks connectivity, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", playback.ErrUpstreamUnavailable, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

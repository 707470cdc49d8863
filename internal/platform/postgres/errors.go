package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"panoptic/internal/playback"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isConnectionError reports whether err means the store could not be
// reached, as opposed to a query that ran and failed.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P01..57P03 are shutdowns.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// classify maps driver errors onto the playback error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return playback.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isConnectionError(err):
		return fmt.Errorf("%w: %v", playback.ErrUpstreamUnavailable, err)
	default:
		return err
	}
}

// read runs fn, retrying connection failures up to s.queryRetries times,
// and returns the classified error prefixed with op. Any other error stops
// the retries immediately.
func (s *Store) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && !isConnectionError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(uint(s.queryRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("retrying metadata query",
				slog.String("op", op),
				slog.Duration("next", next),
				slog.String("error", err.Error()))
		}),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return fmt.Errorf("%s: %w", op, classify(err))
}

// escapeLike escapes LIKE wildcards so stream ids such as
// "live_botafogo2_CAM4" match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// eventPattern is the filepath LIKE pattern of one event directory.
func eventPattern(streamID playback.StreamID, eventID playback.EventID) string {
	return escapeLike(string(streamID)) + "/" +
		escapeLike(eventID.Date) + "/" +
		escapeLike(eventID.Session) + "/%"
}

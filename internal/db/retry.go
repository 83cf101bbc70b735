package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Retry policy for transient connection loss. Only one extra attempt is made.
var (
	retryClock clock.Clock = clock.WallClock
	retryDelay             = 50 * time.Millisecond
)

const retryAttempts = 2

// IsConnLoss reports whether err means the connection to Postgres dropped
// before the statement could complete.
func IsConnLoss(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}
	return false
}

// WithRetry runs fn, calling it once more if the first attempt failed with
// connection loss. Any other error is returned as is, so callers can still
// match driver errors and sql.ErrNoRows.
//
// fn must be safe to run twice: a connection can drop after the server
// committed. Non-idempotent inserts call the database directly instead.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			last = fn(ctx)
			return last
		},
		IsFatalError: func(err error) bool { return !IsConnLoss(err) },
		NotifyFunc: func(err error, attempt int) {
			if attempt < retryAttempts {
				zap.L().Warn("database connection lost, retrying", zap.Int("attempt", attempt), zap.Error(err))
			}
		},
		Attempts: retryAttempts,
		Delay:    retryDelay,
		Clock:    retryClock,
		Stop:     ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsRetryStopped(err) && ctx.Err() != nil:
		return ctx.Err()
	case last != nil:
		return last
	default:
		return err
	}
}

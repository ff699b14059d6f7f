package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// Pinger is implemented by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

var _ Pinger = (*sql.DB)(nil)

// WaitReady pings db until it answers or maxWait elapses. A zero maxWait tries once.
func WaitReady(ctx context.Context, db Pinger, maxWait time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 1.5,
		Jitter: true,
	}
	deadline := time.Now().Add(maxWait)

	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}

		wait := b.Duration()
		if time.Now().Add(wait).After(deadline) {
			return fmt.Errorf("%w after %d attempts: %w", ErrNotReady, int(b.Attempt()), err)
		}

		logger.Debug("database not ready", zap.Error(err), zap.Duration("retry_in", wait))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		case <-time.After(wait):
		}
	}
}

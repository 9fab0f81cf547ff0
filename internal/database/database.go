// Package database opens the record store backends: MariaDB, SQLite and
// Redis. Each connection is created once at startup and handed to the
// records plugin; this package owns opening, pool settings and readiness.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retryPolicy bounds how long a backend may take to accept connections.
type retryPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	timeout  time.Duration
}

// startupRetry covers a database container that is still starting when the
// server launches.
var startupRetry = retryPolicy{
	attempts: 10,
	initial:  time.Second,
	max:      30 * time.Second,
	timeout:  5 * time.Second,
}

// waitReady pings until the backend answers, doubling the pause between
// attempts. It returns the last ping error once attempts run out.
func waitReady(ctx context.Context, backend string, p retryPolicy, ping func(context.Context) error) error {
	backoff := p.initial
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}

		slog.Warn("record store not ready, retrying",
			slog.String("backend", backend),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, p.max)
	}
	return fmt.Errorf("%s not reachable after %d attempts: %w", backend, p.attempts, err)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const listenRetryDelay = 2 * time.Second

// Listener turns PostgreSQL NOTIFY messages on one channel into wakeups.
// Wakeups are coalesced: a burst of notifications while the consumer is busy
// results in a single pending signal.
type Listener struct {
	dsn     string
	channel string
	logger  *slog.Logger
	wake    chan struct{}
}

func NewListener(dsn, channel string, logger *slog.Logger) *Listener {
	return &Listener{
		dsn:     dsn,
		channel: channel,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// C delivers a value after one or more notifications arrived.
func (l *Listener) C() <-chan struct{} {
	return l.wake
}

// Run listens until ctx is cancelled, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.logger != nil {
			l.logger.WarnContext(ctx, "outbox listener disconnected", "channel", l.channel, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(listenRetryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	// Anything committed before LISTEN took effect is picked up by this signal.
	l.signal()

	for {
		if _, err := conn.WaitForNotification(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.signal()
	}
}

func (l *Listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Package relay drains the notification outbox towards an external publisher.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"becoming/pkg/platform/circuit"
	"becoming/pkg/platform/events"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 5 * time.Second
)

// Publisher delivers a single event downstream.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Relay moves events from the outbox to a Publisher. Delivery is at least
// once: an event is marked published only after Publish succeeded, so a crash
// between the two re-sends it.
type Relay struct {
	outbox    events.Outbox
	publisher Publisher
	logger    *slog.Logger
	wakeup    <-chan struct{}
	interval  time.Duration
	batchSize int
	now       func() time.Time
	breaker   *circuit.Breaker
	limiter   *rate.Limiter
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithWakeup triggers a drain whenever ch receives, in addition to polling.
func WithWakeup(ch <-chan struct{}) Option {
	return func(r *Relay) {
		r.wakeup = ch
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBreaker records every publish outcome on b and logs when it opens or
// closes. Delivery continues while it is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) {
		r.breaker = b
	}
}

// WithPublishRate caps deliveries at perSecond events with the given burst.
// A non-positive rate leaves publishing unpaced.
func WithPublishRate(perSecond float64, burst int) Option {
	return func(r *Relay) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func New(outbox events.Outbox, publisher Publisher, opts ...Option) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run drains the outbox until ctx is cancelled. Publish failures are logged
// and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logError(ctx, "outbox drain failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.wakeup:
		}
	}
}

// Drain publishes every pending event in outbox order and returns how many
// were delivered. It stops at the first publish failure so ordering holds.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		batch, err := r.outbox.Unpublished(ctx, r.batchSize)
		if err != nil {
			return total, fmt.Errorf("load pending events: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		delivered := make([]uuid.UUID, 0, len(batch))
		var publishErr error
		for _, event := range batch {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					publishErr = fmt.Errorf("wait to publish %s: %w", event.ID, err)
					break
				}
			}
			if err := r.publisher.Publish(ctx, event); err != nil {
				publishErr = fmt.Errorf("publish %s %s: %w", event.Name, event.ID, err)
				r.recordFailure(ctx)
				break
			}
			r.recordSuccess(ctx)
			delivered = append(delivered, event.ID)
		}
		if err := r.outbox.MarkPublished(ctx, delivered, r.now()); err != nil {
			return total, fmt.Errorf("mark events published: %w", err)
		}
		total += len(delivered)
		if publishErr != nil {
			return total, publishErr
		}
		if len(batch) < r.batchSize {
			return total, nil
		}
	}
}

func (r *Relay) recordFailure(ctx context.Context) {
	if r.breaker == nil {
		return
	}
	if _, change := r.breaker.RecordFailure(); change.Opened && r.logger != nil {
		r.logger.WarnContext(ctx, "publisher circuit opened", "circuit", r.breaker.Name())
	}
}

func (r *Relay) recordSuccess(ctx context.Context) {
	if r.breaker == nil {
		return
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed && r.logger != nil {
		r.logger.InfoContext(ctx, "publisher circuit closed", "circuit", r.breaker.Name())
	}
}

func (r *Relay) logError(ctx context.Context, msg string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.ErrorContext(ctx, msg, "error", err)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"becoming/internal/becoming/handler"
	"becoming/internal/becoming/ports"
	recordstore "becoming/internal/becoming/store"
	httpapi "becoming/internal/http"
	"becoming/internal/ledger"
	"becoming/internal/platform/config"
	"becoming/internal/platform/kafka/producer"
	"becoming/internal/platform/postgres"
	"becoming/internal/platform/redis"
	ratelimitmetrics "becoming/internal/ratelimit/metrics"
	ratelimitmw "becoming/internal/ratelimit/middleware"
	ratelimitmodels "becoming/internal/ratelimit/models"
	"becoming/internal/ratelimit/store/bucket"
	id "becoming/pkg/domain"
	"becoming/pkg/platform/circuit"
	"becoming/pkg/platform/events"
	eventsmemory "becoming/pkg/platform/events/store/memory"
	eventspostgres "becoming/pkg/platform/events/store/postgres"
)

type prunableOutbox interface {
	events.Outbox
	events.Pruner
	events.Reader
}

// storage is the record store, its outbox and how to wake the relay.
type storage struct {
	records ports.RecordReader
	tx      ports.RecordStoreTx
	outbox  prunableOutbox
	// listener is nil for the in-memory store; the relay then polls only.
	listener *postgres.Listener
	checks   []httpapi.HealthCheck
	close    func()
}

func openStorage(ctx context.Context, cfg config.Server, log *slog.Logger) (*storage, error) {
	now := time.Now().UTC()
	if cfg.DatabaseURL == "" {
		log.InfoContext(ctx, "using in-memory record store", "admin", cfg.Admin.String())
		outbox := eventsmemory.NewInMemoryStore()
		records := recordstore.NewInMemoryStore(cfg.Admin, outbox, now)
		return &storage{records: records, tx: records, outbox: outbox, close: func() {}}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	records := recordstore.NewPostgres(db)
	if err := records.Init(ctx, cfg.Admin, now); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init record: %w", err)
	}
	record, err := records.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load record: %w", err)
	}
	outbox := eventspostgres.New(db)
	log.InfoContext(ctx, "using postgres record store", "admin", record.Admin.String())

	return &storage{
		records:  records,
		tx:       newRecordPostgresTx(db, outbox),
		outbox:   outbox,
		listener: postgres.NewListener(cfg.DatabaseURL, eventspostgres.NotifyChannel, log),
		checks:   []httpapi.HealthCheck{{Name: "postgres", Check: db.PingContext}},
		close:    func() { _ = db.Close() },
	}, nil
}

// fundedLedger is a ledger that development accounts can be credited on.
type fundedLedger interface {
	ports.Ledger
	Deposit(ctx context.Context, account id.AccountID, amount id.Balance) error
}

// shared is the value ledger and the rate limit buckets. Both live in Redis
// when REDIS_URL is set so replicas agree on balances and budgets.
type shared struct {
	ledger  fundedLedger
	buckets ratelimitmw.BucketStore
	checks  []httpapi.HealthCheck
	close   func()
}

func openShared(ctx context.Context, cfg config.Server, log *slog.Logger) (shared, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return shared{}, err
	}
	if client == nil {
		log.InfoContext(ctx, "using in-memory ledger and rate limits")
		return shared{
			ledger:  ledger.NewInMemoryLedger(),
			buckets: bucket.NewInMemoryBucketStore(),
			close:   func() {},
		}, nil
	}
	log.InfoContext(ctx, "using redis ledger and rate limits")
	return shared{
		ledger:  ledger.NewRedisLedger(client.Client),
		buckets: bucket.NewRedisBucketStore(client.Client),
		checks:  []httpapi.HealthCheck{{Name: "redis", Check: client.Health}},
		close:   func() { _ = client.Close() },
	}, nil
}

// limitOptions limits public reads per client address and authenticated
// calls per caller.
func limitOptions(cfg config.RateLimitConfig, buckets ratelimitmw.BucketStore, log *slog.Logger, m *ratelimitmetrics.Metrics) []handler.Option {
	mw := ratelimitmw.New(buckets, log,
		ratelimitmw.WithLimit(ratelimitmodels.ClassRead, ratelimitmodels.Limit{Requests: cfg.Reads, Window: cfg.Window}),
		ratelimitmw.WithLimit(ratelimitmodels.ClassWrite, ratelimitmodels.Limit{Requests: cfg.Writes, Window: cfg.Window}),
		ratelimitmw.WithMetrics(m),
	)
	return []handler.Option{
		handler.WithReadLimit(mw.ByIP(ratelimitmodels.ClassRead)),
		handler.WithWriteLimit(mw.ByCaller(ratelimitmodels.ClassWrite)),
	}
}

// fundDevAccounts credits each named development account that holds no
// value yet, so restarts against a persistent ledger do not mint more.
func fundDevAccounts(ctx context.Context, l fundedLedger, amount uint64, log *slog.Logger) error {
	if amount == 0 {
		return nil
	}
	for _, name := range id.DevAccountNames {
		account := id.DevAccount(name)
		balance, err := l.BalanceOf(ctx, account)
		if err != nil {
			return fmt.Errorf("read %s balance: %w", name, err)
		}
		if balance != 0 {
			continue
		}
		if err := l.Deposit(ctx, account, id.Balance(amount)); err != nil {
			return fmt.Errorf("fund %s: %w", name, err)
		}
		log.DebugContext(ctx, "funded dev account", "name", name, "account", account.String(), "amount", amount)
	}
	return nil
}

// breakerCheck fails while notifications cannot be delivered downstream.
func breakerCheck(b *circuit.Breaker) func(context.Context) error {
	return func(context.Context) error {
		if b.IsOpen() {
			return errors.New(b.Name() + " circuit open")
		}
		return nil
	}
}

// logPublisher stands in for Kafka when no brokers are configured.
type logPublisher struct {
	logger *slog.Logger
}

func (p logPublisher) Publish(ctx context.Context, event events.Event) error {
	p.logger.InfoContext(ctx, "notification",
		"event_id", event.ID.String(),
		"event_type", event.Name,
		"topics", event.Topics,
		"payload", string(event.Payload),
		"request_id", event.RequestID,
	)
	return nil
}

type publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

func openPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (publisher, []httpapi.HealthCheck, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.InfoContext(ctx, "no kafka brokers configured, notifications are logged")
		return logPublisher{logger: log}, nil, func() {}, nil
	}
	p, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := p.EnsureTopic(ctx, 1, 1); err != nil {
		log.WarnContext(ctx, "could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
	}
	checks := []httpapi.HealthCheck{{Name: "kafka", Check: p.Ping}}
	return p, checks, p.Close, nil
}

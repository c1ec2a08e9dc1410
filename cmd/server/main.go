package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"becoming/internal/becoming/handler"
	becomingmetrics "becoming/internal/becoming/metrics"
	"becoming/internal/becoming/service"
	httpapi "becoming/internal/http"
	jwttoken "becoming/internal/jwt_token"
	"becoming/internal/platform/config"
	"becoming/internal/platform/httpserver"
	"becoming/internal/platform/logger"
	platformmetrics "becoming/internal/platform/metrics"
	ratelimitmetrics "becoming/internal/ratelimit/metrics"
	"becoming/pkg/platform/circuit"
	"becoming/pkg/platform/events/janitor"
	"becoming/pkg/platform/events/relay"
)

const publisherFailureThreshold = 3

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "becoming:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.close()

	sh, err := openShared(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer sh.close()
	if err := fundDevAccounts(ctx, sh.ledger, cfg.DevAccountBalance, log); err != nil {
		return err
	}

	pub, pubChecks, closePublisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}
	defer closePublisher()

	svc, err := service.New(store.records, store.tx, sh.ledger,
		service.WithLogger(log),
		service.WithMetrics(becomingmetrics.New(reg)),
		service.WithEventReader(store.outbox),
	)
	if err != nil {
		return err
	}

	breaker := circuit.New("publisher", circuit.WithFailureThreshold(publisherFailureThreshold))
	relayOpts := []relay.Option{
		relay.WithLogger(log),
		relay.WithPollInterval(cfg.OutboxPollInterval),
		relay.WithBreaker(breaker),
		relay.WithPublishRate(cfg.OutboxPublishRate, int(math.Ceil(cfg.OutboxPublishRate))),
	}
	if store.listener != nil {
		relayOpts = append(relayOpts, relay.WithWakeup(store.listener.C()))
	}
	outboxRelay, err := relay.New(store.outbox, pub, relayOpts...)
	if err != nil {
		return err
	}

	var outboxJanitor *janitor.Janitor
	if cfg.OutboxRetention > 0 {
		outboxJanitor, err = janitor.New(store.outbox, cfg.OutboxPruneSchedule, cfg.OutboxRetention, janitor.WithLogger(log))
		if err != nil {
			return err
		}
	}

	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer))
	checks := append(append(store.checks, sh.checks...), pubChecks...)
	checks = append(checks, httpapi.HealthCheck{Name: "outbox_relay", Check: breakerCheck(breaker)})
	router := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		Metrics:        platformmetrics.New(reg),
		Gatherer:       reg,
		HealthChecks:   checks,
		TrustedProxies: cfg.TrustedProxies,
	}, handler.New(svc, log, validator, limitOptions(cfg.RateLimit, sh.buckets, log, ratelimitmetrics.New(reg))...))
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting becoming", "addr", cfg.Addr, "environment", cfg.Environment)
		return httpserver.Serve(gctx, srv)
	})
	g.Go(func() error {
		return outboxRelay.Run(gctx)
	})
	if store.listener != nil {
		g.Go(func() error {
			return store.listener.Run(gctx)
		})
	}
	if outboxJanitor != nil {
		g.Go(func() error {
			return outboxJanitor.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.InfoContext(context.Background(), "shutdown complete")
	return nil
}

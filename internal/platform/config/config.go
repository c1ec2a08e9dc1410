package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/middleware/metadata"
	platformstrings "becoming/pkg/platform/strings"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	devSigningKey = "dev-secret-key-change-in-production"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	DatabaseURL string

	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig

	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix

	// Deployer is the identity that deployed the record store. It becomes the
	// admin unless Admin is set explicitly.
	Deployer id.AccountID
	Admin    id.AccountID

	OutboxPollInterval time.Duration
	// OutboxRetention is how long delivered events stay in the outbox. Zero
	// keeps them forever.
	OutboxRetention     time.Duration
	OutboxPruneSchedule string
	// OutboxPublishRate caps relay deliveries per second. Zero is unpaced.
	OutboxPublishRate float64
	// DevAccountBalance funds the named dev accounts at startup outside
	// production. Zero disables funding.
	DevAccountBalance uint64
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig holds per-window request budgets. Zero disables a class.
type RateLimitConfig struct {
	Reads  int
	Writes int
	Window time.Duration
}

type AuthConfig struct {
	SigningKey string
	Issuer     string
	TokenTTL   time.Duration
}

// IsProduction reports whether the process runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

// FromEnv builds a Server config from environment variables, loading a .env
// file first when one is present.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}
	return fromLookup(os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func fromLookup(lookup lookupFunc) (Server, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := Server{
		Addr:        get("BECOMING_ADDR", ":8080"),
		Environment: get("ENVIRONMENT", EnvDevelopment),
		LogLevel:    get("LOG_LEVEL", "info"),
		DatabaseURL: get("DATABASE_URL", ""),
		Redis: RedisConfig{
			URL:          get("REDIS_URL", ""),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: platformstrings.SplitList(get("KAFKA_BROKERS", ""), ","),
			Topic:   get("KAFKA_TOPIC", "becoming.events"),
		},
		Auth: AuthConfig{
			SigningKey: get("JWT_SIGNING_KEY", devSigningKey),
			Issuer:     get("JWT_ISSUER", "becoming"),
		},
	}

	var err error
	if cfg.Auth.TokenTTL, err = parseDuration(get("JWT_TOKEN_TTL", "1h")); err != nil {
		return Server{}, fmt.Errorf("JWT_TOKEN_TTL: %w", err)
	}
	if cfg.OutboxPollInterval, err = parseDuration(get("OUTBOX_POLL_INTERVAL", "5s")); err != nil {
		return Server{}, fmt.Errorf("OUTBOX_POLL_INTERVAL: %w", err)
	}
	if raw := get("OUTBOX_RETENTION", "168h"); raw != "0" {
		if cfg.OutboxRetention, err = parseDuration(raw); err != nil {
			return Server{}, fmt.Errorf("OUTBOX_RETENTION: %w", err)
		}
	}
	cfg.OutboxPruneSchedule = get("OUTBOX_PRUNE_SCHEDULE", "@hourly")
	if cfg.OutboxPublishRate, err = strconv.ParseFloat(get("OUTBOX_PUBLISH_RATE", "0"), 64); err != nil {
		return Server{}, fmt.Errorf("OUTBOX_PUBLISH_RATE: %w", err)
	}
	if cfg.TrustedProxies, err = metadata.ParseTrustedProxies(
		platformstrings.SplitList(get("TRUSTED_PROXIES", ""), ","),
	); err != nil {
		return Server{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if cfg.RateLimit.Window, err = parseDuration(get("RATE_LIMIT_WINDOW", "1m")); err != nil {
		return Server{}, fmt.Errorf("RATE_LIMIT_WINDOW: %w", err)
	}
	if cfg.RateLimit.Reads, err = strconv.Atoi(get("RATE_LIMIT_READS", "600")); err != nil {
		return Server{}, fmt.Errorf("RATE_LIMIT_READS: %w", err)
	}
	if cfg.RateLimit.Writes, err = strconv.Atoi(get("RATE_LIMIT_WRITES", "60")); err != nil {
		return Server{}, fmt.Errorf("RATE_LIMIT_WRITES: %w", err)
	}

	defaultBalance := "0"
	if cfg.Environment != EnvProduction {
		defaultBalance = "1000000000000"
	}
	if cfg.DevAccountBalance, err = strconv.ParseUint(get("DEV_ACCOUNT_BALANCE", defaultBalance), 10, 64); err != nil {
		return Server{}, fmt.Errorf("DEV_ACCOUNT_BALANCE: %w", err)
	}

	defaultDeployer := ""
	if cfg.Environment != EnvProduction {
		defaultDeployer = "alice"
	}
	if raw := get("DEPLOYER_ACCOUNT", defaultDeployer); raw != "" {
		if cfg.Deployer, err = id.ResolveAccount(raw); err != nil {
			return Server{}, fmt.Errorf("DEPLOYER_ACCOUNT: %w", err)
		}
	}
	cfg.Admin = cfg.Deployer
	if raw := get("ADMIN_ACCOUNT", ""); raw != "" {
		if cfg.Admin, err = id.ResolveAccount(raw); err != nil {
			return Server{}, fmt.Errorf("ADMIN_ACCOUNT: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that must never reach production.
func (s Server) Validate() error {
	if s.Addr == "" {
		return errors.New("BECOMING_ADDR is required")
	}
	if s.Auth.SigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required")
	}
	if s.OutboxPollInterval <= 0 {
		return errors.New("OUTBOX_POLL_INTERVAL must be positive")
	}
	if s.OutboxPublishRate < 0 {
		return errors.New("OUTBOX_PUBLISH_RATE must not be negative")
	}
	if s.RateLimit.Reads < 0 || s.RateLimit.Writes < 0 {
		return errors.New("RATE_LIMIT_READS and RATE_LIMIT_WRITES must not be negative")
	}
	if !s.IsProduction() {
		return nil
	}
	if s.Auth.SigningKey == devSigningKey {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}
	if s.Deployer.IsZero() && s.Admin.IsZero() {
		return errors.New("DEPLOYER_ACCOUNT or ADMIN_ACCOUNT must be set in production")
	}
	if s.DevAccountBalance != 0 {
		return errors.New("DEV_ACCOUNT_BALANCE must be 0 in production")
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}

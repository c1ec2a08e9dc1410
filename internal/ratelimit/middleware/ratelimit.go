// Package middleware applies sliding-window request limits to chi routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"becoming/internal/ratelimit/metrics"
	"becoming/internal/ratelimit/models"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/httputil"
	"becoming/pkg/requestcontext"
)

// BucketStore counts requests per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	store   BucketStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	limits  map[models.EndpointClass]models.Limit
}

type Option func(*Middleware)

func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		m.limits[class] = limit
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

func New(store BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		limits: make(map[models.EndpointClass]models.Limit),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ByIP limits by the client address resolved by the metadata middleware.
func (m *Middleware) ByIP(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) (string, string) {
		return "ip", requestcontext.ClientIP(r.Context())
	})
}

// ByCaller limits by authenticated caller and falls back to the client
// address when no caller is present. Mount it after RequireAuth.
func (m *Middleware) ByCaller(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) (string, string) {
		if caller, ok := requestcontext.Caller(r.Context()); ok {
			return "caller", caller.String()
		}
		return "ip", requestcontext.ClientIP(r.Context())
	})
}

func (m *Middleware) limit(class models.EndpointClass, keyFn func(*http.Request) (kind, value string)) func(http.Handler) http.Handler {
	limit := m.limits[class]
	return func(next http.Handler) http.Handler {
		if !limit.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			kind, value := keyFn(r)
			key := kind + ":" + string(class) + ":" + value

			result, err := m.store.Allow(ctx, key, limit.Requests, limit.Window)
			if err != nil {
				// Fail open.
				m.logger.WarnContext(ctx, "rate limit check failed",
					"error", err,
					"class", class,
					"request_id", requestcontext.RequestID(ctx),
				)
				if m.metrics != nil {
					m.metrics.StoreErrors.Inc()
				}
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.Rejected.WithLabelValues(string(class), kind).Inc()
				}
				m.logger.InfoContext(ctx, "rate limit exceeded",
					"class", class,
					"key", kind,
					"retry_after", result.RetryAfter,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

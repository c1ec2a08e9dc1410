// Package httpapi assembles the process router: shared middleware, ops
// endpoints and the feature handlers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "becoming/internal/platform/metrics"
	"becoming/pkg/platform/httputil"
	"becoming/pkg/platform/middleware/metadata"
	request "becoming/pkg/platform/middleware/request"
	"becoming/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config carries what the router needs besides the feature handlers.
type Config struct {
	Logger       *slog.Logger
	Metrics      *platformmetrics.Metrics
	Gatherer     prometheus.Gatherer
	HealthChecks []HealthCheck
	// TrustedProxies may set the client address via forwarding headers.
	TrustedProxies []netip.Prefix
	// Clock fixes the per-request time. Defaults to time.Now.
	Clock func() time.Time
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires middleware, /health, /metrics and every registrar.
func NewRouter(cfg Config, registrars ...Registrar) http.Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(metadata.Middleware(cfg.TrustedProxies))
	r.Use(requesttime.MiddlewareWithClock(clock))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(request.Logger(cfg.Logger))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}

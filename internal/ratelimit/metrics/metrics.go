package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "becoming_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter, by endpoint class and key kind",
		}, []string{"class", "key"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the bucket store errored",
		}),
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the record store operations.
type Metrics struct {
	Mints             prometheus.Counter
	MilestonesAdded   prometheus.Counter
	TipsSent          prometheus.Counter
	TipValue          prometheus.Counter
	AdminRotations    prometheus.Counter
	UnrevertedTips    prometheus.Counter
	Rejected          *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mints: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_mints_total",
			Help: "Total number of successful identity bindings",
		}),
		MilestonesAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_milestones_added_total",
			Help: "Total number of milestones appended",
		}),
		TipsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_tips_sent_total",
			Help: "Total number of forwarded tips",
		}),
		TipValue: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_tip_value_total",
			Help: "Sum of forwarded tip amounts",
		}),
		AdminRotations: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_admin_rotations_total",
			Help: "Total number of admin role rotations",
		}),
		UnrevertedTips: f.NewCounter(prometheus.CounterOpts{
			Name: "becoming_tip_reverts_failed_total",
			Help: "Tips whose value moved but whose record did not commit and could not be reverted",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "becoming_rejected_calls_total",
			Help: "Calls that returned a contract error, by operation and error code",
		}, []string{"operation", "code"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "becoming_operation_duration_seconds",
			Help:    "Duration of record store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementMints() {
	m.Mints.Inc()
}

func (m *Metrics) IncrementMilestonesAdded() {
	m.MilestonesAdded.Inc()
}

// RecordTip counts one tip and adds its value.
func (m *Metrics) RecordTip(amount uint64) {
	m.TipsSent.Inc()
	m.TipValue.Add(float64(amount))
}

func (m *Metrics) IncrementAdminRotations() {
	m.AdminRotations.Inc()
}

func (m *Metrics) IncrementUnrevertedTips() {
	m.UnrevertedTips.Inc()
}

func (m *Metrics) IncrementRejected(operation, code string) {
	m.Rejected.WithLabelValues(operation, code).Inc()
}

// ObserveOperation records the duration of operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

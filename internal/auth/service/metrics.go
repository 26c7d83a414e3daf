package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the account service collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	Operations  *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	OTPsCleared prometheus.Counter
	OTPsIssued  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_operations_total",
				Help: "Total number of account operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounts_operation_duration_seconds",
				Help:    "Account operation duration in seconds, password hashing included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OTPsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accounts_otps_cleared_total",
			Help: "Expired one-time codes cleared by housekeeping",
		}),
		OTPsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_otps_issued_total",
				Help: "One-time codes issued by purpose",
			},
			[]string{"purpose"},
		),
	}

	reg.MustRegister(m.Operations, m.Duration, m.OTPsCleared, m.OTPsIssued)
	return m
}

// observe records one operation; use as
// defer s.Metrics.observe("login", time.Now(), &err).
func (m *Metrics) observe(operation string, start time.Time, err *error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, Outcome(*err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) otpIssued(purpose string) {
	if m == nil {
		return
	}
	m.OTPsIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) otpsCleared(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.OTPsCleared.Add(float64(n))
}

// Package metrics provides Prometheus metrics for the rotator
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "client_secret_rotator"
)

// Rotation statuses recorded by RecordRotation.
const (
	StatusSuccess      = "success"
	StatusMintError    = "mint_error"
	StatusPersistError = "persist_error"
	StatusLocked       = "locked"
)

// Metrics holds all Prometheus metrics for the rotator. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// ChecksTotal counts expiry checks by decision
	ChecksTotal *prometheus.CounterVec
	// RotationsTotal counts rotation attempts by status
	RotationsTotal *prometheus.CounterVec
	// MintDuration measures token signing duration
	MintDuration prometheus.Histogram
	// SecretExpiryTimestamp is the exp claim of the current secret
	SecretExpiryTimestamp prometheus.Gauge
	// LastRotationTimestamp tracks the last successful rotation
	LastRotationTimestamp prometheus.Gauge
	// HealthStatus tracks health status per component
	HealthStatus *prometheus.GaugeVec
}

// New creates all metrics without registering them.
func New() *Metrics {
	factory := promauto.With(nil)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Total number of client secret expiry checks",
			},
			[]string{"decision"},
		),
		RotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotations_total",
				Help:      "Total number of client secret rotation attempts",
			},
			[]string{"status"},
		),
		MintDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mint_duration_seconds",
				Help:      "Duration of client secret signing in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
			},
		),
		SecretExpiryTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "secret_expiry_timestamp_seconds",
				Help:      "Unix timestamp at which the current client secret expires",
			},
		),
		LastRotationTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_rotation_timestamp_seconds",
				Help:      "Unix timestamp of the last successful rotation",
			},
		),
		HealthStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_status",
				Help:      "Health status of components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordCheck records a check outcome.
func (m *Metrics) RecordCheck(decision string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(decision).Inc()
}

// RecordRotation records a rotation attempt.
func (m *Metrics) RecordRotation(status string, at time.Time) {
	if m == nil {
		return
	}
	m.RotationsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.LastRotationTimestamp.Set(float64(at.Unix()))
	}
}

// ObserveMint records how long signing took.
func (m *Metrics) ObserveMint(d time.Duration) {
	if m == nil {
		return
	}
	m.MintDuration.Observe(d.Seconds())
}

// SetSecretExpiry sets the expiry of the current secret.
func (m *Metrics) SetSecretExpiry(exp time.Time) {
	if m == nil {
		return
	}
	m.SecretExpiryTimestamp.Set(float64(exp.Unix()))
}

// SetHealthStatus sets the health status of a component.
func (m *Metrics) SetHealthStatus(component string, healthy bool) {
	if m == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.HealthStatus.WithLabelValues(component).Set(value)
}

// Register registers all metrics with a prometheus registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ChecksTotal,
		m.RotationsTotal,
		m.MintDuration,
		m.SecretExpiryTimestamp,
		m.LastRotationTimestamp,
		m.HealthStatus,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

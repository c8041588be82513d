// Package observability exposes Prometheus metrics for drive commands.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DriveCollector exposes drive metrics. A nil *DriveCollector records nothing.
type DriveCollector struct {
	gatherer prometheus.Gatherer

	RotationsTotal   *prometheus.CounterVec
	RotationDuration *prometheus.HistogramVec
	StallsTotal      prometheus.Counter
}

// NewDriveCollector registers drive metrics against the provided registerer.
func NewDriveCollector(reg prometheus.Registerer) (*DriveCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rotations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_rotations_total",
		Help: "Bounded rotations executed, by motor model and outcome.",
	}, []string{"model", "outcome"})
	rotations, err := registerCounterVec(reg, rotations, "drive_rotations_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drive_rotation_duration_seconds",
		Help:    "Wall time of bounded rotations, by motor model.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"model"})
	duration, err = registerHistogramVec(reg, duration, "drive_rotation_duration_seconds")
	if err != nil {
		return nil, err
	}

	stalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drive_stalls_total",
		Help: "Bounded rotations ended early because a motor stopped turning.",
	})
	stalls, err = registerCounter(reg, stalls, "drive_stalls_total")
	if err != nil {
		return nil, err
	}

	return &DriveCollector{
		gatherer:         gatherer,
		RotationsTotal:   rotations,
		RotationDuration: duration,
		StallsTotal:      stalls,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *DriveCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DriveCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRotation records one bounded rotation.
func (c *DriveCollector) ObserveRotation(model, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.RotationsTotal != nil {
		c.RotationsTotal.WithLabelValues(model, outcome).Inc()
	}
	if c.RotationDuration != nil {
		c.RotationDuration.WithLabelValues(model).Observe(d.Seconds())
	}
	if outcome == "stalled" && c.StallsTotal != nil {
		c.StallsTotal.Inc()
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

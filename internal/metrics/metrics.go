// Package metrics records encoder and solver measurements in a Prometheus
// registry that the CLI dumps in text exposition format.
package metrics

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	BackendLabel = "backend"
	StatusLabel  = "status"
	KindLabel    = "kind"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	encodeDuration prometheus.Histogram
	solveDuration  *prometheus.HistogramVec
	outcomes       *prometheus.CounterVec
	variables      *prometheus.GaugeVec
	clauses        *prometheus.GaugeVec
	horizon        prometheus.Gauge
	attempts       prometheus.Counter
}

// New creates metrics registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		encodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mapfsat_encode_duration_seconds",
				Help:    "Time spent building the MaxSAT formula",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mapfsat_solve_duration_seconds",
				Help:    "Time spent in the solver backend",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
			},
			[]string{BackendLabel},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mapfsat_solve_total",
				Help: "Solver calls by backend and outcome",
			},
			[]string{BackendLabel, StatusLabel},
		),
		variables: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mapfsat_formula_variables",
				Help: "Variables in the last encoded formula",
			},
			[]string{KindLabel},
		),
		clauses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mapfsat_formula_clauses",
				Help: "Clauses in the last encoded formula",
			},
			[]string{KindLabel},
		),
		horizon: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mapfsat_horizon",
				Help: "Horizon of the last encoded formula",
			},
		),
		attempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mapfsat_horizon_attempts_total",
				Help: "Horizons tried by the planner",
			},
		),
	}
	m.registry.MustRegister(
		m.encodeDuration,
		m.solveDuration,
		m.outcomes,
		m.variables,
		m.clauses,
		m.horizon,
		m.attempts,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveEncode records one encoding of the given size.
func (m *Metrics) ObserveEncode(d time.Duration, horizon, coreVars, auxVars, hard, soft int) {
	if m == nil {
		return
	}
	m.encodeDuration.Observe(d.Seconds())
	m.horizon.Set(float64(horizon))
	m.variables.WithLabelValues("core").Set(float64(coreVars))
	m.variables.WithLabelValues("aux").Set(float64(auxVars))
	m.clauses.WithLabelValues("hard").Set(float64(hard))
	m.clauses.WithLabelValues("soft").Set(float64(soft))
	m.attempts.Inc()
}

// ObserveSolve records one backend call.
func (m *Metrics) ObserveSolve(backend, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(backend).Observe(d.Seconds())
	m.outcomes.WithLabelValues(backend, status).Inc()
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	if m == nil {
		return nil, nil
	}
	return m.registry.Gather()
}

// WriteText writes all metrics in Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	mfs, err := m.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "write %s", mf.GetName())
		}
	}
	return nil
}

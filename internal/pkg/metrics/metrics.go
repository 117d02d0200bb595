// Package metrics exposes run and solver metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics of the application
type Registry struct {
	registry *prometheus.Registry

	// Model size
	LPVariables   prometheus.Gauge
	LPConstraints prometheus.Gauge

	// Solver
	SolvesTotal   *prometheus.CounterVec
	SolveDuration *prometheus.HistogramVec

	// Runs
	RunsTotal *prometheus.CounterVec
	KPI       *prometheus.GaugeVec

	// Report server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a Registry backed by its own Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	factory := promauto.With(r.registry)

	r.LPVariables = factory.NewGauge(prometheus.GaugeOpts{
		Name: "cgc_lp_variables",
		Help: "Number of variables of the last built linear program",
	})
	r.LPConstraints = factory.NewGauge(prometheus.GaugeOpts{
		Name: "cgc_lp_constraints",
		Help: "Number of constraints of the last built linear program",
	})

	r.SolvesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cgc_solves_total",
			Help: "Total number of solver invocations",
		},
		[]string{"solver", "status"},
	)
	r.SolveDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cgc_solve_duration_seconds",
			Help:    "Solver wall time in seconds",
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 1800},
		},
		[]string{"solver"},
	)

	r.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cgc_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"outcome"},
	)
	r.KPI = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cgc_kpi",
			Help: "Indicators of the last finished run",
		},
		[]string{"indicator"},
	)

	r.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cgc_http_requests_total",
			Help: "Total number of report requests",
		},
		[]string{"route", "status"},
	)
	r.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cgc_http_request_duration_seconds",
			Help:    "Report request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordModel records the size of a built linear program.
func (r *Registry) RecordModel(variables, constraints int) {
	r.LPVariables.Set(float64(variables))
	r.LPConstraints.Set(float64(constraints))
}

// RecordSolve records one solver invocation.
func (r *Registry) RecordSolve(solver, status string, duration time.Duration) {
	r.SolvesTotal.WithLabelValues(solver, status).Inc()
	r.SolveDuration.WithLabelValues(solver).Observe(duration.Seconds())
}

// RecordRun counts a finished run by outcome ("ok" or an error kind).
func (r *Registry) RecordRun(outcome string) {
	r.RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordKPI sets the indicators of the last run.
func (r *Registry) RecordKPI(co2Tonnes, costMillions, selfSufficiency float64) {
	r.KPI.WithLabelValues("co2_t_per_year").Set(co2Tonnes)
	r.KPI.WithLabelValues("cost_mio_per_year").Set(costMillions)
	r.KPI.WithLabelValues("self_sufficiency_percent").Set(selfSufficiency)
}

// RecordHTTPRequest records a report request with its duration
func (r *Registry) RecordHTTPRequest(route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Package metrics exposes Prometheus counters and gauges over the
// supervisor population: app counts by state, bring-up/reload/terminate
// counts, probe duration, and route table size, grounded on the teacher's own metrics
// registration pattern.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AppsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keeper_apps_total",
			Help: "Total number of apps by state",
		},
		[]string{"state"},
	)

	RoutesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keeper_routes_total",
			Help: "Total number of published routes",
		},
	)

	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_reloads_total",
			Help: "Total number of reload attempts by outcome",
		},
		[]string{"outcome"},
	)

	BringUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_bringups_total",
			Help: "Total number of initial bring-up attempts by outcome",
		},
		[]string{"outcome"},
	)

	TerminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keeper_terminations_total",
			Help: "Total number of apps terminated",
		},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keeper_probe_duration_seconds",
			Help:    "Time spent waiting for a child to become healthy",
			Buckets: prometheus.DefBuckets,
		},
	)

	PortLeasesInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keeper_port_leases_in_use",
			Help: "Number of ports currently leased to running children",
		},
	)
)

// Register adds every metric to the default Prometheus registry. Safe to
// call exactly once at daemon startup.
func Register() {
	prometheus.MustRegister(AppsTotal)
	prometheus.MustRegister(RoutesTotal)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(BringUpsTotal)
	prometheus.MustRegister(TerminationsTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(PortLeasesInUse)
}

// Handler returns the Prometheus HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for observation into a histogram, e.g. the
// probe-duration wait in pkg/supervisor.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer running now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration reports the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time into histogram under labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_runs_total",
			Help: "Total number of pipeline runs by workflow and status",
		},
		[]string{"workflow", "status"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gantry_run_duration_seconds",
			Help:    "Wall-clock duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"workflow"},
	)

	RunFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_run_failures_total",
			Help: "Failed runs by error kind",
		},
		[]string{"workflow", "kind"},
	)

	// Step metrics
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gantry_step_duration_seconds",
			Help:    "Duration of individual pipeline steps",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"workflow", "step"},
	)

	// Cache metrics
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gantry_cache_hits_total",
			Help: "Cache restores that found an entry (exact or prefix)",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gantry_cache_misses_total",
			Help: "Cache restores that found no live entry",
		},
	)

	// Scan metrics
	ScanFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gantry_scan_findings_total",
			Help: "Vulnerability findings by severity",
		},
		[]string{"severity"},
	)

	// Publish metrics
	PublishAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gantry_publish_attempts_total",
			Help: "Registry push attempts including retries",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunFailures)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ScanFindings)
	prometheus.MustRegister(PublishAttempts)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr for the lifetime of the process
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}

// Package metrics exposes Prometheus counters for the job lifecycle and
// download volume. A nil Collector is a no-op so wiring stays optional.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the bridge's operational metrics.
type Collector struct {
	jobsSubmitted   prometheus.Counter
	jobsCompleted   prometheus.Counter
	jobsFailed      prometheus.Counter
	jobsInFlight    prometheus.Gauge
	jobDuration     prometheus.Histogram
	downloadedBytes prometheus.Counter
}

// NewCollector registers the bridge metrics with the default registry.
func NewCollector() *Collector {
	return &Collector{
		jobsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genvoy_jobs_submitted_total",
			Help: "Total generation jobs submitted to the remote queue.",
		}),
		jobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genvoy_jobs_completed_total",
			Help: "Total generation jobs that reached COMPLETED.",
		}),
		jobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genvoy_jobs_failed_total",
			Help: "Total generation jobs that failed anywhere in the pipeline.",
		}),
		jobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "genvoy_jobs_in_flight",
			Help: "Generation jobs currently holding an admission-gate slot.",
		}),
		jobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genvoy_job_duration_seconds",
			Help:    "End-to-end generation duration, submit through download.",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		downloadedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genvoy_downloaded_bytes_total",
			Help: "Total asset bytes written to the working root.",
		}),
	}
}

// JobStarted marks a job entering the admission gate.
func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.jobsSubmitted.Inc()
	c.jobsInFlight.Inc()
}

// JobCompleted records a successful pipeline run.
func (c *Collector) JobCompleted(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.jobsCompleted.Inc()
	c.jobsInFlight.Dec()
	c.jobDuration.Observe(elapsed.Seconds())
}

// JobFailed records a failed pipeline run.
func (c *Collector) JobFailed() {
	if c == nil {
		return
	}
	c.jobsFailed.Inc()
	c.jobsInFlight.Dec()
}

// DownloadedBytes adds to the asset volume counter.
func (c *Collector) DownloadedBytes(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.downloadedBytes.Add(float64(n))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics exposes Prometheus counters and gauges for the
// scheduler's job lifecycle: submission, dispatch, terminal outcomes,
// and the current queue/GPU occupancy.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for the dispatcher and
// workers.
type Collector struct {
	jobsAdded      prometheus.Counter
	jobsDispatched prometheus.Counter
	jobsDone       prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsBlocked    prometheus.Counter
	jobsStopped    prometheus.Counter

	jobLatency prometheus.Histogram

	jobsQueued  prometheus.Gauge
	jobsRunning prometheus.Gauge
	gpusInUse   prometheus.Gauge
}

// NewCollector builds and registers a Collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid the global default
// registry's duplicate-registration panics across repeated runs.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravel_jobs_added_total",
			Help: "Total number of jobs submitted to the store",
		}),
		jobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravel_jobs_dispatched_total",
			Help: "Total number of jobs claimed and handed to a worker",
		}),
		jobsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravel_jobs_done_total",
			Help: "Total number of jobs that exited with code 0",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravel_jobs_failed_total",
			Help: "Total number of jobs that exited non-zero or could not be spawned",
		}),
		jobsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravel_jobs_blocked_total",
			Help: "Total number of jobs blocked due to a failed dependency",
		}),
		jobsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ravel_jobs_stopped_total",
			Help: "Total number of jobs administratively stopped",
		}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ravel_job_latency_seconds",
			Help:    "Wall-clock time from claim to terminal status",
			Buckets: prometheus.DefBuckets,
		}),
		jobsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ravel_jobs_queued",
			Help: "Current number of queued jobs",
		}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ravel_jobs_running",
			Help: "Current number of running jobs",
		}),
		gpusInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ravel_gpus_in_use",
			Help: "Current number of GPU indices held by running jobs",
		}),
	}

	reg.MustRegister(
		c.jobsAdded, c.jobsDispatched, c.jobsDone, c.jobsFailed,
		c.jobsBlocked, c.jobsStopped, c.jobLatency,
		c.jobsQueued, c.jobsRunning, c.gpusInUse,
	)
	return c
}

// RecordAdded records a job entering the store via add_job.
func (c *Collector) RecordAdded() { c.jobsAdded.Inc() }

// RecordDispatched records a successful claim and worker hand-off.
func (c *Collector) RecordDispatched() { c.jobsDispatched.Inc() }

// RecordTerminal records a job reaching a terminal status and its
// claim-to-finish latency.
func (c *Collector) RecordTerminal(status string, latencySeconds float64) {
	switch status {
	case "done":
		c.jobsDone.Inc()
	case "failed":
		c.jobsFailed.Inc()
	case "blocked":
		c.jobsBlocked.Inc()
	case "stopped":
		c.jobsStopped.Inc()
	}
	c.jobLatency.Observe(latencySeconds)
}

// UpdateQueueStats sets the instantaneous queued/running/GPU gauges,
// typically called once per dispatcher tick.
func (c *Collector) UpdateQueueStats(queued, running, gpusInUse int) {
	c.jobsQueued.Set(float64(queued))
	c.jobsRunning.Set(float64(running))
	c.gpusInUse.Set(float64(gpusInUse))
}

// StartServer starts the Prometheus metrics HTTP server on port,
// serving the default registry at /metrics. It blocks until ctx is
// canceled or the server fails.
func StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

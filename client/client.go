// Package client is the thin facade the CLI and other collaborators
// use to talk to the store, adding the process-level stop_job
// semantics a store row transition alone cannot perform: sending an
// actual signal to the job's child process.
package client

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/store"
)

// stopGracePeriod is how long Stop waits after SIGTERM before
// escalating to SIGKILL.
const stopGracePeriod = 10 * time.Second

// Collector is the subset of metrics.Collector a Client reports to. It
// is an interface here so client does not import metrics directly.
type Collector interface {
	RecordAdded()
}

// Client is a thin, process-local facade over a store.Store.
type Client struct {
	store   store.Store
	metrics Collector
}

// New builds a Client backed by s.
func New(s store.Store) *Client {
	return &Client{store: s}
}

// WithMetrics attaches a Collector that AddJob reports submissions to.
// Returns c for chaining.
func (c *Client) WithMetrics(m Collector) *Client {
	c.metrics = m
	return c
}

// AddJob submits a new job and returns its id.
func (c *Client) AddJob(ctx context.Context, spec store.NewJob) (string, error) {
	id, err := c.store.AddJob(ctx, spec)
	if err != nil {
		return "", err
	}
	if c.metrics != nil {
		c.metrics.RecordAdded()
	}
	return id, nil
}

// GetJob returns a snapshot of the job, or nil if it does not exist.
func (c *Client) GetJob(ctx context.Context, id string) (*job.Job, error) {
	return c.store.GetJob(ctx, id)
}

// ListJobs lists jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, statuses []job.Status) ([]*job.Job, error) {
	return c.store.ListJobs(ctx, statuses)
}

// ListReadyJobs lists queued jobs whose dependencies are satisfied.
func (c *Client) ListReadyJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	return c.store.ListReadyJobs(ctx, limit)
}

// ListRecentJobs lists the most recently created jobs, optionally
// filtered by status.
func (c *Client) ListRecentJobs(ctx context.Context, limit int, statuses []job.Status) ([]*job.Job, error) {
	return c.store.ListRecentJobs(ctx, limit, statuses)
}

// ClearJobs deletes jobs, optionally filtered by status. Callers are
// expected to gate this behind TEST_MODE the way the CLI does.
func (c *Client) ClearJobs(ctx context.Context, statuses []job.Status) (int64, error) {
	return c.store.ClearJobs(ctx, statuses)
}

// StopJob requests cooperative termination of a running job: it looks
// up the recorded child PID, sends SIGTERM, waits up to
// stopGracePeriod for the process to disappear, then sends SIGKILL,
// and finally writes the terminal stopped row via the store.
//
// If the job has no recorded PID (it never started, or the daemon
// restarted before the worker recorded one), the store row is still
// transitioned to stopped; there is no process to signal.
func (c *Client) StopJob(ctx context.Context, id string) error {
	j, err := c.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("client: stop job %q: %w", id, store.ErrJobNotFound)
	}
	if j.Terminal() {
		return nil
	}
	if !j.Running() {
		return c.store.StopJob(ctx, id)
	}

	if j.PID != nil {
		if err := signalProcess(*j.PID, syscall.SIGTERM); err == nil {
			if waitForExit(*j.PID, stopGracePeriod) {
				return c.store.StopJob(ctx, id)
			}
			_ = signalProcess(*j.PID, syscall.SIGKILL)
		}
	}

	return c.store.StopJob(ctx, id)
}

func signalProcess(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// processAlive reports whether pid names a live process, using the
// conventional signal-0 liveness probe.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !processAlive(pid)
}

// Package dispatcher implements the scheduling loop: the single tick
// described by the scheduler's dispatcher contract, and a long-running
// Dispatcher that drives it on a timer, handing claimed jobs to a
// bounded internal.WorkerPool.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkh361/ravel-scheduler/internal"
	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/probe"
	"github.com/nkh361/ravel-scheduler/store"
	"github.com/nkh361/ravel-scheduler/worker"
)

// Collector is the subset of metrics.Collector a Dispatcher reports
// to. It is an interface here so dispatcher does not import metrics
// directly.
type Collector interface {
	RecordDispatched()
	UpdateQueueStats(queued, running, gpusInUse int)
}

// Config configures a Dispatcher.
type Config struct {
	// MaxWorkers bounds concurrently running jobs.
	MaxWorkers int

	// MemoryLimits maps a memory_tag to its concurrency ceiling.
	MemoryLimits map[string]int

	// PollInterval is the tick period used when Start drives the loop
	// on a timer. Unused by Tick itself.
	PollInterval time.Duration

	// Inline, when true, runs the worker synchronously within Tick
	// instead of handing it to the background pool. Used by tests that
	// need a tick to observe the job's terminal state immediately
	// after it returns.
	Inline bool
}

// Dispatcher is the scheduling loop described by the dispatcher
// contract: on every tick it propagates dependency failures, computes
// free capacity, and claims and dispatches as many ready jobs as fit.
type Dispatcher struct {
	internal.Lifecycle

	store  store.Store
	prober probe.Prober
	runner *worker.Runner
	pool   *internal.WorkerPool[string]
	task   internal.TimerTask
	log    *slog.Logger
	cfg    Config

	metrics Collector
}

// WithMetrics attaches a Collector that Tick reports dispatch counts
// and queue gauges to. Returns d for chaining.
func (d *Dispatcher) WithMetrics(c Collector) *Dispatcher {
	d.metrics = c
	return d
}

// New builds a Dispatcher. The runner executes claimed jobs; the
// prober supplies candidate GPU indices.
func New(s store.Store, prober probe.Prober, runner *worker.Runner, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	return &Dispatcher{
		store:  s,
		prober: prober,
		runner: runner,
		pool:   internal.NewWorkerPool[string](cfg.MaxWorkers, cfg.MaxWorkers, log),
		log:    log,
		cfg:    cfg,
	}
}

// Start begins running Tick on PollInterval until the context is
// canceled or Stop is called. It returns ErrDoubleStarted if already
// running.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.TryStart(); err != nil {
		return err
	}
	d.pool.Start(ctx, d.runJob)
	d.task.Start(ctx, func(tickCtx context.Context) {
		if _, err := d.Tick(tickCtx); err != nil {
			d.log.Error("dispatcher tick failed", "err", err)
		}
	}, d.cfg.PollInterval)
	return nil
}

// Stop gracefully shuts down the tick loop and the worker pool,
// waiting up to timeout for the current tick and in-flight workers to
// return. In-flight child processes are not forcibly killed; their
// workers keep waiting on them and record the outcome in the store,
// even after Stop has returned.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	return d.TryStop(timeout, func() internal.DoneChan {
		first := d.task.Stop()
		second := d.pool.Stop()
		return internal.Combine(first, second)
	})
}

func (d *Dispatcher) runJob(ctx context.Context, id string) {
	// A claimed job must still reach a terminal row when Stop cancels
	// the pool's context, so the run is detached from that cancellation.
	if err := d.runner.Run(context.WithoutCancel(ctx), id); err != nil {
		d.log.Error("worker run failed", "id", id, "err", err)
	}
}

// Tick runs exactly one scheduling pass and reports whether any job
// was dispatched.
func (d *Dispatcher) Tick(ctx context.Context) (bool, error) {
	if _, err := d.store.MarkBlockedJobsDueToFailedDeps(ctx); err != nil {
		return false, err
	}

	running, err := d.store.ListJobs(ctx, []job.Status{job.StatusRunning})
	if err != nil {
		return false, err
	}
	slots := d.cfg.MaxWorkers - len(running)
	if slots <= 0 {
		return false, nil
	}

	runningByTag := map[string]int{}
	reserved := map[int]struct{}{}
	for _, j := range running {
		if j.MemoryTag != "" {
			runningByTag[j.MemoryTag]++
		}
		for _, idx := range j.GPUsAssigned {
			reserved[idx] = struct{}{}
		}
	}

	want := slots * 2
	if want < 1 {
		want = 1
	}
	candidates, err := d.store.ListReadyJobs(ctx, want)
	if err != nil {
		return false, err
	}

	dispatched := false
	for _, c := range candidates {
		if slots <= 0 {
			break
		}
		if c.MemoryTag != "" {
			if limit, ok := d.cfg.MemoryLimits[c.MemoryTag]; ok && runningByTag[c.MemoryTag] >= limit {
				continue
			}
		}

		free, err := d.prober.FreeGPUs(ctx, c.GPUs, reserved)
		if err != nil {
			return dispatched, err
		}
		if len(free) < c.GPUs {
			continue
		}

		ok, err := d.store.TryClaimJob(ctx, c.ID, free)
		if err != nil {
			return dispatched, err
		}
		if !ok {
			continue
		}

		for _, idx := range free {
			reserved[idx] = struct{}{}
		}
		if c.MemoryTag != "" {
			runningByTag[c.MemoryTag]++
		}
		slots--
		dispatched = true
		if d.metrics != nil {
			d.metrics.RecordDispatched()
		}

		if d.cfg.Inline {
			d.runJob(ctx, c.ID)
		} else {
			d.pool.Push(c.ID)
		}
	}

	if d.metrics != nil {
		queued, err := d.store.ListJobs(ctx, []job.Status{job.StatusQueued})
		if err != nil {
			return dispatched, err
		}
		d.metrics.UpdateQueueStats(len(queued), d.cfg.MaxWorkers-slots, len(reserved))
	}

	return dispatched, nil
}

package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/nkh361/ravel-scheduler/internal"
	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/store"
)

// Reconciler periodically sweeps running jobs whose recorded PID is no
// longer alive and fails them with a diagnostic stderr, recovering the
// case the claim/finish protocol otherwise leaves unhandled: a worker
// that crashes between claim and set_job_finished otherwise leaves its
// job row running forever.
type Reconciler struct {
	internal.Lifecycle

	store    store.Store
	task     internal.TimerTask
	log      *slog.Logger
	interval time.Duration
}

// NewReconciler builds a Reconciler that sweeps every interval.
func NewReconciler(s store.Store, interval time.Duration, log *slog.Logger) *Reconciler {
	return &Reconciler{store: s, interval: interval, log: log}
}

// Start begins periodic sweeping. It returns ErrDoubleStarted if
// already running.
func (r *Reconciler) Start(ctx context.Context) error {
	if err := r.TryStart(); err != nil {
		return err
	}
	r.task.Start(ctx, r.sweep, r.interval)
	return nil
}

// Stop terminates the background sweep, waiting up to timeout.
func (r *Reconciler) Stop(timeout time.Duration) error {
	return r.TryStop(timeout, r.task.Stop)
}

func (r *Reconciler) sweep(ctx context.Context) {
	running, err := r.store.ListJobs(ctx, []job.Status{job.StatusRunning})
	if err != nil {
		r.log.Error("reconciler: list running jobs failed", "err", err)
		return
	}

	for _, j := range running {
		if j.PID == nil {
			continue
		}
		if processAlive(*j.PID) {
			continue
		}
		returncode := (*int)(nil)
		stderr := fmt.Sprintf("orphan recovery: pid %d is no longer alive, job presumed crashed", *j.PID)
		if err := r.store.SetJobFinished(ctx, j.ID, job.StatusFailed, returncode, j.Stdout, stderr); err != nil {
			r.log.Error("reconciler: failed to fail orphan job", "id", j.ID, "err", err)
			continue
		}
		r.log.Warn("reconciler: recovered orphan running job", "id", j.ID, "pid", *j.PID)
	}
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil
}

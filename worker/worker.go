// Package worker executes a claimed job as a child process and
// reports its outcome back to the store.
package worker

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/store"
)

// Collector is the subset of metrics.Collector a Runner reports to. It
// is an interface here so worker does not import metrics directly.
type Collector interface {
	RecordTerminal(status string, latencySeconds float64)
}

// Runner executes a single claimed job. Workers never touch the ready
// set or resource tallies directly; all visibility is through store.
type Runner struct {
	store     store.Store
	gpuEnvVar string
	log       *slog.Logger
	metrics   Collector
}

// NewRunner builds a Runner. gpuEnvVar names the environment variable
// set to the comma-joined assigned GPU indices (config.Config.GPUEnvVar).
func NewRunner(s store.Store, gpuEnvVar string, log *slog.Logger) *Runner {
	return &Runner{store: s, gpuEnvVar: gpuEnvVar, log: log}
}

// WithMetrics attaches a Collector that Run reports terminal outcomes
// to. Returns r for chaining.
func (r *Runner) WithMetrics(c Collector) *Runner {
	r.metrics = c
	return r
}

// Run re-reads the job row, spawns its command with no shell
// interposition, and calls SetJobFinished with the captured result. It
// does not return an error for a failed child: that is reported
// through the store. It returns an error only if the job row cannot be
// read or the terminal store write itself fails.
func (r *Runner) Run(ctx context.Context, id string) error {
	j, err := r.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return nil
	}

	returncode, stdout, stderr := r.exec(ctx, id, j)

	status := job.StatusDone
	if returncode == nil || *returncode != 0 {
		status = job.StatusFailed
	}

	if err := r.store.SetJobFinished(ctx, id, status, returncode, stdout, stderr); err != nil {
		r.log.Error("set job finished failed", "id", id, "err", err)
		return err
	}

	if r.metrics != nil {
		latency := 0.0
		if j.StartedAt != nil {
			latency = time.Since(*j.StartedAt).Seconds()
		}
		r.metrics.RecordTerminal(status.String(), latency)
	}
	return nil
}

// exec spawns j's command and waits for it to exit. A nil returncode
// means the process never ran (spawn failure); the error text is
// returned as stderr in that case. Once the process starts, its PID is
// recorded via SetJobPID so stop_job has a definite target.
func (r *Runner) exec(ctx context.Context, id string, j *job.Job) (returncode *int, stdout, stderr string) {
	if len(j.Command) == 0 {
		return nil, "", "empty command"
	}

	cmd := exec.Command(j.Command[0], j.Command[1:]...)
	cmd.Env = append(os.Environ(), r.gpuEnv(j.GPUsAssigned))
	if j.Cwd != "" {
		cmd.Dir = j.Cwd
	}
	cmd.Stdin = nil

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Start(); err != nil {
		return nil, "", err.Error()
	}
	if err := r.store.SetJobPID(ctx, id, cmd.Process.Pid); err != nil {
		r.log.Error("set job pid failed", "id", id, "err", err)
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			return &code, outBuf.String(), errBuf.String()
		}
		return nil, outBuf.String(), err.Error()
	}

	code := cmd.ProcessState.ExitCode()
	return &code, outBuf.String(), errBuf.String()
}

func (r *Runner) gpuEnv(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return r.gpuEnvVar + "=" + strings.Join(parts, ",")
}

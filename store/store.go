package store

import (
	"context"

	"github.com/nkh361/ravel-scheduler/job"
)

// NewJob collects the parameters accepted by AddJob. Command, GPUs and
// Priority are required by the caller's intent; MemoryTag and Cwd are
// optional and left empty when unset. DependsOn lists predecessor ids or
// names to be resolved by the caller before reaching the store: the
// store itself does not validate that a dependency id names an existing
// job: unknown targets are permitted and simply never satisfied.
type NewJob struct {
	Command   []string
	GPUs      int
	Priority  int
	MemoryTag string
	Cwd       string
	DependsOn []string
}

// Adder inserts new jobs and dependency edges.
type Adder interface {
	// AddJob generates a fresh 8-character id (retried on collision),
	// inserts a row in StatusQueued with CreatedAt set to now, and
	// inserts any edges in spec.DependsOn in the same transaction.
	AddJob(ctx context.Context, spec NewJob) (string, error)

	// AddDependencies appends edges (id, dep) for each dep in deps.
	// Adding an edge that already exists is not idempotent: store/sqlite
	// rejects it with a primary-key constraint error.
	AddDependencies(ctx context.Context, id string, deps []string) error
}

// Reader answers queries over job state without mutating it.
type Reader interface {
	// GetJob returns a snapshot of the job, or (nil, nil) if no job with
	// that id exists.
	GetJob(ctx context.Context, id string) (*job.Job, error)

	// ListJobs returns jobs ordered by CreatedAt ascending, optionally
	// filtered to the given statuses. A nil or empty statuses slice
	// returns all jobs.
	ListJobs(ctx context.Context, statuses []job.Status) ([]*job.Job, error)

	// ListReadyJobs selects queued jobs whose entire dependency set is
	// satisfied by Done predecessors, ordered by priority descending,
	// CreatedAt ascending, insertion order ascending. A limit <= 0
	// returns all ready jobs.
	ListReadyJobs(ctx context.Context, limit int) ([]*job.Job, error)

	// ListRecentJobs returns jobs ordered by CreatedAt descending,
	// optionally filtered to the given statuses, capped at limit rows.
	ListRecentJobs(ctx context.Context, limit int, statuses []job.Status) ([]*job.Job, error)
}

// Claimer drives the state-machine transitions a dispatcher and worker
// perform. Implementations must make TryClaimJob race-free: under
// concurrent callers targeting the same id, exactly one succeeds.
type Claimer interface {
	// TryClaimJob transitions id from StatusQueued to StatusRunning,
	// recording StartedAt and gpusAssigned, iff the row is currently
	// queued. Reports true iff this call won the claim.
	TryClaimJob(ctx context.Context, id string, gpusAssigned []int) (bool, error)

	// SetJobFinished sets the terminal fields and FinishedAt on a
	// running job. It is a no-op if the job is not currently running.
	SetJobFinished(ctx context.Context, id string, status job.Status, returncode *int, stdout, stderr string) error

	// SetJobPID records the OS process id of the worker's child once
	// spawned, so that StopJob has a definite target.
	SetJobPID(ctx context.Context, id string, pid int) error

	// MarkBlockedJobsDueToFailedDeps atomically transitions every
	// queued job with at least one predecessor in {failed, blocked} to
	// blocked. Returns the number of rows affected. Idempotent:
	// running it again with no intervening change returns 0.
	MarkBlockedJobsDueToFailedDeps(ctx context.Context) (int64, error)

	// StopJob transitions a running job straight to StatusStopped,
	// recording FinishedAt, without requiring the job to already be
	// terminal. It is used by the administrative stop path once the
	// child process has been signalled. No-op if the job is not
	// running.
	StopJob(ctx context.Context, id string) error
}

// Cleaner performs administrative bulk deletion.
type Cleaner interface {
	// ClearJobs deletes jobs matching statuses (and their dependency
	// edges). A nil or empty statuses slice clears every job.
	ClearJobs(ctx context.Context, statuses []job.Status) (int64, error)
}

// Store is the full contract implemented by store/sqlite and consumed
// by the dispatcher, worker and client packages.
type Store interface {
	Adder
	Reader
	Claimer
	Cleaner
}

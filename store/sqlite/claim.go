package sqlite

import (
	"context"

	"github.com/nkh361/ravel-scheduler/job"
)

// TryClaimJob is the linearisation point for "this dispatcher won the
// claim": a single UPDATE guarded by status = queued. Under concurrent
// callers targeting the same id, the database's write lock admits
// exactly one writer, so exactly one call observes RowsAffected == 1.
func (s *Store) TryClaimJob(ctx context.Context, id string, gpusAssigned []int) (bool, error) {
	now := s.now()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.StatusRunning.String()).
		Set("started_at = ?", now).
		Set("gpus_assigned = ?", marshalGPUs(gpusAssigned)).
		Where("id = ?", id).
		Where("status = ?", job.StatusQueued.String()).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// SetJobPID records the worker's child process id on a running job, so
// that StopJob has a definite signal target even across a daemon
// restart.
func (s *Store) SetJobPID(ctx context.Context, id string, pid int) error {
	_, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("pid = ?", pid).
		Where("id = ?", id).
		Where("status = ?", job.StatusRunning.String()).
		Exec(ctx)
	return err
}

// SetJobFinished sets the terminal fields and finished_at on a running
// job. It is a no-op if the job is not currently running, matching
// on a job that is not currently running.
func (s *Store) SetJobFinished(ctx context.Context, id string, status job.Status, returncode *int, stdout, stderr string) error {
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", status.String()).
		Set("finished_at = ?", now).
		Set("returncode = ?", returncode).
		Set("stdout = ?", stdout).
		Set("stderr = ?", stderr).
		Where("id = ?", id).
		Where("status = ?", job.StatusRunning.String()).
		Exec(ctx)
	return err
}

// StopJob transitions a running job straight to stopped, recording
// finished_at. It is a no-op if the job is not currently running.
func (s *Store) StopJob(ctx context.Context, id string) error {
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.StatusStopped.String()).
		Set("finished_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", job.StatusRunning.String()).
		Exec(ctx)
	return err
}

// MarkBlockedJobsDueToFailedDeps atomically transitions every queued job
// with at least one predecessor in {failed, blocked} to blocked.
// Running it twice in succession with no intervening change affects
// zero rows the second time, since a blocked job is no longer queued
// and so no longer matches the WHERE clause.
func (s *Store) MarkBlockedJobsDueToFailedDeps(ctx context.Context) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.StatusBlocked.String()).
		Where("status = ?", job.StatusQueued.String()).
		Where(`EXISTS (
			SELECT 1 FROM job_dependencies d
			JOIN jobs p ON p.id = d.depends_on
			WHERE d.job_id = ?TableAlias.id
			AND p.status IN (?, ?)
		)`, job.StatusFailed.String(), job.StatusBlocked.String()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

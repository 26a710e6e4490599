package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/nkh361/ravel-scheduler/job"
)

// GetJob returns a snapshot of the job, or (nil, nil) if no job with
// that id exists. It performs a simple SELECT and applies no locking
// beyond what the database provides.
func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	var m jobModel
	err := s.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m.toJob(), nil
}

func statusStrings(statuses []job.Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = st.String()
	}
	return out
}

// ListJobs returns jobs ordered by CreatedAt ascending, optionally
// filtered to the given statuses.
func (s *Store) ListJobs(ctx context.Context, statuses []job.Status) ([]*job.Job, error) {
	var models []*jobModel
	q := s.db.NewSelect().Model(&models).Order("created_at ASC", "rowid ASC")
	if ss := statusStrings(statuses); len(ss) > 0 {
		q.Where("status IN (?)", bun.In(ss))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return toJobs(models), nil
}

// ListReadyJobs selects queued jobs whose entire dependency set is
// satisfied by done predecessors, ordered by priority descending,
// created_at ascending, rowid ascending: the one ordering the
// dispatcher consults. A job with an edge to an id that is
// not currently done (including an id that names no job at all) is not
// ready: the NOT EXISTS subquery below treats "depends_on not in the
// set of done ids" as a live, unsatisfied predecessor regardless of
// whether that id exists.
func (s *Store) ListReadyJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	var models []*jobModel
	q := s.db.NewSelect().
		Model(&models).
		Where("status = ?", job.StatusQueued.String()).
		Where(`NOT EXISTS (
			SELECT 1 FROM job_dependencies d
			WHERE d.job_id = ?TableAlias.id
			AND d.depends_on NOT IN (
				SELECT id FROM jobs WHERE status = ?
			)
		)`, job.StatusDone.String()).
		Order("priority DESC", "created_at ASC", "rowid ASC")
	if limit > 0 {
		q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return toJobs(models), nil
}

// ListRecentJobs returns jobs ordered by CreatedAt descending, optionally
// filtered to the given statuses, capped at limit rows.
func (s *Store) ListRecentJobs(ctx context.Context, limit int, statuses []job.Status) ([]*job.Job, error) {
	var models []*jobModel
	q := s.db.NewSelect().Model(&models).Order("created_at DESC", "rowid DESC")
	if ss := statusStrings(statuses); len(ss) > 0 {
		q.Where("status IN (?)", bun.In(ss))
	}
	if limit > 0 {
		q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return toJobs(models), nil
}

func toJobs(models []*jobModel) []*job.Job {
	out := make([]*job.Job, len(models))
	for i, m := range models {
		out[i] = m.toJob()
	}
	return out
}

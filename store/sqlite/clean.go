package sqlite

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/nkh361/ravel-scheduler/job"
)

// ClearJobs is an administrative bulk delete. Unlike a retention
// cleaner restricted to terminal states, ClearJobs makes no such
// restriction: clear_jobs is primarily a TEST_MODE reset hook and a
// full-history purge, so it is allowed to delete jobs in any status.
// Without a filter it deletes every job and every dependency edge.
func (s *Store) ClearJobs(ctx context.Context, statuses []job.Status) (int64, error) {
	var ids []string
	selectIDs := s.db.NewSelect().Model((*jobModel)(nil)).Column("id")
	if ss := statusStrings(statuses); len(ss) > 0 {
		selectIDs.Where("status IN (?)", bun.In(ss))
	}
	if err := selectIDs.Scan(ctx, &ids); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*depModel)(nil)).
			Where("job_id IN (?)", bun.In(ids)).
			WhereOr("depends_on IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*jobModel)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected = getAffected(res)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

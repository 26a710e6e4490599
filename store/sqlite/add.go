package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"

	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/store"
)

// maxIDAttempts bounds retries on an 8-character id collision. Collision
// probability is astronomically small (16^8 keyspace over lowercase hex
// truncation of a UUID); this only guards against a pathological RNG.
const maxIDAttempts = 8

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

// AddJob generates a fresh id (retried on collision), inserts a queued
// row with CreatedAt set to now, and inserts any requested dependency
// edges, all within a single transaction.
func (s *Store) AddJob(ctx context.Context, spec store.NewJob) (string, error) {
	now := s.now()
	var id string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for attempt := 0; ; attempt++ {
			id = newID()
			model := &jobModel{
				ID:        id,
				Command:   marshalCommand(spec.Command),
				GPUs:      spec.GPUs,
				Priority:  spec.Priority,
				MemoryTag: spec.MemoryTag,
				Cwd:       spec.Cwd,
				Status:    job.StatusQueued.String(),
				CreatedAt: now,
			}
			_, err := tx.NewInsert().Model(model).Exec(ctx)
			if err == nil {
				break
			}
			if isUniqueViolation(err) && attempt < maxIDAttempts-1 {
				continue
			}
			return err
		}
		if len(spec.DependsOn) == 0 {
			return nil
		}
		return insertDependencies(ctx, tx, id, spec.DependsOn)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AddDependencies appends edges (id, dep) for each entry in deps. The
// (job_id, depends_on) pair is the edge table's primary key, so a
// duplicate edge fails the insert rather than being silently ignored.
func (s *Store) AddDependencies(ctx context.Context, id string, deps []string) error {
	if len(deps) == 0 {
		return nil
	}
	return insertDependencies(ctx, s.db, id, deps)
}

func insertDependencies(ctx context.Context, db bun.IDB, id string, deps []string) error {
	models := make([]*depModel, 0, len(deps))
	for _, dep := range deps {
		models = append(models, &depModel{JobID: id, DependsOn: dep})
	}
	_, err := db.NewInsert().Model(&models).Exec(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

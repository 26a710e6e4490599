package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/uptrace/bun"
)

func createJobsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*jobModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createDependenciesTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*depModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createReadyIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_status_created").
		Column("status", "created_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func createDepsReverseIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*depModel)(nil)).
		Index("idx_deps_depends_on").
		Column("depends_on").
		IfNotExists().
		Exec(ctx)
	return err
}

// addColumnIfMissing runs ALTER TABLE jobs ADD COLUMN and swallows the
// "duplicate column name" error SQLite returns when the column was
// already added by a previous version of this code. This is the
// forward-compatible upgrade path: a database
// created before priority/memory_tag/cwd existed is brought up to date
// in place, without a separate migration tool.
func addColumnIfMissing(ctx context.Context, db bun.IDB, ddl string) error {
	_, err := db.ExecContext(ctx, "ALTER TABLE jobs ADD COLUMN "+ddl)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
		return nil
	}
	return err
}

func evolveSchema(ctx context.Context, db bun.IDB) error {
	if err := addColumnIfMissing(ctx, db, "priority INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := addColumnIfMissing(ctx, db, "memory_tag TEXT"); err != nil {
		return err
	}
	if err := addColumnIfMissing(ctx, db, "cwd TEXT"); err != nil {
		return err
	}
	return nil
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createJobsTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createDependenciesTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createReadyIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createDepsReverseIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := evolveSchema(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// InitDB initializes the database schema required by the sqlite store.
//
// It creates the jobs and job_dependencies tables and their indexes,
// then attempts the legacy-column additions in evolveSchema,
// all inside a single transaction. If any step fails, the transaction
// is rolled back.
//
// InitDB is idempotent and may be safely called multiple times,
// including against a database created by an older version of this
// package.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}

// MustInitDB behaves like InitDB but panics if initialization fails.
// Intended for application bootstrap code where failure to initialize
// schema is unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB) {
	if err := initDB(ctx, db); err != nil {
		panic(err)
	}
}

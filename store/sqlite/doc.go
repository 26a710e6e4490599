// Package sqlite provides a bun-based SQLite storage implementation of
// store.Store.
//
// # Overview
//
// The backend provides:
//
//   - durable persistence of jobs and dependency edges
//   - atomic claim transitions using a single guarded UPDATE
//   - a NOT-EXISTS readiness predicate over unsatisfied predecessors
//   - forward-compatible schema evolution (legacy-column tolerance)
//
// # Concurrency Model
//
// TryClaimJob and MarkBlockedJobsDueToFailedDeps are implemented as a
// single UPDATE statement guarded by a status predicate, so the
// database's own write lock is the sole arbiter between concurrent
// dispatchers: exactly one caller observes RowsAffected == 1.
//
// Callers are expected to open the underlying *sql.DB with a single
// connection (SetMaxOpenConns(1)) and WAL journal mode plus a
// busy_timeout pragma. SQLite serialises writers regardless, and a
// single connection avoids SQLITE_BUSY surfacing as a spurious store
// error under contention.
//
// # Schema
//
// InitDB creates the jobs and job_dependencies tables and the indexes
// ListReadyJobs and ListRecentJobs rely on, then attempts the
// priority/memory_tag/cwd column additions,
// swallowing "duplicate column" so it is safe to call against both a
// fresh database and one created by an earlier version of this package.
//
// # Limitations
//
// Command and GPUsAssigned are stored as JSON text rather than native
// array columns, since SQLite has no array type; see model.go.
package sqlite

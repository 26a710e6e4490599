// Package store defines the durable, process-safe repository of jobs and
// their dependency edges.
//
// # Overview
//
// store models the single source of truth for the scheduler: every
// status transition a Job goes through (queued, running, done, failed,
// blocked, stopped) is a write against this interface, and every
// question the dispatcher asks ("what is ready to run", "did I win the
// claim") is a read against it. The package does not mandate a storage
// backend; store/sqlite provides the one this repository ships.
//
// # Interfaces
//
// store defines the following primary interfaces, composed into Store:
//
//	Adder    - insert jobs and dependency edges
//	Reader   - query jobs by id, status or readiness
//	Claimer  - atomic queued->running transition, terminal finish, and
//	           dependency-failure propagation
//	Cleaner  - administrative bulk delete
//
// Implementations must guarantee the following invariants:
// exactly one caller may win a concurrent TryClaimJob on the same id;
// a job transitions to running only once its entire dependency set is
// Done. TryClaimJob records whatever GPU indices it is given and does
// not check them against other running jobs; keeping GPUsAssigned
// disjoint across running jobs is the dispatcher's job, through the
// reserved set it builds from the running jobs and the claims of the
// current tick.
//
// # Concurrency Model
//
// All operations are synchronous and blocking from the caller's
// perspective. Implementations are expected to be safe for one daemon
// process and any number of reader client processes sharing the same
// underlying database file; the database's own write lock is the sole
// arbiter of concurrent writers.
package store

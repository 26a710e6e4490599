package sqlite_test

import (
	"context"
	"testing"

	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/store"
	"github.com/nkh361/ravel-scheduler/store/sqlite"
)

func TestClearJobsAll(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := sqlite.NewStore(db)

	a, err := s.AddJob(ctx, store.NewJob{Command: []string{"a"}, GPUs: 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddJob(ctx, store.NewJob{Command: []string{"b"}, GPUs: 0, DependsOn: []string{a}}); err != nil {
		t.Fatal(err)
	}

	count, err := s.ClearJobs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 jobs cleared, got %d", count)
	}

	jobs, err := s.ListJobs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs remaining, got %d", len(jobs))
	}
}

func TestClearJobsFiltered(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := sqlite.NewStore(db)

	queued, err := s.AddJob(ctx, store.NewJob{Command: []string{"a"}, GPUs: 0})
	if err != nil {
		t.Fatal(err)
	}
	running, err := s.AddJob(ctx, store.NewJob{Command: []string{"b"}, GPUs: 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.TryClaimJob(ctx, running, nil); err != nil {
		t.Fatal(err)
	}

	count, err := s.ClearJobs(ctx, []job.Status{job.StatusQueued})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job cleared, got %d", count)
	}

	if j, err := s.GetJob(ctx, queued); err != nil || j != nil {
		t.Fatalf("expected queued job to be gone, got job=%v err=%v", j, err)
	}
	if j, err := s.GetJob(ctx, running); err != nil || j == nil {
		t.Fatalf("expected running job to survive, got job=%v err=%v", j, err)
	}
}

func TestClearJobsEmpty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := sqlite.NewStore(db)

	count, err := s.ClearJobs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected 0 jobs cleared on empty store, got %d", count)
	}
}

package worker_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkh361/ravel-scheduler/job"
	"github.com/nkh361/ravel-scheduler/store"
	"github.com/nkh361/ravel-scheduler/store/sqlite"
	"github.com/nkh361/ravel-scheduler/worker"

	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	require.NoError(t, sqlite.InitDB(context.Background(), db))
	return sqlite.NewStore(db)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type fakeCollector struct {
	statuses []string
}

func (f *fakeCollector) RecordTerminal(status string, _ float64) {
	f.statuses = append(f.statuses, status)
}

func TestRunSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddJob(ctx, store.NewJob{Command: []string{"echo", "hello"}, GPUs: 0})
	require.NoError(t, err)
	_, err = s.TryClaimJob(ctx, id, nil)
	require.NoError(t, err)

	fc := &fakeCollector{}
	r := worker.NewRunner(s, "NVIDIA_VISIBLE_DEVICES", discardLogger()).WithMetrics(fc)
	require.NoError(t, r.Run(ctx, id))

	j, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	require.Equal(t, job.StatusDone, j.Status)
	require.NotNil(t, j.ReturnCode)
	require.Equal(t, 0, *j.ReturnCode)
	require.Equal(t, "hello\n", j.Stdout)
	require.NotNil(t, j.PID)
	require.Equal(t, []string{"done"}, fc.statuses)
}

func TestRunNonZeroExit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddJob(ctx, store.NewJob{Command: []string{"sh", "-c", "exit 3"}, GPUs: 0})
	require.NoError(t, err)
	_, err = s.TryClaimJob(ctx, id, nil)
	require.NoError(t, err)

	r := worker.NewRunner(s, "NVIDIA_VISIBLE_DEVICES", discardLogger())
	require.NoError(t, r.Run(ctx, id))

	j, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, j.Status)
	require.NotNil(t, j.ReturnCode)
	require.Equal(t, 3, *j.ReturnCode)
}

func TestRunSpawnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddJob(ctx, store.NewJob{Command: []string{"/no/such/binary-xyz"}, GPUs: 0})
	require.NoError(t, err)
	_, err = s.TryClaimJob(ctx, id, nil)
	require.NoError(t, err)

	r := worker.NewRunner(s, "NVIDIA_VISIBLE_DEVICES", discardLogger())
	require.NoError(t, r.Run(ctx, id))

	j, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, j.Status)
	require.Nil(t, j.ReturnCode)
	require.NotEmpty(t, j.Stderr)
}

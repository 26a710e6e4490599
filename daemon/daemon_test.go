package daemon_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkh361/ravel-scheduler/config"
	"github.com/nkh361/ravel-scheduler/daemon"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{StateDir: dir, DBPath: filepath.Join(dir, "ravel.db")}
}

func TestDaemonStatusStoppedWithNoPIDFile(t *testing.T) {
	cfg := testConfig(t)
	require.Equal(t, daemon.StatusStopped, daemon.DaemonStatus(cfg))
}

func TestDaemonStatusStoppedWithStalePID(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath(), []byte("999999"), 0o644))
	require.Equal(t, daemon.StatusStopped, daemon.DaemonStatus(cfg))
	_, err := os.Stat(cfg.PIDPath())
	require.True(t, os.IsNotExist(err), "expected stale pid file to be cleared")
}

func TestDaemonStatusRunningWithOwnPID(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644))
	require.Equal(t, daemon.StatusRunning, daemon.DaemonStatus(cfg))
}

func TestStopWithNoPIDFileIsNoop(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, daemon.Stop(cfg))
}

// Package daemon manages the background process hosting the
// dispatcher: starting it detached, probing whether it is alive, and
// stopping it.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/nkh361/ravel-scheduler/config"
)

// Status is the result of DaemonStatus.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// IsRunning reports whether a live process is recorded in cfg's PID
// file, using the conventional signal-0 liveness probe. A PID file
// pointing at a dead process is cleared as a side effect, mirroring
// daemon_running's self-healing behaviour.
func IsRunning(cfg *config.Config) bool {
	pid, ok := readPID(cfg)
	if !ok {
		return false
	}
	if err := syscall.Kill(pid, 0); err != nil {
		clearPID(cfg)
		return false
	}
	return true
}

// DaemonStatus reports StatusRunning or StatusStopped.
func DaemonStatus(cfg *config.Config) Status {
	if IsRunning(cfg) {
		return StatusRunning
	}
	return StatusStopped
}

// Start launches the daemon as a detached child process re-invoking
// selfPath with runArgs (conventionally {"run"}), redirecting its
// stdout/stderr to cfg.LogPath and recording its PID in cfg.PIDPath.
// It is a no-op, returning nil, if the daemon is already running.
func Start(cfg *config.Config, selfPath string, runArgs []string) error {
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("daemon: create state dir: %w", err)
	}
	if IsRunning(cfg) {
		return nil
	}

	logFile, err := os.OpenFile(cfg.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("daemon: open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(selfPath, runArgs...)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemon: spawn child: %w", err)
	}

	return writePID(cfg, cmd.Process.Pid)
}

// Stop sends a polite termination signal to the recorded daemon
// process and clears the PID file. It is a no-op, returning nil, if
// no daemon is currently recorded as running.
func Stop(cfg *config.Config) error {
	pid, ok := readPID(cfg)
	if !ok {
		return nil
	}
	err := syscall.Kill(pid, syscall.SIGTERM)
	clearPID(cfg)
	if err != nil && err != syscall.ESRCH {
		return fmt.Errorf("daemon: signal pid %d: %w", pid, err)
	}
	return nil
}

func writePID(cfg *config.Config, pid int) error {
	return os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(pid)), 0o644)
}

func readPID(cfg *config.Config) (int, bool) {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		return 0, false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return pid, true
}

func clearPID(cfg *config.Config) {
	_ = os.Remove(cfg.PIDPath())
}

package config_test

import (
	"testing"

	"github.com/nkh361/ravel-scheduler/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STATE_DIR", "DB_PATH", "MAX_WORKERS",
		"MEMORY_LIMITS", "NO_GPU", "TEST_MODE", "GPU_ENV_VAR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxWorkers != 1 {
		t.Fatalf("expected default MaxWorkers 1, got %d", cfg.MaxWorkers)
	}
	if cfg.GPUEnvVar != "NVIDIA_VISIBLE_DEVICES" {
		t.Fatalf("expected default GPU env var, got %q", cfg.GPUEnvVar)
	}
	if cfg.NoGPU || cfg.TestMode {
		t.Fatal("expected NoGPU and TestMode false by default")
	}
	if len(cfg.MemoryLimits) != 0 {
		t.Fatalf("expected empty memory limits, got %v", cfg.MemoryLimits)
	}
}

func TestLoadMemoryLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEMORY_LIMITS", "large=1, medium=3")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MemoryLimits["large"] != 1 || cfg.MemoryLimits["medium"] != 3 {
		t.Fatalf("unexpected memory limits: %v", cfg.MemoryLimits)
	}
}

func TestLoadInvalidMemoryLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEMORY_LIMITS", "large")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for malformed memory limits")
	}
}

func TestLoadMaxWorkersFloor(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_WORKERS", "0")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxWorkers != 1 {
		t.Fatalf("expected MaxWorkers floored to 1, got %d", cfg.MaxWorkers)
	}
}

func TestPIDAndLogPaths(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_DIR", "/tmp/ravel-test-state")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PIDPath() != "/tmp/ravel-test-state/daemon.pid" {
		t.Fatalf("unexpected pid path: %s", cfg.PIDPath())
	}
	if cfg.LogPath() != "/tmp/ravel-test-state/daemon.log" {
		t.Fatalf("unexpected log path: %s", cfg.LogPath())
	}
}

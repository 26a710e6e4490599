// Package probe discovers free GPU indices for the dispatcher. The
// probe is advisory only: the dispatcher's atomic claim in the store
// is the sole authoritative gate on GPU ownership.
package probe

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// utilizationCeiling is the nvidia-smi utilization.gpu percentage below
// which an index is considered free.
const utilizationCeiling = 20

// Prober returns up to `requested` GPU indices not present in reserved.
type Prober interface {
	FreeGPUs(ctx context.Context, requested int, reserved map[int]struct{}) ([]int, error)
}

// Resource is the default Prober: synthetic indices when NoGPU is set,
// otherwise an nvidia-smi utilization query, falling back to synthetic
// indices if nvidia-smi is unavailable or its output cannot be parsed.
type Resource struct {
	// NoGPU forces the synthetic path, mirroring the NO_GPU config flag.
	NoGPU bool

	// runSMI is overridable in tests; it returns nvidia-smi's stdout.
	runSMI func(ctx context.Context) ([]byte, error)
}

// NewResource builds a Resource prober. noGPU mirrors config.Config.NoGPU.
func NewResource(noGPU bool) *Resource {
	return &Resource{NoGPU: noGPU, runSMI: runNvidiaSMI}
}

func runNvidiaSMI(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,utilization.gpu",
		"--format=csv,noheader,nounits",
	)
	return cmd.Output()
}

// FreeGPUs implements Prober.
func (r *Resource) FreeGPUs(ctx context.Context, requested int, reserved map[int]struct{}) ([]int, error) {
	if requested <= 0 {
		return nil, nil
	}
	if r.NoGPU {
		return syntheticIndices(requested, reserved), nil
	}

	out, err := r.runSMI(ctx)
	if err != nil {
		return syntheticIndices(requested, reserved), nil
	}
	free, ok := parseSMIOutput(string(out), requested, reserved)
	if !ok {
		return syntheticIndices(requested, reserved), nil
	}
	return free, nil
}

// syntheticIndices returns the first `requested` non-negative integers
// that are not in reserved, starting from 0.
func syntheticIndices(requested int, reserved map[int]struct{}) []int {
	free := make([]int, 0, requested)
	for candidate := 0; len(free) < requested; candidate++ {
		if _, skip := reserved[candidate]; skip {
			continue
		}
		free = append(free, candidate)
	}
	return free
}

// parseSMIOutput parses "idx, util" CSV lines. ok is false when no line
// could be parsed at all, signalling the caller should fall back to
// synthetic indices.
func parseSMIOutput(raw string, requested int, reserved map[int]struct{}) (free []int, ok bool) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	var parsed bool
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idxRaw, utilRaw, found := strings.Cut(line, ",")
		if !found {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxRaw))
		if err != nil {
			continue
		}
		util, err := strconv.Atoi(strings.TrimSpace(utilRaw))
		if err != nil {
			continue
		}
		parsed = true
		if util >= utilizationCeiling {
			continue
		}
		if _, skip := reserved[idx]; skip {
			continue
		}
		free = append(free, idx)
		if len(free) >= requested {
			return free, true
		}
	}
	if !parsed {
		return nil, false
	}
	return free, true
}

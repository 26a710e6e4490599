package probe

import (
	"context"
	"errors"
	"testing"
)

func TestFreeGPUsFallsBackWhenSMIFails(t *testing.T) {
	r := &Resource{runSMI: func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("nvidia-smi: not found")
	}}
	free, err := r.FreeGPUs(context.Background(), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 2 || free[0] != 0 || free[1] != 1 {
		t.Fatalf("expected synthetic fallback, got %v", free)
	}
}

func TestParseSMIOutputFiltersByUtilizationAndReserved(t *testing.T) {
	raw := "0, 5\n1, 80\n2, 10\n3, 0\n"
	free, ok := parseSMIOutput(raw, 2, map[int]struct{}{0: {}})
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(free) != 2 || free[0] != 2 || free[1] != 3 {
		t.Fatalf("expected [2 3], got %v", free)
	}
}

func TestParseSMIOutputUnparseableFallsBack(t *testing.T) {
	_, ok := parseSMIOutput("garbage output\nmore garbage", 2, nil)
	if ok {
		t.Fatal("expected ok=false for unparseable output")
	}
}

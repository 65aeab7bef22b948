package affinity

import (
	"reflect"
	"testing"

	"themis/internal/abort"
)

func TestFixedPolicyCyclesThroughMaskBits(t *testing.T) {
	c := New(nil, 4)
	c.SetStage("phase1", "mapper", "1010", Fixed)

	if got := c.AssignWorker("phase1", "mapper", 0); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("worker 0: expected [0], got %v", got)
	}
	if got := c.AssignWorker("phase1", "mapper", 1); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("worker 1: expected [2], got %v", got)
	}
	if got := c.AssignWorker("phase1", "mapper", 2); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("worker 2: expected wraparound to [0], got %v", got)
	}
}

func TestFreePolicyReturnsAllSetBits(t *testing.T) {
	c := New(nil, 4)
	c.SetStage("phase1", "reducer", "1100", Free)
	got := c.AssignWorker("phase1", "reducer", 3)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("expected [0 1], got %v", got)
	}
}

func TestMissingStageFallsBackToPhaseDefault(t *testing.T) {
	c := New(nil, 4)
	c.SetPhaseDefault("phase1", "0011", Fixed)
	got := c.AssignWorker("phase1", "unconfigured-stage", 0)
	if !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("expected fallback to DEFAULT mask bit 2, got %v", got)
	}
}

func TestMissingStageAndDefaultMeansAnyCore(t *testing.T) {
	c := New(nil, 4)
	if got := c.AssignWorker("phase1", "unconfigured-stage", 0); got != nil {
		t.Fatalf("expected nil (any core) with nothing configured, got %v", got)
	}
}

func TestMaskLengthMismatchIsFatal(t *testing.T) {
	c := New(nil, 4)
	fault := abort.Catch(func() { c.SetStage("phase1", "mapper", "101", Fixed) })
	if fault == nil {
		t.Fatal("expected a fault for a mask shorter than CORES_PER_NODE")
	}
}

func TestMaskWithNoSetBitsIsFatal(t *testing.T) {
	c := New(nil, 4)
	c.SetStage("phase1", "mapper", "0000", Fixed)
	fault := abort.Catch(func() { c.AssignWorker("phase1", "mapper", 0) })
	if fault == nil {
		t.Fatal("expected a fault for an all-zero mask")
	}
}

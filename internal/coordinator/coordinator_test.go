package coordinator

import (
	"context"
	"testing"
	"time"

	"themis/internal/abort"
)

// TestStaleReadRequestIsDiscarded reproduces spec.md scenario 6: a
// stale payload with mismatched job ids is silently discarded and the
// client re-pops until a matching one arrives.
func TestStaleReadRequestIsDiscarded(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	c.PushReadRequest("phase1", "reader", 0, ReadRequestPayload{Type: TypeReadRequest, JobIDs: []uint64{9}, Path: "stale"})
	c.PushReadRequest("phase1", "reader", 0, ReadRequestPayload{Type: TypeReadRequest, JobIDs: []uint64{7, 8}, Path: "current"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, outcome, err := c.NextReadRequest(ctx, "phase1", "reader", 0, []uint64{7, 8})
	if err != nil {
		t.Fatalf("next read request: %v", err)
	}
	if outcome != OutcomeGranted {
		t.Fatalf("expected OutcomeGranted, got %v", outcome)
	}
	if payload.Path != "current" {
		t.Fatalf("expected the non-stale payload, got %+v", payload)
	}
}

func TestHaltRequestReturnsHaltOutcome(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	c.PushReadRequest("phase1", "reader", 0, ReadRequestPayload{Type: TypeHaltRequest})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, outcome, err := c.NextReadRequest(ctx, "phase1", "reader", 0, []uint64{1})
	if err != nil {
		t.Fatalf("next read request: %v", err)
	}
	if outcome != OutcomeHalt {
		t.Fatalf("expected OutcomeHalt, got %v", outcome)
	}
}

func TestEmptyQueueTimesOutAsRetryNotError(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	ctx, cancel := context.WithTimeout(context.Background(), ReadRequestTimeout+time.Second)
	defer cancel()

	_, outcome, err := c.NextReadRequest(ctx, "phase1", "reader", 0, []uint64{1})
	if err != nil {
		t.Fatalf("timeout should not be an error: %v", err)
	}
	if outcome != OutcomeRetry {
		t.Fatalf("expected OutcomeRetry, got %v", outcome)
	}
}

func TestGetNumPartitionsBlocksUntilSet(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	result := make(chan uint64, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := c.GetNumPartitions(ctx, 1)
		if err != nil {
			t.Errorf("get num partitions: %v", err)
		}
		result <- n
	}()

	time.Sleep(20 * time.Millisecond)
	c.SetNumPartitions(context.Background(), 1, 64)

	select {
	case n := <-result:
		if n != 64 {
			t.Fatalf("expected 64, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GetNumPartitions never returned")
	}
}

func TestWaitOnBarrierRequiresMembership(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fault := abort.Catch(func() { _ = c.WaitOnBarrier(ctx, "reduce-start", "phase1", "batch0", "job1") })
	if fault == nil {
		t.Fatal("expected a fault removing from a barrier the node never joined")
	}
}

func TestWaitOnBarrierReturnsOnceSetEmpties(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	c.JoinBarrier("reduce-start", "phase1", "batch0", "job1", "node-a")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.WaitOnBarrier(ctx, "reduce-start", "phase1", "batch0", "job1") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait on barrier: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait on barrier never returned")
	}
}

func TestJobInfoOutputDirectoryByPhase(t *testing.T) {
	j1 := JobInfo{Phase: 1, IntermediateURL: "s3://intermediate", OutputURL: "s3://output"}
	j2 := JobInfo{Phase: 2, IntermediateURL: "s3://intermediate", OutputURL: "s3://output"}
	j3 := JobInfo{Phase: 3, IntermediateURL: "s3://intermediate", OutputURL: "s3://output"}
	if j1.OutputDirectory() != "s3://intermediate" {
		t.Fatalf("phase 1 should use intermediate, got %q", j1.OutputDirectory())
	}
	if j2.OutputDirectory() != "s3://output" {
		t.Fatalf("phase 2 should use output, got %q", j2.OutputDirectory())
	}
	if j3.OutputDirectory() != "s3://intermediate" {
		t.Fatalf("phase 3 should use intermediate, got %q", j3.OutputDirectory())
	}
}

func TestSampleStatisticsSums(t *testing.T) {
	c := NewDebugClient(nil, "node-a")
	ctx := context.Background()
	c.UploadSampleStatistics(ctx, 1, 100, 10)
	c.UploadSampleStatistics(ctx, 1, 200, 20)

	inSum, imSum, err := c.GetSampleStatisticsSums(ctx, 1, 2)
	if err != nil {
		t.Fatalf("get sums: %v", err)
	}
	if inSum != 300 || imSum != 30 {
		t.Fatalf("expected (300, 30), got (%d, %d)", inSum, imSum)
	}
}

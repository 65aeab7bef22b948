package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"themis/internal/abort"
)

func TestStartRunsFnAndStopWaits(t *testing.T) {
	var ran atomic.Bool
	w := New(nil, "t1", func(ctx context.Context) {
		ran.Store(true)
		<-ctx.Done()
	})
	w.Start(context.Background())
	w.Stop()
	if !ran.Load() {
		t.Fatal("worker function never ran")
	}
}

func TestDoubleStartIsFatal(t *testing.T) {
	w := New(nil, "t1", func(ctx context.Context) { <-ctx.Done() })
	w.Start(context.Background())
	defer w.Stop()

	fault := abort.Catch(func() { w.Start(context.Background()) })
	if fault == nil {
		t.Fatal("expected a fault starting an already-started worker")
	}
}

func TestStopWithoutStartIsFatal(t *testing.T) {
	w := New(nil, "t1", func(ctx context.Context) {})
	fault := abort.Catch(func() { w.Stop() })
	if fault == nil {
		t.Fatal("expected a fault stopping a never-started worker")
	}
}

func TestGroupStartsAndStopsAll(t *testing.T) {
	var count atomic.Int32
	g := NewGroup()
	for i := 0; i < 3; i++ {
		g.Add(New(nil, "w", func(ctx context.Context) {
			count.Add(1)
			<-ctx.Done()
		}))
	}
	g.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for count.Load() != 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if count.Load() != 3 {
		t.Fatalf("expected all 3 workers to run, got %d", count.Load())
	}
	g.Stop()
}

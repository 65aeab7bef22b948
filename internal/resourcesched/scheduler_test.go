package resourcesched

import (
	"sync"
	"testing"
	"time"

	"themis/internal/abort"
	"themis/internal/schedpolicy"
)

// TestFCFSHeadOfLineScenario reproduces spec.md scenario 1: capacity 10,
// R1(size=8) then R2(size=2) from distinct callers; R2 blocks until R1
// releases, then R2 is granted.
func TestFCFSHeadOfLineScenario(t *testing.T) {
	var mu sync.Mutex
	sched := New(nil, 10, schedpolicy.NewFCFS(), &mu)

	mu.Lock()
	if err := sched.Schedule(8, "caller1"); err != nil {
		t.Fatalf("R1 should be granted immediately: %v", err)
	}
	mu.Unlock()

	granted := make(chan struct{})
	go func() {
		mu.Lock()
		defer mu.Unlock()
		if err := sched.Schedule(2, "caller2"); err != nil {
			t.Errorf("R2 schedule failed: %v", err)
		}
		close(granted)
	}()

	// Give the goroutine a chance to block on R2; it must not have been
	// granted yet.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-granted:
		t.Fatal("R2 should still be blocked before R1 releases")
	default:
	}

	mu.Lock()
	sched.Release(8)
	mu.Unlock()

	select {
	case <-granted:
	case <-time.After(2 * time.Second):
		t.Fatal("R2 was never granted after R1 released")
	}

	mu.Lock()
	if got := sched.GetAvailability(); got != 8 {
		t.Fatalf("availability after R2 starts: got %d, want 8", got)
	}
	sched.Release(2)
	sched.Close()
	mu.Unlock()
}

func TestScheduleRejectsSizeAboveCapacity(t *testing.T) {
	var mu sync.Mutex
	sched := New(nil, 10, schedpolicy.NewFCFS(), &mu)
	mu.Lock()
	defer mu.Unlock()
	fault := abort.Catch(func() { _ = sched.Schedule(11, "c") })
	if fault == nil {
		t.Fatal("expected a fault for an over-capacity request")
	}
}

func TestTestModeReturnsWouldBlockInsteadOfWaiting(t *testing.T) {
	var mu sync.Mutex
	sched := New(nil, 10, schedpolicy.NewFCFS(), &mu)
	sched.SetTestMode(true)

	mu.Lock()
	defer mu.Unlock()
	if err := sched.Schedule(8, "c1"); err != nil {
		t.Fatalf("first schedule should succeed: %v", err)
	}
	if err := sched.Schedule(5, "c2"); err != ErrWouldBlock {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if got := sched.GetAvailability(); got != 2 {
		t.Fatalf("availability should reflect only the granted request: got %d", got)
	}
}

func TestCookieLifecycle(t *testing.T) {
	var mu sync.Mutex
	clock := int64(0)
	sched := NewWithCookies(nil, 100, schedpolicy.NewFCFS(), &mu)
	sched.SetClock(func() int64 { return clock })

	mu.Lock()
	c, err := sched.ScheduleWithCookie(40, "caller")
	mu.Unlock()
	if err != nil {
		t.Fatalf("schedule with cookie: %v", err)
	}

	clock = 1500 // 1.5ms later
	mu.Lock()
	sched.ReleaseWithCookie(c)
	avail := sched.GetAvailability()
	sched.Close()
	mu.Unlock()

	if avail != 100 {
		t.Fatalf("availability after release: got %d, want 100", avail)
	}
}

func TestReleaseUnknownCookieIsFatal(t *testing.T) {
	var mu sync.Mutex
	sched := NewWithCookies(nil, 100, schedpolicy.NewFCFS(), &mu)
	mu.Lock()
	defer mu.Unlock()
	fault := abort.Catch(func() { sched.ReleaseWithCookie(Cookie{}) })
	if fault == nil {
		t.Fatal("expected a fault releasing an unknown cookie")
	}
}

func TestMixingAPIsIsFatal(t *testing.T) {
	var mu sync.Mutex
	sched := New(nil, 100, schedpolicy.NewFCFS(), &mu)
	mu.Lock()
	defer mu.Unlock()
	fault := abort.Catch(func() { _, _ = sched.ScheduleWithCookie(1, "c") })
	if fault == nil {
		t.Fatal("expected a fault mixing cookie API onto a non-cookie scheduler")
	}
}

func TestCloseRequiresFullAvailability(t *testing.T) {
	var mu sync.Mutex
	sched := New(nil, 100, schedpolicy.NewFCFS(), &mu)
	mu.Lock()
	_ = sched.Schedule(10, "c")
	mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	fault := abort.Catch(func() { sched.Close() })
	if fault == nil {
		t.Fatal("expected a fault closing a scheduler with outstanding availability deficit")
	}
}

func TestCloseRequiresNoOutstandingCookies(t *testing.T) {
	var mu sync.Mutex
	sched := NewWithCookies(nil, 100, schedpolicy.NewFCFS(), &mu)
	mu.Lock()
	_, _ = sched.ScheduleWithCookie(10, "c")
	defer mu.Unlock()
	fault := abort.Catch(func() { sched.Close() })
	if fault == nil {
		t.Fatal("expected a fault closing a scheduler with an outstanding cookie")
	}
}

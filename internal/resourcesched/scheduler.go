// Package resourcesched implements a capacity-tracking synchronization
// barrier over a schedpolicy.Policy: many concurrent producers/consumers
// arbitrate a bounded pool (a memory quota, a buffer pool, ...) under
// whichever admission order the policy encodes.
//
// The scheduler owns no lock of its own. Callers pass in the shared lock
// they already hold at every call site; Schedule only ever releases it
// transiently, inside
// sync.Cond.Wait, and always returns holding it again.
package resourcesched

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"themis/internal/abort"
	"themis/internal/logging"
	"themis/internal/schedpolicy"
)

// ErrWouldBlock is returned by Schedule/ScheduleWithCookie in test mode
// instead of actually waiting, so a test harness can observe that a call
// would have blocked without deadlocking the test.
var ErrWouldBlock = errors.New("resourcesched: would block")

// CookieID identifies an outstanding lease issued by ScheduleWithCookie.
type CookieID uint64

// Cookie is the opaque handle a caller holds while it has a resource
// lease checked out through the cookie API. Its zero value is never
// valid to release.
type Cookie struct{ id CookieID }

type cookie struct {
	size       uint64
	acquiredAt int64 // microseconds, scheduler clock
}

// Scheduler arbitrates a single bounded pool of size capacity.
type Scheduler struct {
	logger *slog.Logger

	capacity     uint64
	availability uint64
	policy       schedpolicy.Policy
	lock         sync.Locker

	waiters map[any]*sync.Cond

	useCookies   bool
	cookies      map[CookieID]*cookie
	nextCookieID CookieID

	testMode bool
	clock    func() int64 // microseconds
}

// New creates a scheduler for the non-cookie API (Schedule/Release).
func New(logger *slog.Logger, capacity uint64, policy schedpolicy.Policy, lock sync.Locker) *Scheduler {
	return &Scheduler{
		logger:       logging.Default(logger).With("component", "resourcesched"),
		capacity:     capacity,
		availability: capacity,
		policy:       policy,
		lock:         lock,
		waiters:      make(map[any]*sync.Cond),
		clock:        func() int64 { return time.Now().UnixMicro() },
	}
}

// NewWithCookies creates a scheduler for the cookie API
// (ScheduleWithCookie/ReleaseWithCookie). Calling Schedule or Release on
// a scheduler built this way (or vice versa) is a programming error.
func NewWithCookies(logger *slog.Logger, capacity uint64, policy schedpolicy.Policy, lock sync.Locker) *Scheduler {
	s := New(logger, capacity, policy, lock)
	s.useCookies = true
	s.cookies = make(map[CookieID]*cookie)
	return s
}

// SetTestMode switches the wait loop from blocking to returning
// ErrWouldBlock on its first would-block check.
func (s *Scheduler) SetTestMode(enabled bool) { s.testMode = enabled }

// SetClock overrides the microsecond clock used for request timestamps
// and cookie use-time accounting. Intended for tests.
func (s *Scheduler) SetClock(clock func() int64) { s.clock = clock }

// GetAvailability returns the current availability. The caller must hold
// the shared lock.
func (s *Scheduler) GetAvailability() uint64 { return s.availability }

// Schedule blocks (cooperatively, via the shared lock's condition
// variable) until size units are available and the policy admits this
// caller's request, then deducts size from availability.
func (s *Scheduler) Schedule(size uint64, caller any) error {
	if s.useCookies {
		abort.Fatalf(s.logger, "resourcesched: Schedule called on a cookie-based scheduler")
	}
	return s.schedule(size, caller)
}

// Release returns size units to the pool.
func (s *Scheduler) Release(size uint64) {
	if s.useCookies {
		abort.Fatalf(s.logger, "resourcesched: Release called on a cookie-based scheduler")
	}
	s.release(size)
}

// ScheduleWithCookie is Schedule for the cookie API: the returned Cookie
// must later be passed to ReleaseWithCookie exactly once.
func (s *Scheduler) ScheduleWithCookie(size uint64, caller any) (Cookie, error) {
	if !s.useCookies {
		abort.Fatalf(s.logger, "resourcesched: ScheduleWithCookie called on a non-cookie scheduler")
	}
	if err := s.schedule(size, caller); err != nil {
		return Cookie{}, err
	}
	acquireAt := s.clock()
	s.nextCookieID++
	id := s.nextCookieID
	s.cookies[id] = &cookie{size: size, acquiredAt: acquireAt}
	return Cookie{id: id}, nil
}

// ReleaseWithCookie is Release for the cookie API. It also records the
// lease's elapsed use time with the policy, so policies like MLFQ can
// fold it into their promotion threshold.
func (s *Scheduler) ReleaseWithCookie(c Cookie) {
	if !s.useCookies {
		abort.Fatalf(s.logger, "resourcesched: ReleaseWithCookie called on a non-cookie scheduler")
	}
	ck, ok := s.cookies[c.id]
	if !ok {
		abort.Fatalf(s.logger, "resourcesched: unknown cookie %d", c.id)
	}
	delete(s.cookies, c.id)
	dt := time.Duration(s.clock()-ck.acquiredAt) * time.Microsecond
	s.policy.RecordUseTime(dt)
	s.release(ck.size)
}

// Close asserts the scheduler's end-of-life invariants: no outstanding
// cookies, and availability fully returned to capacity.
func (s *Scheduler) Close() {
	if s.useCookies && len(s.cookies) != 0 {
		abort.Fatalf(s.logger, "resourcesched: %d outstanding cookies at destruction", len(s.cookies))
	}
	if s.availability != s.capacity {
		abort.Fatalf(s.logger, "resourcesched: availability %d != capacity %d at destruction", s.availability, s.capacity)
	}
}

func (s *Scheduler) schedule(size uint64, caller any) error {
	if size > s.capacity {
		abort.Fatalf(s.logger, "resourcesched: requested size %d exceeds capacity %d", size, s.capacity)
	}

	req := &schedpolicy.Request{Caller: caller, Size: size, CreatedAt: s.clock()}
	s.policy.AddRequest(req)
	cond := s.waiterFor(caller)

	for s.availability < size || !s.policy.CanSchedule(req) {
		if s.testMode {
			s.policy.RemoveRequest(req, true)
			return ErrWouldBlock
		}
		cond.Wait()
	}

	s.availability -= size
	s.policy.RemoveRequest(req, false)
	s.tryWake()
	return nil
}

func (s *Scheduler) release(size uint64) {
	if s.availability+size > s.capacity {
		abort.Fatalf(s.logger, "resourcesched: release of %d would push availability past capacity %d", size, s.capacity)
	}
	s.availability += size
	s.tryWake()
}

// tryWake asks the policy which request should run next given the
// current availability and signals only that caller's condition
// variable, avoiding a thundering herd across unrelated waiters.
func (s *Scheduler) tryWake() {
	req := s.policy.NextSchedulable(s.availability)
	if req == nil {
		return
	}
	if cond, ok := s.waiters[req.Caller]; ok {
		cond.Signal()
	}
}

func (s *Scheduler) waiterFor(caller any) *sync.Cond {
	cond, ok := s.waiters[caller]
	if !ok {
		cond = sync.NewCond(s.lock)
		s.waiters[caller] = cond
	}
	return cond
}

package workqueue

import (
	"log/slog"
	"sync"

	"themis/internal/logging"
)

// FairDiskWorkQueue holds one internal queue per physical disk,
// populated by the same disk computation as WorkerQueueFor, and drains
// them in round-robin order regardless of which queue a caller asks
// for — callers name a disk only to route Enqueue, never to steer
// Dequeue.
type FairDiskWorkQueue struct {
	logger *slog.Logger
	cfg    Config

	mu        sync.Mutex
	cond      *sync.Cond
	queues    map[uint64][]WorkUnit
	diskOrder []uint64
	cursor    int
	closed    bool
}

// NewFairDiskWorkQueue creates an empty queue for the given layout.
func NewFairDiskWorkQueue(logger *slog.Logger, cfg Config) *FairDiskWorkQueue {
	q := &FairDiskWorkQueue{
		logger: logging.Default(logger).With("component", "workqueue"),
		cfg:    cfg,
		queues: make(map[uint64][]WorkUnit),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue routes u onto the internal queue for its physical disk.
func (q *FairDiskWorkQueue) Enqueue(u WorkUnit) {
	disk := u.physicalDisk(q.cfg)

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[disk]; !ok {
		q.diskOrder = append(q.diskOrder, disk)
	}
	q.queues[disk] = append(q.queues[disk], u)
	q.cond.Signal()
}

// Dequeue blocks until some disk's queue is non-empty or the queue is
// torn down, then returns the next unit in round-robin order across
// disks. ok is false only after Teardown once every queue has drained,
// the sentinel the spec calls emitting a null downstream.
func (q *FairDiskWorkQueue) Dequeue() (unit WorkUnit, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if u, found := q.popNextLocked(); found {
			return u, true
		}
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}
}

// BatchDequeue drains every currently queued unit, in round-robin
// order, without blocking for more to arrive.
func (q *FairDiskWorkQueue) BatchDequeue() []WorkUnit {
	q.mu.Lock()
	defer q.mu.Unlock()
	var drained []WorkUnit
	for {
		u, found := q.popNextLocked()
		if !found {
			return drained
		}
		drained = append(drained, u)
	}
}

// popNextLocked must be called with q.mu held.
func (q *FairDiskWorkQueue) popNextLocked() (WorkUnit, bool) {
	n := len(q.diskOrder)
	for i := 0; i < n; i++ {
		idx := (q.cursor + i) % n
		disk := q.diskOrder[idx]
		units := q.queues[disk]
		if len(units) == 0 {
			continue
		}
		q.queues[disk] = units[1:]
		q.cursor = idx + 1
		return units[0], true
	}
	return nil, false
}

// Teardown wakes every blocked Dequeue; once their queues empty they
// observe closed and return the sentinel (ok=false).
func (q *FairDiskWorkQueue) Teardown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"themis/internal/abort"
	"themis/internal/logging"
)

// debugQueue is an in-memory popQueue, letting DebugClient and tests
// exercise nextReadRequest's discard/halt/retry logic without a live
// redis instance.
type debugQueue struct {
	mu    sync.Mutex
	items [][]byte
}

func (q *debugQueue) push(item []byte) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

func (q *debugQueue) BPop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true, nil
		}
		q.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// DebugClient is an in-process fake of the coordinator protocol,
// backed by plain Go maps and slices instead of redis. It implements
// the exact same retry/discard/poll semantics as RedisClient, so it
// doubles as both a local single-node coordinator and a test double.
type DebugClient struct {
	logger *slog.Logger
	nodeID string

	mu                sync.Mutex
	readRequestQueues map[string]*debugQueue
	jobInfo           map[uint64]JobInfo
	recoveryInfo      map[uint64]RecoveryInfo
	numPartitions     map[uint64]uint64
	barriers          map[string]map[string]struct{}
	nodeFailures      []string
	diskFailures      []string
	inputBytes        map[uint64][]uint64
	intermediateBytes map[uint64][]uint64
}

var _ Client = (*DebugClient)(nil)

// NewDebugClient returns an empty DebugClient whose barrier
// memberships are removed under nodeID, mirroring how a real node
// instantiates one coordinator client for its own lifetime.
func NewDebugClient(logger *slog.Logger, nodeID string) *DebugClient {
	return &DebugClient{
		logger:            logging.Default(logger).With("component", "coordinator"),
		nodeID:            nodeID,
		readRequestQueues: make(map[string]*debugQueue),
		jobInfo:           make(map[uint64]JobInfo),
		recoveryInfo:      make(map[uint64]RecoveryInfo),
		numPartitions:     make(map[uint64]uint64),
		barriers:          make(map[string]map[string]struct{}),
		inputBytes:        make(map[uint64][]uint64),
		intermediateBytes: make(map[uint64][]uint64),
	}
}

func readRequestKey(phase, role string, workerID uint64) string {
	return fmt.Sprintf("%s:%s:%d", phase, role, workerID)
}

// PushReadRequest is a test/driver hook: enqueues a raw payload as if
// it had arrived over the wire, for a given (phase, role, worker) key.
func (c *DebugClient) PushReadRequest(phase, role string, workerID uint64, payload ReadRequestPayload) {
	c.mu.Lock()
	key := readRequestKey(phase, role, workerID)
	q, ok := c.readRequestQueues[key]
	if !ok {
		q = &debugQueue{}
		c.readRequestQueues[key] = q
	}
	c.mu.Unlock()
	q.push(mustMarshal(payload))
}

func (c *DebugClient) NextReadRequest(ctx context.Context, phase, role string, workerID uint64, expected []uint64) (*ReadRequestPayload, Outcome, error) {
	c.mu.Lock()
	key := readRequestKey(phase, role, workerID)
	q, ok := c.readRequestQueues[key]
	if !ok {
		q = &debugQueue{}
		c.readRequestQueues[key] = q
	}
	c.mu.Unlock()

	return nextReadRequest(ctx, c.logger, q, ReadRequestTimeout, expected)
}

// SetJobInfo is a test/driver hook populating what JobInfo returns.
func (c *DebugClient) SetJobInfo(info JobInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobInfo[info.JobID] = info
}

func (c *DebugClient) JobInfo(ctx context.Context, jobID uint64) (JobInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.jobInfo[jobID]
	if !ok {
		abort.Fatalf(c.logger, "coordinator: no job_info for job %d", jobID)
	}
	return info, nil
}

func (c *DebugClient) OutputDirectory(ctx context.Context, jobID uint64) (string, error) {
	info, err := c.JobInfo(ctx, jobID)
	if err != nil {
		return "", err
	}
	return info.OutputDirectory(), nil
}

// SetRecoveryInfo is a test/driver hook.
func (c *DebugClient) SetRecoveryInfo(jobID uint64, info RecoveryInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recoveryInfo[jobID] = info
}

func (c *DebugClient) RecoveryInfo(ctx context.Context, jobID uint64) (RecoveryInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.recoveryInfo[jobID]
	return info, ok, nil
}

func (c *DebugClient) NotifyNodeFailure(ctx context.Context, ip string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodeFailures = append(c.nodeFailures, ip)
	return nil
}

func (c *DebugClient) NotifyDiskFailure(ctx context.Context, ip, diskPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diskFailures = append(c.diskFailures, fmt.Sprintf("%s:%s", ip, diskPath))
	return nil
}

func (c *DebugClient) SetNumPartitions(ctx context.Context, jobID uint64, n uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.numPartitions[jobID] = n
	return nil
}

func (c *DebugClient) GetNumPartitions(ctx context.Context, jobID uint64) (uint64, error) {
	limiter := newPollLimiter()
	for {
		c.mu.Lock()
		n, ok := c.numPartitions[jobID]
		c.mu.Unlock()
		if ok {
			return n, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
}

// WaitOnBarrier removes this node from the barrier's member set and
// blocks until every other member has done the same.
func (c *DebugClient) WaitOnBarrier(ctx context.Context, name, phase, batch, job string) error {
	key := fmt.Sprintf("%s:%s:%s:%s", name, phase, batch, job)
	c.mu.Lock()
	members := c.barriers[key]
	if _, present := members[c.nodeID]; !present {
		c.mu.Unlock()
		abort.Fatalf(c.logger, "coordinator: node %q is not a member of barrier %q", c.nodeID, key)
	}
	delete(members, c.nodeID)
	c.mu.Unlock()

	limiter := newPollLimiter()
	for {
		c.mu.Lock()
		remaining := len(c.barriers[key])
		c.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

// JoinBarrier is a test/driver hook: adds a node to a barrier's member
// set before it calls WaitOnBarrier.
func (c *DebugClient) JoinBarrier(name, phase, batch, job, member string) {
	key := fmt.Sprintf("%s:%s:%s:%s", name, phase, batch, job)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.barriers[key] == nil {
		c.barriers[key] = make(map[string]struct{})
	}
	c.barriers[key][member] = struct{}{}
}

func (c *DebugClient) UploadSampleStatistics(ctx context.Context, jobID uint64, inputBytes, intermediateBytes uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputBytes[jobID] = append(c.inputBytes[jobID], inputBytes)
	c.intermediateBytes[jobID] = append(c.intermediateBytes[jobID], intermediateBytes)
	return nil
}

func (c *DebugClient) GetSampleStatisticsSums(ctx context.Context, jobID uint64, n int) (uint64, uint64, error) {
	limiter := newPollLimiter()
	for {
		c.mu.Lock()
		in, im := c.inputBytes[jobID], c.intermediateBytes[jobID]
		if len(in) >= n {
			var inSum, imSum uint64
			for i := 0; i < n; i++ {
				inSum += in[i]
				imSum += im[i]
			}
			c.mu.Unlock()
			return inSum, imSum, nil
		}
		c.mu.Unlock()
		if err := limiter.Wait(ctx); err != nil {
			return 0, 0, err
		}
	}
}

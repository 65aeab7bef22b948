package coordinator

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Client is the coordinator contract every variant (redis-backed,
// debug, none) implements identically, so driver code never branches
// on which backend coordination is disabled-means-none.
type Client interface {
	NextReadRequest(ctx context.Context, phase, role string, workerID uint64, expected []uint64) (*ReadRequestPayload, Outcome, error)
	JobInfo(ctx context.Context, jobID uint64) (JobInfo, error)
	OutputDirectory(ctx context.Context, jobID uint64) (string, error)
	RecoveryInfo(ctx context.Context, jobID uint64) (RecoveryInfo, bool, error)
	NotifyNodeFailure(ctx context.Context, ip string) error
	NotifyDiskFailure(ctx context.Context, ip, diskPath string) error
	SetNumPartitions(ctx context.Context, jobID uint64, n uint64) error
	GetNumPartitions(ctx context.Context, jobID uint64) (uint64, error)
	WaitOnBarrier(ctx context.Context, name, phase, batch, job string) error
	UploadSampleStatistics(ctx context.Context, jobID uint64, inputBytes, intermediateBytes uint64) error
	GetSampleStatisticsSums(ctx context.Context, jobID uint64, n int) (inputSum, intermediateSum uint64, err error)
}

// PollInterval is how often GetNumPartitions, WaitOnBarrier and
// GetSampleStatisticsSums re-check state that another node must set.
const PollInterval = 50 * time.Millisecond

// ReadRequestTimeout is the bounded blocking-pop timeout for
// NextReadRequest.
const ReadRequestTimeout = 5 * time.Second

// newPollLimiter returns a limiter admitting one poll per PollInterval,
// so repeated GetNumPartitions/WaitOnBarrier/GetSampleStatisticsSums
// checks against the backing store don't hammer it faster than state
// there can plausibly change.
func newPollLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(PollInterval), 1)
}

package coordinator

import "context"

// NoneClient implements Client with coordination disabled: every
// lookup that can sensibly have a no-op returns a zero value, and
// NextReadRequest always halts immediately since there is no external
// source of work without a coordinator.
type NoneClient struct{}

var _ Client = NoneClient{}

func (NoneClient) NextReadRequest(ctx context.Context, phase, role string, workerID uint64, expected []uint64) (*ReadRequestPayload, Outcome, error) {
	return nil, OutcomeHalt, nil
}

func (NoneClient) JobInfo(ctx context.Context, jobID uint64) (JobInfo, error) {
	return JobInfo{JobID: jobID}, nil
}

func (NoneClient) OutputDirectory(ctx context.Context, jobID uint64) (string, error) {
	return "", nil
}

func (NoneClient) RecoveryInfo(ctx context.Context, jobID uint64) (RecoveryInfo, bool, error) {
	return RecoveryInfo{}, false, nil
}

func (NoneClient) NotifyNodeFailure(ctx context.Context, ip string) error { return nil }

func (NoneClient) NotifyDiskFailure(ctx context.Context, ip, diskPath string) error { return nil }

func (NoneClient) SetNumPartitions(ctx context.Context, jobID uint64, n uint64) error { return nil }

func (NoneClient) GetNumPartitions(ctx context.Context, jobID uint64) (uint64, error) { return 0, nil }

func (NoneClient) WaitOnBarrier(ctx context.Context, name, phase, batch, job string) error {
	return nil
}

func (NoneClient) UploadSampleStatistics(ctx context.Context, jobID uint64, inputBytes, intermediateBytes uint64) error {
	return nil
}

func (NoneClient) GetSampleStatisticsSums(ctx context.Context, jobID uint64, n int) (uint64, uint64, error) {
	return 0, 0, nil
}

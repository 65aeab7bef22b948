package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"themis/internal/abort"
	"themis/internal/logging"
)

// RedisClient implements Client against a redis (or redis-protocol
// compatible) server, following the wire layout in the coordinator
// protocol: queues for read requests, hashes for job/recovery info,
// sets for barriers, lists for sample statistics and failure reports.
type RedisClient struct {
	logger *slog.Logger
	rdb    *redis.Client
	nodeID string
}

var _ Client = (*RedisClient)(nil)

// NewRedisClient wraps an already-configured *redis.Client. nodeID
// identifies this client's own node when removing itself from a
// barrier's member set.
func NewRedisClient(logger *slog.Logger, rdb *redis.Client, nodeID string) *RedisClient {
	return &RedisClient{logger: logging.Default(logger).With("component", "coordinator"), rdb: rdb, nodeID: nodeID}
}

type redisQueue struct {
	rdb *redis.Client
	key string
}

func (q *redisQueue) BPop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// BLPop returns [key, value].
	return []byte(res[1]), true, nil
}

func (c *RedisClient) NextReadRequest(ctx context.Context, phase, role string, workerID uint64, expected []uint64) (*ReadRequestPayload, Outcome, error) {
	q := &redisQueue{rdb: c.rdb, key: fmt.Sprintf("read_requests:%s:%s:%d", phase, role, workerID)}
	return nextReadRequest(ctx, c.logger, q, ReadRequestTimeout, expected)
}

func (c *RedisClient) JobInfo(ctx context.Context, jobID uint64) (JobInfo, error) {
	key := fmt.Sprintf("job_info:%d", jobID)
	vals, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return JobInfo{}, err
	}
	if len(vals) == 0 {
		abort.Fatalf(c.logger, "coordinator: no job_info hash for job %d", jobID)
	}
	phase, err := strconv.Atoi(vals["phase"])
	if err != nil {
		abort.Fatalf(c.logger, "coordinator: job_info phase for job %d is not an integer: %v", jobID, err)
	}
	return JobInfo{
		JobID:           jobID,
		Phase:           phase,
		InputURL:        vals["input_url"],
		IntermediateURL: vals["intermediate_url"],
		OutputURL:       vals["output_url"],
	}, nil
}

func (c *RedisClient) OutputDirectory(ctx context.Context, jobID uint64) (string, error) {
	info, err := c.JobInfo(ctx, jobID)
	if err != nil {
		return "", err
	}
	return info.OutputDirectory(), nil
}

func (c *RedisClient) RecoveryInfo(ctx context.Context, jobID uint64) (RecoveryInfo, bool, error) {
	key := fmt.Sprintf("recovery_info:%d", jobID)
	vals, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return RecoveryInfo{}, false, err
	}
	if len(vals) == 0 {
		return RecoveryInfo{}, false, nil
	}
	recoveringJobID, err := strconv.ParseUint(vals["recovering_job_id"], 10, 64)
	if err != nil {
		abort.Fatalf(c.logger, "coordinator: recovery_info recovering_job_id for job %d is not an integer: %v", jobID, err)
	}

	partitionsKey := fmt.Sprintf("recovering_partitions:%d", jobID)
	members, err := c.rdb.SMembers(ctx, partitionsKey).Result()
	if err != nil {
		return RecoveryInfo{}, false, err
	}
	ranges := make([]PartitionRange, 0, len(members))
	for _, m := range members {
		r, err := parsePartitionRange(m)
		if err != nil {
			abort.Fatalf(c.logger, "coordinator: malformed partition range %q for job %d: %v", m, jobID, err)
		}
		ranges = append(ranges, r)
	}
	return RecoveryInfo{RecoveringJobID: recoveringJobID, Ranges: ranges}, true, nil
}

func parsePartitionRange(s string) (PartitionRange, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return PartitionRange{}, fmt.Errorf("expected start-end, got %q", s)
	}
	first, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return PartitionRange{}, err
	}
	last, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return PartitionRange{}, err
	}
	return PartitionRange{First: first, Last: last}, nil
}

func (c *RedisClient) NotifyNodeFailure(ctx context.Context, ip string) error {
	return c.rdb.RPush(ctx, "node_failure_reports", fmt.Sprintf(`{"kind":"node","ip":%q}`, ip)).Err()
}

func (c *RedisClient) NotifyDiskFailure(ctx context.Context, ip, diskPath string) error {
	return c.rdb.RPush(ctx, "node_failure_reports", fmt.Sprintf(`{"kind":"disk","ip":%q,"disk_path":%q}`, ip, diskPath)).Err()
}

func (c *RedisClient) SetNumPartitions(ctx context.Context, jobID uint64, n uint64) error {
	key := fmt.Sprintf("num_partitions:%d", jobID)
	return c.rdb.Set(ctx, key, n, 0).Err()
}

func (c *RedisClient) GetNumPartitions(ctx context.Context, jobID uint64) (uint64, error) {
	key := fmt.Sprintf("num_partitions:%d", jobID)
	limiter := newPollLimiter()
	for {
		v, err := c.rdb.Get(ctx, key).Uint64()
		if err == nil {
			return v, nil
		}
		if err != redis.Nil {
			return 0, err
		}
		if err := limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
}

func (c *RedisClient) WaitOnBarrier(ctx context.Context, name, phase, batch, job string) error {
	key := fmt.Sprintf("barrier:%s:%s:%s:%s", name, phase, batch, job)
	removed, err := c.rdb.SRem(ctx, key, c.nodeID).Result()
	if err != nil {
		return err
	}
	if removed != 1 {
		abort.Fatalf(c.logger, "coordinator: node %q removal from barrier %q returned %d, expected 1", c.nodeID, key, removed)
	}
	limiter := newPollLimiter()
	for {
		count, err := c.rdb.SCard(ctx, key).Result()
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

func (c *RedisClient) UploadSampleStatistics(ctx context.Context, jobID uint64, inputBytes, intermediateBytes uint64) error {
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, fmt.Sprintf("input_bytes:%d", jobID), inputBytes)
	pipe.RPush(ctx, fmt.Sprintf("intermediate_bytes:%d", jobID), intermediateBytes)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisClient) GetSampleStatisticsSums(ctx context.Context, jobID uint64, n int) (uint64, uint64, error) {
	inputKey := fmt.Sprintf("input_bytes:%d", jobID)
	intermediateKey := fmt.Sprintf("intermediate_bytes:%d", jobID)
	limiter := newPollLimiter()
	for {
		length, err := c.rdb.LLen(ctx, inputKey).Result()
		if err != nil {
			return 0, 0, err
		}
		if int(length) >= n {
			inSum, err := sumList(ctx, c.rdb, inputKey, n)
			if err != nil {
				return 0, 0, err
			}
			imSum, err := sumList(ctx, c.rdb, intermediateKey, n)
			if err != nil {
				return 0, 0, err
			}
			return inSum, imSum, nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return 0, 0, err
		}
	}
}

func sumList(ctx context.Context, rdb *redis.Client, key string, n int) (uint64, error) {
	vals, err := rdb.LRange(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return 0, err
	}
	var sum uint64
	for _, v := range vals {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		sum += parsed
	}
	return sum, nil
}

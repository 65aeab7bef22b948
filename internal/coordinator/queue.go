package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"themis/internal/abort"
)

// popQueue is the minimal shape the redis-backed and debug queues both
// implement; nextReadRequest is written once against this interface and
// shared by both variants.
type popQueue interface {
	// BPop blocks up to timeout for an item. ok is false on timeout,
	// which is an expected transient state, never an error.
	BPop(ctx context.Context, timeout time.Duration) (payload []byte, ok bool, err error)
}

// nextReadRequest implements the shared protocol: pop, discard stale
// payloads (job ids not matching expected), halt on a HALT_REQUEST,
// and fatal on any malformed or unknown payload.
func nextReadRequest(ctx context.Context, logger *slog.Logger, q popQueue, timeout time.Duration, expected []uint64) (*ReadRequestPayload, Outcome, error) {
	for {
		raw, ok, err := q.BPop(ctx, timeout)
		if err != nil {
			return nil, OutcomeRetry, err
		}
		if !ok {
			return nil, OutcomeRetry, nil
		}

		var payload ReadRequestPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			abort.Fatalf(logger, "coordinator: malformed read-request payload: %v", err)
		}

		switch payload.Type {
		case TypeHaltRequest:
			return nil, OutcomeHalt, nil
		case TypeReadRequest:
			if !sameJobIDs(payload.JobIDs, expected) {
				continue // stale payload from a prior batch; discard and re-pop
			}
			return &payload, OutcomeGranted, nil
		default:
			abort.Fatalf(logger, "coordinator: unknown read-request payload type %d", payload.Type)
		}
	}
}

func sameJobIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uint64]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
	}
	for _, count := range seen {
		if count != 0 {
			return false
		}
	}
	return true
}

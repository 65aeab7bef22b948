package schedpolicy

import "time"

// MLFQ is a two-level feedback queue: a low queue that new requests enter,
// and a high queue that the low queue's head is promoted into once it has
// waited past the running mean of recorded use times. High is serviced
// strictly in FIFO order; low is serviced by a first-fit scan, which is
// what lets small requests cut ahead of a large one that hasn't aged
// enough to promote yet.
type MLFQ struct {
	low, high []*Request
	clock     func() int64 // microseconds since an arbitrary epoch

	mean  float64 // running mean of completed use times, in microseconds
	count uint64
}

// NewMLFQ returns an empty MLFQ policy. clock supplies "now" in
// microseconds for age comparisons; a nil clock uses the wall clock.
func NewMLFQ(clock func() int64) *MLFQ {
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMicro() }
	}
	return &MLFQ{clock: clock}
}

func (p *MLFQ) AddRequest(r *Request) {
	p.low = append(p.low, r)
}

func (p *MLFQ) RemoveRequest(r *Request, force bool) bool {
	if idx := indexOf(p.high, r); idx >= 0 {
		if !force && idx != 0 {
			return false
		}
		p.high = append(p.high[:idx], p.high[idx+1:]...)
		return true
	}
	if idx := indexOf(p.low, r); idx >= 0 {
		// The low queue is serviced by a first-fit scan, not strict FIFO,
		// so a non-forced removal from low does not require front position.
		p.low = append(p.low[:idx], p.low[idx+1:]...)
		return true
	}
	return false
}

// CanSchedule ignores availability by contract: it only reports whether
// r currently occupies an order-eligible slot. High is strict FIFO, so
// only its head qualifies. Low has no order-only notion of "next" (its
// selection is inherently size-driven); it defers to NextSchedulable
// plus the caller's own availability check, so any low member qualifies
// once high is empty.
func (p *MLFQ) CanSchedule(r *Request) bool {
	if idx := indexOf(p.high, r); idx >= 0 {
		return idx == 0
	}
	if len(p.high) > 0 {
		return false
	}
	return indexOf(p.low, r) >= 0
}

func (p *MLFQ) NextSchedulable(availability uint64) *Request {
	p.promote()

	if len(p.high) > 0 {
		head := p.high[0]
		if head.Size <= availability {
			return head
		}
		return nil
	}

	for _, r := range p.low {
		if r.Size <= availability {
			return r
		}
	}
	return nil
}

// RecordUseTime folds a completed lease's duration into the running mean
// via Welford's incremental update, using the count of completed leases
// as the divisor.
func (p *MLFQ) RecordUseTime(dt time.Duration) {
	p.count++
	delta := float64(dt.Microseconds()) - p.mean
	p.mean += delta / float64(p.count)
}

// promote moves the head of low into high for every request whose age
// exceeds the running mean use time. FIFO ordering of low means all
// requests after the first one below threshold are also younger, so the
// scan stops at the first one that doesn't qualify.
func (p *MLFQ) promote() {
	now := p.clock()
	for len(p.low) > 0 {
		head := p.low[0]
		age := saturatingSub(now, head.CreatedAt)
		if float64(age) <= p.mean {
			break
		}
		p.low = p.low[1:]
		p.high = append(p.high, head)
	}
}

func saturatingSub(a, b int64) int64 {
	if a < b {
		return 0
	}
	return a - b
}

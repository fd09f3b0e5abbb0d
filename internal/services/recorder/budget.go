package recorder

import (
	"time"

	"github.com/juju/ratelimit"
)

// Budget caps how many frames a device may record over time. A device stuck
// in permanent motion (wind, rain, a flickering light) would otherwise fill
// the disk with near-identical segments.
//
// The bucket holds frames. A segment only opens when at least minFrames are
// available, and each written frame takes one token.
type Budget struct {
	bucket    *ratelimit.Bucket
	minFrames int64
}

// NewBudget returns nil when rate is not positive, which disables budgeting
func NewBudget(rate float64, burst, minFrames int64) *Budget {
	return NewBudgetWithClock(rate, burst, minFrames, realClock{})
}

func NewBudgetWithClock(rate float64, burst, minFrames int64, clock ratelimit.Clock) *Budget {
	if rate <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int64(rate * 60)
	}
	if minFrames > burst {
		minFrames = burst
	}
	return &Budget{
		bucket:    ratelimit.NewBucketWithRateAndClock(rate, burst, clock),
		minFrames: minFrames,
	}
}

// CanOpen reports whether enough budget remains to start a segment
func (b *Budget) CanOpen() bool {
	if b == nil {
		return true
	}
	return b.bucket.Available() >= b.minFrames
}

// Take consumes one frame. False means the budget is exhausted.
func (b *Budget) Take() bool {
	if b == nil {
		return true
	}
	return b.bucket.TakeAvailable(1) > 0
}

// Available returns the frames left in the bucket
func (b *Budget) Available() int64 {
	if b == nil {
		return -1
	}
	return b.bucket.Available()
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

package core

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrModelCallLimit is returned once a run exceeds its model call budget.
var ErrModelCallLimit = errors.New("model call limit exceeded")

// ModelLimiter caps the model calls of one run. Every agent of the run,
// parallel branches included, draws from the same limiter.
type ModelLimiter struct {
	max   int64
	count atomic.Int64
}

// NewModelLimiter allows max calls; 0 is unlimited.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: int64(max)}
}

// Increment takes one call from the budget.
func (ml *ModelLimiter) Increment() error {
	for {
		n := ml.count.Load()
		if ml.max > 0 && n >= ml.max {
			return fmt.Errorf("%w: %d", ErrModelCallLimit, ml.max)
		}

		if ml.count.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Count returns the calls made so far.
func (ml *ModelLimiter) Count() int { return int(ml.count.Load()) }

// Remaining returns the calls left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.max == 0 {
		return -1
	}

	return int(ml.max - ml.count.Load())
}

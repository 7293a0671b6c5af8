package passes

import "sync/atomic"

// Clock hands out strictly increasing sequence numbers for pass executions.
//
// Safe for concurrent use. The Manager stamps passes from its own goroutine,
// so sequence order matches pipeline order.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. The run log uses it to keep
// numbering across runs recorded in the same database.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

package primitives

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock supplies transaction start times.
type Clock interface {
	Now() Timestamp
}

// LogicalClock hands out strictly increasing timestamps starting at 1.
type LogicalClock struct {
	next atomic.Int64
}

var _ Clock = (*LogicalClock)(nil)

func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

func (c *LogicalClock) Now() Timestamp {
	return Timestamp(c.next.Add(1))
}

// SystemClock reads the wall clock in nanoseconds.
type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() Timestamp {
	return Timestamp(time.Now().UnixNano())
}

// ManualClock returns whatever value was last set. Intended for tests that
// need equal or precisely ordered start times.
type ManualClock struct {
	mu sync.Mutex
	ts Timestamp
}

var _ Clock = (*ManualClock)(nil)

func NewManualClock(ts Timestamp) *ManualClock {
	return &ManualClock{ts: ts}
}

func (c *ManualClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Set changes the value returned by subsequent calls to Now.
func (c *ManualClock) Set(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts = ts
}

// Advance moves the clock forward by d and returns the new value.
func (c *ManualClock) Advance(d Timestamp) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += d
	return c.ts
}

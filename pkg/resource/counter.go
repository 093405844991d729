// Package resource provides resources the transaction manager can protect:
// a bounded integer counter and a string register.
package resource

import (
	"errors"
	"fmt"
	"sync"

	"txmgr/pkg/primitives"
)

var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrOutOfRange           = errors.New("value out of range")
)

// Add changes a Counter by Delta.
type Add struct {
	Delta int64
}

func (a Add) String() string {
	return fmt.Sprintf("add(%d)", a.Delta)
}

// Counter is an integer resource. When bounded, Apply rejects an Add that would
// move the value outside [Min, Max].
type Counter struct {
	id      primitives.ResourceID
	mu      sync.Mutex
	value   int64
	bounded bool
	min     int64
	max     int64
}

var _ primitives.Resource = (*Counter)(nil)

func NewCounter(id primitives.ResourceID, initial int64) *Counter {
	return &Counter{id: id, value: initial}
}

// NewBoundedCounter returns a counter restricted to [min, max].
func NewBoundedCounter(id primitives.ResourceID, initial, min, max int64) *Counter {
	return &Counter{id: id, value: initial, bounded: true, min: min, max: max}
}

func (c *Counter) ID() primitives.ResourceID {
	return c.id
}

func (c *Counter) Apply(op primitives.Operation) error {
	add, ok := op.(Add)
	if !ok {
		return fmt.Errorf("counter %s: %w: %T", c.id, ErrUnsupportedOperation, op)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.value + add.Delta
	if c.bounded && (next < c.min || next > c.max) {
		return fmt.Errorf("counter %s: %w: %d not in [%d, %d]", c.id, ErrOutOfRange, next, c.min, c.max)
	}
	c.value = next
	return nil
}

func (c *Counter) Unapply(op primitives.Operation) {
	add := op.(Add)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.value -= add.Delta
}

func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

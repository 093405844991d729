package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterApplyUnapply(t *testing.T) {
	c := NewCounter("c", 10)

	require.NoError(t, c.Apply(Add{Delta: 5}))
	require.NoError(t, c.Apply(Add{Delta: -3}))
	assert.Equal(t, int64(12), c.Value())

	c.Unapply(Add{Delta: -3})
	c.Unapply(Add{Delta: 5})
	assert.Equal(t, int64(10), c.Value())
}

func TestCounterRejectsForeignOperation(t *testing.T) {
	c := NewCounter("c", 0)
	err := c.Apply(Set{Value: "x"})
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	assert.Zero(t, c.Value())
}

func TestBoundedCounter(t *testing.T) {
	c := NewBoundedCounter("c", 1, 0, 3)

	require.NoError(t, c.Apply(Add{Delta: 2}))
	err := c.Apply(Add{Delta: 1})
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.Equal(t, int64(3), c.Value(), "rejected operation leaves state unchanged")

	assert.True(t, errors.Is(c.Apply(Add{Delta: -4}), ErrOutOfRange))
}

func TestRegisterRestoresInReverse(t *testing.T) {
	r := NewRegister("r", "a")

	require.NoError(t, r.Apply(Set{Value: "b"}))
	require.NoError(t, r.Apply(Set{Value: "c"}))
	assert.Equal(t, "c", r.Value())

	r.Unapply(Set{Value: "c"})
	assert.Equal(t, "b", r.Value())
	r.Unapply(Set{Value: "b"})
	assert.Equal(t, "a", r.Value())
}

func TestRegisterRejectsForeignOperation(t *testing.T) {
	r := NewRegister("r", "a")
	assert.True(t, errors.Is(r.Apply(Add{Delta: 1}), ErrUnsupportedOperation))
	assert.Equal(t, "a", r.Value())
}

func TestIdentity(t *testing.T) {
	assert.EqualValues(t, "c", NewCounter("c", 0).ID())
	assert.EqualValues(t, "r", NewRegister("r", "").ID())
}

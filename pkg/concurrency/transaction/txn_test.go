package transaction

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberror "txmgr/pkg/error"
	"txmgr/pkg/primitives"
)

func TestTransactionStatus_String(t *testing.T) {
	tests := []struct {
		status   TransactionStatus
		expected string
	}{
		{TxActive, "ACTIVE"},
		{TxCommitting, "COMMITTING"},
		{TxRollingBack, "ROLLING_BACK"},
		{TransactionStatus(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestNewTransactionContext(t *testing.T) {
	ctx := NewTransactionContext(3, 42)

	assert.Equal(t, primitives.ThreadID(3), ctx.Thread)
	assert.Equal(t, primitives.Timestamp(42), ctx.StartTime)
	assert.False(t, ctx.IsAborted())
	assert.Equal(t, TxActive, ctx.Status())
	assert.Zero(t, ctx.HistoryLen())

	_, waiting := ctx.WaitingOn()
	assert.False(t, waiting)
}

func TestStatusTransitions(t *testing.T) {
	ctx := NewTransactionContext(1, 1)

	ctx.SetStatus(TxCommitting)
	assert.Equal(t, TxCommitting, ctx.Status())
	ctx.SetStatus(TxRollingBack)
	assert.Equal(t, TxRollingBack, ctx.Status())
	assert.GreaterOrEqual(t, ctx.Duration(), time.Duration(0))
}

func TestAbortIsPermanent(t *testing.T) {
	ctx := NewTransactionContext(1, 1)

	assert.True(t, ctx.Abort())
	assert.False(t, ctx.Abort(), "second abort must not report a transition")
	assert.True(t, ctx.IsAborted())
}

func TestHistoryIsLIFO(t *testing.T) {
	ctx := NewTransactionContext(1, 1)
	ctx.Push(0, "a")
	ctx.Push(2, "b")
	ctx.Push(0, "c")

	require.Equal(t, 3, ctx.HistoryLen())
	assert.Equal(t, []HistoryEntry{{0, "c"}, {2, "b"}, {0, "a"}}, ctx.Entries())

	e, ok := ctx.Pop()
	require.True(t, ok)
	assert.Equal(t, HistoryEntry{Index: 0, Op: "c"}, e)

	ctx.Pop()
	ctx.Pop()
	_, ok = ctx.Pop()
	assert.False(t, ok)
}

func TestOwnership(t *testing.T) {
	ctx := NewTransactionContext(1, 1)
	ctx.RecordOwnership(5)
	ctx.RecordOwnership(1)
	ctx.RecordOwnership(5)

	assert.True(t, ctx.Owns(5))
	assert.False(t, ctx.Owns(2))
	assert.Equal(t, []int{1, 5}, ctx.OwnedIndexes())
}

func TestWaitingOn(t *testing.T) {
	ctx := NewTransactionContext(1, 1)

	ctx.SetWaitingOnIfAbsent(4)
	ctx.SetWaitingOnIfAbsent(7)
	idx, ok := ctx.WaitingOn()
	require.True(t, ok)
	assert.Equal(t, 4, idx)

	ctx.ClearWaitingOn()
	_, ok = ctx.WaitingOn()
	assert.False(t, ok)
}

func TestInterruptDoesNotBlock(t *testing.T) {
	ctx := NewTransactionContext(1, 1)
	ctx.Interrupt()
	ctx.Interrupt()

	select {
	case <-ctx.Interrupted():
	default:
		t.Fatal("expected a pending interrupt")
	}

	select {
	case <-ctx.Interrupted():
		t.Fatal("interrupts must not queue")
	default:
	}
}

func TestYoungerThan(t *testing.T) {
	older := NewTransactionContext(9, 10)
	younger := NewTransactionContext(1, 20)
	assert.True(t, younger.YoungerThan(older))
	assert.False(t, older.YoungerThan(younger))

	a := NewTransactionContext(1, 10)
	b := NewTransactionContext(2, 10)
	assert.True(t, b.YoungerThan(a), "equal start times fall back to the larger thread")
	assert.False(t, a.YoungerThan(b))
}

func TestRegistryBegin(t *testing.T) {
	tr := NewTransactionRegistry()

	ctx, err := tr.Begin(1, 100)
	require.NoError(t, err)
	assert.Same(t, ctx, tr.Get(1))

	_, err = tr.Begin(1, 101)
	assert.True(t, errors.Is(err, dberror.ErrAlreadyActive))
	assert.Equal(t, 1, tr.Count())
}

func TestRegistryRemove(t *testing.T) {
	tr := NewTransactionRegistry()
	stale, err := tr.Begin(1, 1)
	require.NoError(t, err)
	tr.Remove(stale)
	assert.Nil(t, tr.Get(1))

	fresh, err := tr.Begin(1, 2)
	require.NoError(t, err)
	tr.Remove(stale)
	assert.Same(t, fresh, tr.Get(1), "removing a stale context must keep the newer one")
}

func TestRegistryActiveSorted(t *testing.T) {
	tr := NewTransactionRegistry()
	for _, th := range []primitives.ThreadID{5, 2, 9} {
		_, err := tr.Begin(th, 1)
		require.NoError(t, err)
	}

	var threads []primitives.ThreadID
	for _, ctx := range tr.Active() {
		threads = append(threads, ctx.Thread)
	}
	assert.Equal(t, []primitives.ThreadID{2, 5, 9}, threads)
}

func TestRegistryConcurrentBegin(t *testing.T) {
	tr := NewTransactionRegistry()
	var wg sync.WaitGroup
	const n = 64

	for i := range n {
		wg.Add(1)
		go func(th primitives.ThreadID) {
			defer wg.Done()
			ctx, err := tr.Begin(th, primitives.Timestamp(th))
			if err == nil {
				tr.Remove(ctx)
			}
		}(primitives.ThreadID(i))
	}
	wg.Wait()

	assert.Zero(t, tr.Count())
}

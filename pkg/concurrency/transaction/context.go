package transaction

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/stacks/arraystack"

	"txmgr/pkg/primitives"
)

// TransactionContext is the per-thread record of an active transaction.
//
// The owning thread mutates history, ownership and waitingOn. The only other
// writer is a deadlock detector running on another thread, which may set the
// abort flag, clear waitingOn and post an interrupt.
type TransactionContext struct {
	Thread    primitives.ThreadID
	StartTime primitives.Timestamp

	aborted   atomic.Bool
	interrupt chan struct{}

	mutex     sync.RWMutex
	status    TransactionStatus
	history   *arraystack.Stack
	owned     map[int]struct{}
	waitingOn int
	beganAt   time.Time
}

func NewTransactionContext(thread primitives.ThreadID, start primitives.Timestamp) *TransactionContext {
	return &TransactionContext{
		Thread:    thread,
		StartTime: start,
		interrupt: make(chan struct{}, 1),
		status:    TxActive,
		history:   arraystack.New(),
		owned:     make(map[int]struct{}),
		waitingOn: primitives.NoResource,
		beganAt:   time.Now(),
	}
}

// Abort marks the transaction as doomed. It reports whether this call
// performed the transition; the flag is never reset.
func (tc *TransactionContext) Abort() bool {
	return tc.aborted.CompareAndSwap(false, true)
}

func (tc *TransactionContext) IsAborted() bool {
	return tc.aborted.Load()
}

// Interrupt wakes the owning thread out of a blocking wait. Interrupts do not
// queue: posting twice before the thread observes the first is the same as once.
func (tc *TransactionContext) Interrupt() {
	select {
	case tc.interrupt <- struct{}{}:
	default:
	}
}

// Interrupted returns the channel the owning thread selects on while blocked.
func (tc *TransactionContext) Interrupted() <-chan struct{} {
	return tc.interrupt
}

func (tc *TransactionContext) Status() TransactionStatus {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.status
}

func (tc *TransactionContext) SetStatus(status TransactionStatus) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.status = status
}

// RecordOwnership notes that the transaction acquired the resource at idx.
func (tc *TransactionContext) RecordOwnership(idx int) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.owned[idx] = struct{}{}
}

// Owns reports whether the transaction has acquired the resource at idx.
func (tc *TransactionContext) Owns(idx int) bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	_, ok := tc.owned[idx]
	return ok
}

// OwnedIndexes returns the acquired resource indexes in ascending order.
func (tc *TransactionContext) OwnedIndexes() []int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return slices.Sorted(maps.Keys(tc.owned))
}

// Push appends an applied operation to the history.
func (tc *TransactionContext) Push(idx int, op primitives.Operation) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.history.Push(HistoryEntry{Index: idx, Op: op})
}

// Pop removes and returns the most recent history entry.
func (tc *TransactionContext) Pop() (HistoryEntry, bool) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	v, ok := tc.history.Pop()
	if !ok {
		return HistoryEntry{}, false
	}
	return v.(HistoryEntry), true
}

func (tc *TransactionContext) HistoryLen() int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.history.Size()
}

// Entries returns the history newest first.
func (tc *TransactionContext) Entries() []HistoryEntry {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	values := tc.history.Values()
	entries := make([]HistoryEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, v.(HistoryEntry))
	}
	return entries
}

// WaitingOn returns the resource index the transaction is blocked on, if any.
func (tc *TransactionContext) WaitingOn() (int, bool) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.waitingOn, tc.waitingOn != primitives.NoResource
}

// SetWaitingOnIfAbsent records idx as the wait target unless one is already set.
func (tc *TransactionContext) SetWaitingOnIfAbsent(idx int) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	if tc.waitingOn == primitives.NoResource {
		tc.waitingOn = idx
	}
}

func (tc *TransactionContext) ClearWaitingOn() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.waitingOn = primitives.NoResource
}

// YoungerThan reports whether tc started after other. Equal start times are
// ordered by thread, the larger thread being the younger.
func (tc *TransactionContext) YoungerThan(other *TransactionContext) bool {
	if tc.StartTime != other.StartTime {
		return tc.StartTime > other.StartTime
	}
	return tc.Thread > other.Thread
}

// Duration returns how long the transaction has been running
func (tc *TransactionContext) Duration() time.Duration {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return time.Since(tc.beganAt)
}

package lock

import (
	"context"
	"log/slog"
	"sync/atomic"

	"txmgr/pkg/concurrency/admission"
	"txmgr/pkg/concurrency/transaction"
	dberror "txmgr/pkg/error"
	"txmgr/pkg/logging"
	"txmgr/pkg/primitives"
)

const component = "LockManager"

// LockManager grants exclusive resource locks to transactions and resolves
// deadlocks between them.
type LockManager struct {
	ownership   *OwnershipTable
	detector    *WaitForDetector
	coordinator *admission.Coordinator
	log         *slog.Logger

	deadlocks     atomic.Uint64
	interruptions atomic.Uint64
}

// NewLockManager creates a lock manager for n resources. lookup resolves the
// owner of a resource to its transaction during deadlock detection.
func NewLockManager(n int, lookup TransactionLookup, log *slog.Logger) *LockManager {
	if log == nil {
		log = logging.WithComponent(component)
	}
	ownership := NewOwnershipTable(n)
	return &LockManager{
		ownership:   ownership,
		detector:    NewWaitForDetector(ownership, lookup),
		coordinator: admission.NewCoordinator(),
		log:         log,
	}
}

// Acquire blocks until txn owns the resource at idx.
//
// It fails with ErrTransactionAborted if txn is, or becomes, a deadlock
// victim, and with ErrCancelled if ctx ends first. In both cases any lock
// txn already holds stays held.
func (lm *LockManager) Acquire(ctx context.Context, txn *transaction.TransactionContext, idx int) error {
	if acquired, _ := lm.ownership.TryAcquire(idx, txn.Thread); acquired {
		return lm.granted(txn, idx)
	}

	var victim *transaction.TransactionContext
	lm.coordinator.Scan(func() {
		victim = lm.detector.Detect(txn, idx)
	})

	if victim != nil {
		lm.deadlocks.Add(1)
		lm.log.Info("deadlock detected",
			logging.Thread(txn.Thread),
			"index", idx,
			slog.Uint64("victim", uint64(victim.Thread)),
			"victim_start", int64(victim.StartTime))
		if victim != txn {
			lm.interruptions.Add(1)
			victim.Interrupt()
		}
	}

	return lm.wait(ctx, txn, idx)
}

func (lm *LockManager) wait(ctx context.Context, txn *transaction.TransactionContext, idx int) error {
	for {
		if txn.IsAborted() {
			txn.ClearWaitingOn()
			return lm.aborted(txn, idx)
		}

		acquired, released := lm.ownership.TryAcquire(idx, txn.Thread)
		if acquired {
			return lm.granted(txn, idx)
		}

		select {
		case <-released:
		case <-txn.Interrupted():
			// Only deadlock resolution interrupts; the abort check at the top decides.
		case <-ctx.Done():
			txn.ClearWaitingOn()
			if txn.IsAborted() {
				return lm.aborted(txn, idx)
			}
			return dberror.Derive(dberror.ErrCancelled, "Acquire", component).
				WithDetail("thread %s waiting on index %d", txn.Thread, idx).
				WithCause(ctx.Err())
		}
	}
}

// granted records a successful acquisition. An abort that raced the
// acquisition still wins: the lock is kept for rollback to release.
func (lm *LockManager) granted(txn *transaction.TransactionContext, idx int) error {
	txn.RecordOwnership(idx)
	txn.ClearWaitingOn()
	if txn.IsAborted() {
		return lm.aborted(txn, idx)
	}
	lm.log.Debug("lock acquired", logging.Thread(txn.Thread), "index", idx)
	return nil
}

func (lm *LockManager) aborted(txn *transaction.TransactionContext, idx int) error {
	return dberror.Derive(dberror.ErrTransactionAborted, "Acquire", component).
		WithDetail("thread %s waiting on index %d", txn.Thread, idx).
		WithHint("roll back the transaction")
}

// Release frees idx if txn owns it, waking its waiters. It must be called
// from within Unwind.
func (lm *LockManager) Release(txn *transaction.TransactionContext, idx int) {
	if lm.ownership.Release(idx, txn.Thread) {
		lm.log.Debug("lock released", logging.Thread(txn.Thread), "index", idx)
	}
}

// Unwind runs fn as a commit-phase participant: concurrently with other
// unwinds, never concurrently with a deadlock scan.
func (lm *LockManager) Unwind(fn func()) {
	lm.coordinator.Commit(fn)
}

// Owner returns the thread holding idx.
func (lm *LockManager) Owner(idx int) (primitives.ThreadID, bool) {
	return lm.ownership.Owner(idx)
}

func (lm *LockManager) Ownership() *OwnershipTable {
	return lm.ownership
}

// Stats is a snapshot of lock manager counters.
type Stats struct {
	Deadlocks     uint64
	Interruptions uint64
	Admission     admission.Stats
}

func (lm *LockManager) Stats() Stats {
	return Stats{
		Deadlocks:     lm.deadlocks.Load(),
		Interruptions: lm.interruptions.Load(),
		Admission:     lm.coordinator.Stats(),
	}
}

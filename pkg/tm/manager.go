package tm

import (
	"context"
	"log/slog"
	"sync/atomic"

	"txmgr/pkg/concurrency/lock"
	"txmgr/pkg/concurrency/transaction"
	dberror "txmgr/pkg/error"
	"txmgr/pkg/logging"
	"txmgr/pkg/primitives"
)

const component = "TransactionManager"

// Manager coordinates transactions over a fixed set of resources.
type Manager struct {
	resources []primitives.Resource
	index     map[primitives.ResourceID]int
	clock     primitives.Clock
	registry  *transaction.TransactionRegistry
	locks     *lock.LockManager
	log       *slog.Logger

	started    atomic.Uint64
	committed  atomic.Uint64
	rolledBack atomic.Uint64
}

// New creates a manager over resources, which are addressed by their IDs.
// Resource IDs must be unique.
func New(resources []primitives.Resource, clock primitives.Clock, opts ...Option) (*Manager, error) {
	if clock == nil {
		return nil, dberror.Derive(dberror.ErrConfig, "New", component).WithDetail("clock is nil")
	}

	index := make(map[primitives.ResourceID]int, len(resources))
	for i, r := range resources {
		if r == nil {
			return nil, dberror.Derive(dberror.ErrConfig, "New", component).WithDetail("resource %d is nil", i)
		}
		if prev, dup := index[r.ID()]; dup {
			return nil, dberror.Derive(dberror.ErrConfig, "New", component).
				WithDetail("resource id %q used at %d and %d", r.ID(), prev, i)
		}
		index[r.ID()] = i
	}

	m := &Manager{
		resources: append([]primitives.Resource(nil), resources...),
		index:     index,
		clock:     clock,
		registry:  transaction.NewTransactionRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.WithComponent(component)
	}
	m.locks = lock.NewLockManager(len(resources), m.registry.Get, m.log)
	return m, nil
}

// Start begins a transaction on thread.
func (m *Manager) Start(thread primitives.ThreadID) error {
	txn, err := m.registry.Begin(thread, m.clock.Now())
	if err != nil {
		return dberror.Wrap(err, dberror.CodeAlreadyActive, "Start", component)
	}
	m.started.Add(1)
	m.log.Debug("transaction started", logging.Thread(thread), "start", int64(txn.StartTime))
	return nil
}

// Operate applies op to the resource rid within thread's transaction, first
// acquiring the resource's lock if the transaction does not hold it yet.
// Blocking on the lock can be cut short by ctx, yielding ErrCancelled.
func (m *Manager) Operate(ctx context.Context, thread primitives.ThreadID, rid primitives.ResourceID, op primitives.Operation) error {
	txn := m.registry.Get(thread)
	if txn == nil {
		return m.noActive("Operate", thread)
	}

	idx, ok := m.index[rid]
	if !ok {
		return dberror.Derive(dberror.ErrUnknownResource, "Operate", component).WithDetail("resource %q", rid)
	}

	if txn.IsAborted() {
		return m.abortedErr("Operate", thread)
	}

	if err := m.locks.Acquire(ctx, txn, idx); err != nil {
		return dberror.Wrap(err, dberror.CodeTransactionAborted, "Operate", component)
	}

	if err := m.resources[idx].Apply(op); err != nil {
		return dberror.Derive(dberror.ErrResourceOperation, "Operate", component).
			WithDetail("resource %q", rid).
			WithCause(err)
	}
	txn.Push(idx, op)
	return nil
}

// Commit ends thread's transaction, keeping its effects and releasing its
// locks. An aborted transaction cannot commit; it keeps its locks until
// Rollback.
func (m *Manager) Commit(thread primitives.ThreadID) error {
	txn := m.registry.Get(thread)
	if txn == nil {
		return m.noActive("Commit", thread)
	}
	if txn.IsAborted() {
		return m.abortedErr("Commit", thread).WithHint("call Rollback to release the transaction's locks")
	}

	txn.SetStatus(transaction.TxCommitting)
	m.locks.Unwind(func() {
		for _, idx := range txn.OwnedIndexes() {
			m.locks.Release(txn, idx)
		}
		m.registry.Remove(txn)
	})

	m.committed.Add(1)
	m.log.Debug("transaction committed", logging.Thread(thread), "operations", txn.HistoryLen())
	return nil
}

// Rollback undoes thread's operations newest first and releases its locks.
// It never fails and does nothing if thread has no transaction.
func (m *Manager) Rollback(thread primitives.ThreadID) {
	txn := m.registry.Get(thread)
	if txn == nil {
		return
	}

	txn.SetStatus(transaction.TxRollingBack)
	m.locks.Unwind(func() {
		// A lock is released once the oldest operation on its resource is undone,
		// so nobody observes a partially unwound resource.
		pending := make(map[int]int)
		for _, e := range txn.Entries() {
			pending[e.Index]++
		}

		for e, ok := txn.Pop(); ok; e, ok = txn.Pop() {
			m.resources[e.Index].Unapply(e.Op)
			pending[e.Index]--
			if pending[e.Index] == 0 {
				m.locks.Release(txn, e.Index)
			}
		}

		for _, idx := range txn.OwnedIndexes() {
			m.locks.Release(txn, idx)
		}
		txn.ClearWaitingOn()
		m.registry.Remove(txn)
	})

	m.rolledBack.Add(1)
	m.log.Debug("transaction rolled back", logging.Thread(thread), "aborted", txn.IsAborted())
}

// IsActive reports whether thread has a transaction.
func (m *Manager) IsActive(thread primitives.ThreadID) bool {
	return m.registry.Get(thread) != nil
}

// IsAborted reports whether thread has a transaction that was aborted.
func (m *Manager) IsAborted(thread primitives.ThreadID) bool {
	txn := m.registry.Get(thread)
	return txn != nil && txn.IsAborted()
}

func (m *Manager) noActive(op string, thread primitives.ThreadID) *dberror.TMError {
	return dberror.Derive(dberror.ErrNoActiveTransaction, op, component).WithDetail("thread %s", thread)
}

func (m *Manager) abortedErr(op string, thread primitives.ThreadID) *dberror.TMError {
	return dberror.Derive(dberror.ErrTransactionAborted, op, component).WithDetail("thread %s", thread)
}

package tm

import (
	"time"

	"txmgr/pkg/concurrency/lock"
	"txmgr/pkg/concurrency/transaction"
	dberror "txmgr/pkg/error"
	"txmgr/pkg/primitives"
)

// Stats is a snapshot of manager counters.
type Stats struct {
	Started    uint64
	Committed  uint64
	RolledBack uint64
	Active     int
	Locks      lock.Stats
}

func (m *Manager) Stats() Stats {
	return Stats{
		Started:    m.started.Load(),
		Committed:  m.committed.Load(),
		RolledBack: m.rolledBack.Load(),
		Active:     m.registry.Count(),
		Locks:      m.locks.Stats(),
	}
}

// Resources returns the managed resource IDs in registration order.
func (m *Manager) Resources() []primitives.ResourceID {
	ids := make([]primitives.ResourceID, len(m.resources))
	for i, r := range m.resources {
		ids[i] = r.ID()
	}
	return ids
}

// Owner returns the thread currently holding rid's lock.
func (m *Manager) Owner(rid primitives.ResourceID) (primitives.ThreadID, bool, error) {
	idx, ok := m.index[rid]
	if !ok {
		return 0, false, dberror.Derive(dberror.ErrUnknownResource, "Owner", component).WithDetail("resource %q", rid)
	}
	owner, held := m.locks.Owner(idx)
	return owner, held, nil
}

// TransactionInfo describes an active transaction.
type TransactionInfo struct {
	Thread     primitives.ThreadID
	StartTime  primitives.Timestamp
	Status     transaction.TransactionStatus
	Elapsed    time.Duration
	Aborted    bool
	Operations int
	Locks      []primitives.ResourceID
	WaitingOn  primitives.ResourceID
}

// ActiveTransactions lists active transactions ordered by thread.
func (m *Manager) ActiveTransactions() []TransactionInfo {
	active := m.registry.Active()
	infos := make([]TransactionInfo, 0, len(active))
	for _, txn := range active {
		info := TransactionInfo{
			Thread:     txn.Thread,
			StartTime:  txn.StartTime,
			Status:     txn.Status(),
			Elapsed:    txn.Duration(),
			Aborted:    txn.IsAborted(),
			Operations: txn.HistoryLen(),
		}
		for _, idx := range txn.OwnedIndexes() {
			info.Locks = append(info.Locks, m.resources[idx].ID())
		}
		if idx, waiting := txn.WaitingOn(); waiting {
			info.WaitingOn = m.resources[idx].ID()
		}
		infos = append(infos, info)
	}
	return infos
}

package lock

import (
	"txmgr/pkg/concurrency/transaction"
	"txmgr/pkg/primitives"
)

// TransactionLookup resolves a thread to its active transaction, or nil.
type TransactionLookup func(primitives.ThreadID) *transaction.TransactionContext

// WaitForDetector finds deadlocks by following wait-for edges. Each thread
// waits on at most one resource and each resource has at most one owner, so the
// wait-for graph is a set of chains and a single walk from the blocking thread
// is enough to find any cycle through it.
//
// Detect must run inside the coordinator's scan phase.
type WaitForDetector struct {
	ownership *OwnershipTable
	lookup    TransactionLookup
}

func NewWaitForDetector(ownership *OwnershipTable, lookup TransactionLookup) *WaitForDetector {
	return &WaitForDetector{
		ownership: ownership,
		lookup:    lookup,
	}
}

// Detect records that caller waits on idx and walks the chain from caller.
// If the chain leads back to caller, the youngest transaction on it is marked
// aborted, removed from the chain and returned. It returns nil otherwise.
//
// Interrupting a victim other than caller is left to the caller of Detect.
func (d *WaitForDetector) Detect(caller *transaction.TransactionContext, idx int) *transaction.TransactionContext {
	caller.SetWaitingOnIfAbsent(idx)

	visited := []*transaction.TransactionContext{caller}
	seen := map[primitives.ThreadID]bool{caller.Thread: true}
	current := caller

	for {
		wants, waiting := current.WaitingOn()
		if !waiting {
			return nil
		}

		owner, held := d.ownership.Owner(wants)
		if !held {
			return nil
		}

		if owner == caller.Thread {
			victim := SelectVictim(visited)
			victim.Abort()
			victim.ClearWaitingOn()
			return victim
		}

		// A loop that does not pass through caller is some other thread's
		// deadlock; that thread resolves it on its own scan.
		if seen[owner] {
			return nil
		}

		next := d.lookup(owner)
		if next == nil {
			return nil
		}
		seen[owner] = true
		visited = append(visited, next)
		current = next
	}
}

// SelectVictim returns the youngest transaction: the latest start time, ties
// broken by the larger thread. The result depends only on the set of
// candidates, not their order.
func SelectVictim(candidates []*transaction.TransactionContext) *transaction.TransactionContext {
	var victim *transaction.TransactionContext
	for _, c := range candidates {
		if victim == nil || c.YoungerThan(victim) {
			victim = c
		}
	}
	return victim
}

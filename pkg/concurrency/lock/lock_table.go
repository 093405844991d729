package lock

import (
	"sync"

	"txmgr/pkg/primitives"
)

type slot struct {
	mu       sync.Mutex
	owner    primitives.ThreadID
	held     bool
	released chan struct{}
}

// OwnershipTable maps each resource index to the thread that owns it.
// Each slot has its own mutex; unrelated resources never contend.
type OwnershipTable struct {
	slots []slot
}

// Owner describes one held slot.
type Owner struct {
	Index  int
	Thread primitives.ThreadID
}

func NewOwnershipTable(n int) *OwnershipTable {
	ot := &OwnershipTable{slots: make([]slot, n)}
	for i := range ot.slots {
		ot.slots[i].released = make(chan struct{})
	}
	return ot
}

func (ot *OwnershipTable) Len() int {
	return len(ot.slots)
}

// TryAcquire gives the slot to thread if it is free or already owned by thread.
// When the slot is held by someone else it returns a channel that is closed on
// the next release; callers must re-check after it fires.
func (ot *OwnershipTable) TryAcquire(idx int, thread primitives.ThreadID) (bool, <-chan struct{}) {
	s := &ot.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.held {
		s.owner = thread
		s.held = true
		return true, nil
	}
	if s.owner == thread {
		return true, nil
	}
	return false, s.released
}

// Release frees the slot if thread owns it and wakes every waiter.
// It reports whether anything was released.
func (ot *OwnershipTable) Release(idx int, thread primitives.ThreadID) bool {
	s := &ot.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.held || s.owner != thread {
		return false
	}
	s.held = false
	s.owner = 0
	close(s.released)
	s.released = make(chan struct{})
	return true
}

// Owner returns the thread owning idx, if any.
func (ot *OwnershipTable) Owner(idx int) (primitives.ThreadID, bool) {
	s := &ot.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, s.held
}

func (ot *OwnershipTable) IsOwnedBy(idx int, thread primitives.ThreadID) bool {
	owner, held := ot.Owner(idx)
	return held && owner == thread
}

// Snapshot lists held slots in index order. Slots are read one at a time, so
// the result is only consistent while no commit or rollback is running.
func (ot *OwnershipTable) Snapshot() []Owner {
	owners := make([]Owner, 0)
	for i := range ot.slots {
		if owner, held := ot.Owner(i); held {
			owners = append(owners, Owner{Index: i, Thread: owner})
		}
	}
	return owners
}

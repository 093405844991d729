package transaction

import (
	"cmp"
	"slices"
	"sync"

	dberror "txmgr/pkg/error"
	"txmgr/pkg/primitives"
)

// TransactionRegistry maps each thread to its active transaction context.
// A thread has an entry iff it has a transaction that is neither committed
// nor rolled back.
type TransactionRegistry struct {
	contexts map[primitives.ThreadID]*TransactionContext
	mutex    sync.RWMutex
}

func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{
		contexts: make(map[primitives.ThreadID]*TransactionContext),
	}
}

// Begin registers a new transaction for thread with the given start time.
func (tr *TransactionRegistry) Begin(thread primitives.ThreadID, start primitives.Timestamp) (*TransactionContext, error) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if _, exists := tr.contexts[thread]; exists {
		return nil, dberror.Derive(dberror.ErrAlreadyActive, "Start", "TransactionRegistry").
			WithDetail("thread %s", thread)
	}

	ctx := NewTransactionContext(thread, start)
	tr.contexts[thread] = ctx
	return ctx, nil
}

// Get returns the active transaction of thread, or nil.
func (tr *TransactionRegistry) Get(thread primitives.ThreadID) *TransactionContext {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	return tr.contexts[thread]
}

// Remove removes the entry for thread if it still refers to ctx.
func (tr *TransactionRegistry) Remove(ctx *TransactionContext) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	if tr.contexts[ctx.Thread] == ctx {
		delete(tr.contexts, ctx.Thread)
	}
}

// Active returns all registered contexts ordered by thread.
func (tr *TransactionRegistry) Active() []*TransactionContext {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	active := make([]*TransactionContext, 0, len(tr.contexts))
	for _, ctx := range tr.contexts {
		active = append(active, ctx)
	}
	slices.SortFunc(active, func(a, b *TransactionContext) int {
		return cmp.Compare(a.Thread, b.Thread)
	})
	return active
}

func (tr *TransactionRegistry) Count() int {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	return len(tr.contexts)
}

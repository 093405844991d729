package tm

import (
	"context"

	"txmgr/pkg/primitives"
)

// Thread binds a thread identity to a Manager so callers need not pass it on
// every call. A Thread must only be used by the goroutine it represents.
type Thread struct {
	m  *Manager
	id primitives.ThreadID
}

func (m *Manager) Thread(id primitives.ThreadID) *Thread {
	return &Thread{m: m, id: id}
}

func (t *Thread) ID() primitives.ThreadID {
	return t.id
}

func (t *Thread) Start() error {
	return t.m.Start(t.id)
}

func (t *Thread) Operate(ctx context.Context, rid primitives.ResourceID, op primitives.Operation) error {
	return t.m.Operate(ctx, t.id, rid, op)
}

func (t *Thread) Commit() error {
	return t.m.Commit(t.id)
}

func (t *Thread) Rollback() {
	t.m.Rollback(t.id)
}

func (t *Thread) IsActive() bool {
	return t.m.IsActive(t.id)
}

func (t *Thread) IsAborted() bool {
	return t.m.IsAborted(t.id)
}

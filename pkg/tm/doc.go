// Package tm is the transaction manager façade.
//
// A [Manager] protects a fixed set of resources. Each transaction is bound to
// one thread, identified by a [primitives.ThreadID] the caller chooses; a
// thread runs at most one transaction at a time.
//
//	m, err := tm.New(resources, primitives.NewLogicalClock())
//	th := m.Thread(1)
//	if err := th.Start(); err != nil { ... }
//	if err := th.Operate(ctx, "accounts", resource.Add{Delta: 10}); err != nil {
//	    th.Rollback()
//	    return err
//	}
//	return th.Commit()
//
// Operate takes the resource's lock on first use and keeps it until Commit or
// Rollback. If blocking on a lock would close a wait-for cycle, the youngest
// transaction on the cycle is aborted: its pending or next Operate fails with
// ErrTransactionAborted, Commit refuses it, and its owner must call Rollback to
// undo its operations and release its locks.
package tm

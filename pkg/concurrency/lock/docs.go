// Package lock implements exclusive resource locking with inline deadlock
// detection for the transaction manager.
//
// # Overview
//
// Every resource is guarded by a single exclusive lock. A transaction takes the
// lock the first time it operates on the resource and keeps it until it commits
// or rolls back, so locking is strict two-phase: nothing is released mid-transaction.
//
// # Components
//
//   - [OwnershipTable]: one slot per resource holding the owning thread and a
//     wake channel that is closed whenever the slot is released.
//   - [WaitForDetector]: walks the chain "thread waits on resource, resource owned
//     by thread, ..." starting at a thread about to block. Reaching the starting
//     thread again means a deadlock; the youngest transaction on the chain is aborted.
//   - [LockManager]: acquisition and release. It runs detection inside the
//     admission coordinator's scan phase and releases inside its commit phase, so a
//     scan never sees ownership change under it.
//
// # Acquisition Flow
//
//  1. If the thread already owns the resource, return.
//  2. If the resource is free, take it and return.
//  3. Otherwise run a scan. If a cycle is found, abort the victim and, when the
//     victim is another thread, interrupt its wait.
//  4. Block on the slot's wake channel, the transaction's interrupt channel and the
//     caller's context, re-checking ownership after every wake.
//
// # Invariants
//
//   - A resource has at most one owner.
//   - An aborted transaction never acquires a lock it can then use: the abort flag is
//     checked before every attempt and after every successful one.
//   - Locks of an aborted transaction stay held until its owner rolls back.
package lock

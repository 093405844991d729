// Package admission arbitrates between deadlock scans and the commits and
// rollbacks that release ownership.
//
// A scan needs a stable view of resource ownership, so it may not overlap a
// committer. Committers only ever shrink disjoint parts of the ownership table
// and therefore run concurrently with each other. This is a reader/writer
// barrier with the roles reversed: the rare scan is the writer, committers are
// the readers.
//
// State transitions, all under a short-held mutex:
//
//	Idle      --BeginScan, no committers-->   Scanning
//	Idle      --BeginScan, committers > 0-->  Draining
//	Draining  --last committer leaves-->      Scanning
//	Scanning  --EndScan-->                    Idle (queued committers admitted as one batch)
//
// Committers arriving in Draining or Scanning are queued. Blocking happens on
// channels, never while holding the mutex.
package admission

import (
	"sync"
)

// State is the coordinator's phase.
type State int

const (
	Idle State = iota
	Draining
	Scanning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Draining:
		return "DRAINING"
	case Scanning:
		return "SCANNING"
	default:
		return "UNKNOWN"
	}
}

// Stats is a point-in-time view of the coordinator counters.
type Stats struct {
	State      State
	Committers int
	Queued     int
	Scans      uint64
	Batches    uint64
}

// Coordinator admits deadlock scans and committers. A scan waits for in-flight
// committers to drain and holds new ones off until it ends; committers never
// wait for each other. The zero value is not usable; call NewCoordinator.
type Coordinator struct {
	// scanMu serializes scans; only the holder may move the state out of Idle.
	scanMu sync.Mutex

	mu         sync.Mutex
	state      State
	committers int
	queued     int
	drained    chan struct{}
	admit      chan struct{}
	scans      uint64
	batches    uint64
}

// NewCoordinator returns a coordinator in the Idle state.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		state: Idle,
		admit: make(chan struct{}),
	}
}

// BeginScan blocks until no committer is in flight and then holds off all
// committers until EndScan.
func (c *Coordinator) BeginScan() {
	c.scanMu.Lock()

	c.mu.Lock()
	c.scans++
	if c.committers == 0 {
		c.state = Scanning
		c.mu.Unlock()
		return
	}

	c.state = Draining
	drained := make(chan struct{})
	c.drained = drained
	c.mu.Unlock()

	// LeaveCommit moves the state to Scanning before closing drained.
	<-drained
}

// EndScan finishes a scan and admits every queued committer at once.
func (c *Coordinator) EndScan() {
	c.mu.Lock()
	c.state = Idle
	c.drained = nil
	if c.queued > 0 {
		c.committers += c.queued
		c.queued = 0
		c.batches++
		close(c.admit)
		c.admit = make(chan struct{})
	}
	c.mu.Unlock()

	c.scanMu.Unlock()
}

// EnterCommit admits a committer, waiting while a scan is pending or running.
func (c *Coordinator) EnterCommit() {
	c.mu.Lock()
	if c.state == Idle {
		c.committers++
		c.mu.Unlock()
		return
	}

	c.queued++
	admit := c.admit
	c.mu.Unlock()

	// EndScan has already counted this committer when admit closes.
	<-admit
}

// LeaveCommit ends a committer admitted by EnterCommit.
func (c *Coordinator) LeaveCommit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.committers--
	if c.committers < 0 {
		panic("admission: LeaveCommit without matching EnterCommit")
	}
	if c.committers == 0 && c.state == Draining {
		c.state = Scanning
		close(c.drained)
	}
}

// Scan runs fn as a scan.
func (c *Coordinator) Scan(fn func()) {
	c.BeginScan()
	defer c.EndScan()
	fn()
}

// Commit runs fn as a committer.
func (c *Coordinator) Commit(fn func()) {
	c.EnterCommit()
	defer c.LeaveCommit()
	fn()
}

// State returns the current phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a consistent snapshot of the phase, the committer and queue
// counts, and the lifetime scan and batch totals.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		State:      c.state,
		Committers: c.committers,
		Queued:     c.queued,
		Scans:      c.scans,
		Batches:    c.batches,
	}
}

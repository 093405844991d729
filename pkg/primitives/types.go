package primitives

import "fmt"

// ThreadID identifies the thread of control a transaction is bound to.
// IDs are totally ordered by value; deadlock victim selection uses that
// order to break ties between transactions that started at the same time.
type ThreadID uint64

func (t ThreadID) String() string {
	return fmt.Sprintf("TH-%d", uint64(t))
}

// ResourceID is the stable identity of a resource registered with the manager.
type ResourceID string

// Timestamp is a value produced by a Clock. Larger means more recent.
type Timestamp int64

// Operation is an opaque change understood only by the resource it is applied to.
type Operation any

// NoResource marks the absence of a resource index (e.g. a thread not waiting).
const NoResource = -1

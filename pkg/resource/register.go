package resource

import (
	"fmt"
	"sync"

	"txmgr/pkg/primitives"
)

// Set overwrites a Register.
type Set struct {
	Value string
}

func (s Set) String() string {
	return fmt.Sprintf("set(%q)", s.Value)
}

// Register holds a single string. Overwritten values are kept so that
// Unapply can restore them in reverse order.
type Register struct {
	id       primitives.ResourceID
	mu       sync.Mutex
	value    string
	previous []string
}

var _ primitives.Resource = (*Register)(nil)

func NewRegister(id primitives.ResourceID, initial string) *Register {
	return &Register{id: id, value: initial}
}

func (r *Register) ID() primitives.ResourceID {
	return r.id
}

func (r *Register) Apply(op primitives.Operation) error {
	set, ok := op.(Set)
	if !ok {
		return fmt.Errorf("register %s: %w: %T", r.id, ErrUnsupportedOperation, op)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.previous = append(r.previous, r.value)
	r.value = set.Value
	return nil
}

func (r *Register) Unapply(primitives.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := len(r.previous) - 1
	r.value = r.previous[last]
	r.previous = r.previous[:last]
}

func (r *Register) Value() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

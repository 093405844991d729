package primitives

// Resource is a unit of shared mutable state protected by exclusive ownership.
//
// Apply is only ever called by the transaction that currently owns the resource.
// Unapply must exactly reverse the most recent Apply of the same operation that
// has not been reversed yet; it is used only during rollback and cannot fail.
type Resource interface {
	ID() ResourceID
	Apply(op Operation) error
	Unapply(op Operation)
}

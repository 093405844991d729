package transaction

import "txmgr/pkg/primitives"

// TransactionStatus represents the current phase of a transaction
type TransactionStatus int

const (
	TxActive TransactionStatus = iota
	TxCommitting
	TxRollingBack
)

func (ts TransactionStatus) String() string {
	switch ts {
	case TxActive:
		return "ACTIVE"
	case TxCommitting:
		return "COMMITTING"
	case TxRollingBack:
		return "ROLLING_BACK"
	default:
		return "UNKNOWN"
	}
}

// HistoryEntry records one operation successfully applied to the resource at Index.
type HistoryEntry struct {
	Index int
	Op    primitives.Operation
}

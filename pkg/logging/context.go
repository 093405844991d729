package logging

import (
	"log/slog"

	"txmgr/pkg/primitives"
)

// Thread is the attribute carried by every log line about a transaction.
func Thread(tid primitives.ThreadID) slog.Attr {
	return slog.Uint64("thread", uint64(tid))
}

// Err renders err as an "error" attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// WithThread derives a child of log bound to one thread.
//
// Example:
//
//	log := logging.WithThread(r.log, th.ID())
//	log.Debug("transaction aborted, retrying", "attempt", n)
func WithThread(log *slog.Logger, tid primitives.ThreadID) *slog.Logger {
	return log.With(Thread(tid))
}

// WithComponent creates a logger with component/subsystem context.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithRun creates a logger tagged with a simulator run identifier.
func WithRun(runID string) *slog.Logger {
	return GetLogger().With("run_id", runID)
}

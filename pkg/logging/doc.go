// Package logging provides a process-wide structured logger for txmgr.
//
// The package wraps [log/slog] and exposes a single global logger that is
// configured once with Init and retrieved with GetLogger. The transaction
// manager, the simulator and the CLI all log through it, so level, format and
// destination are controlled from one place.
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// GetLogger falls back to an INFO-level stderr text logger when Init was never
// called.
//
// Child loggers carry the fields used throughout the lock manager:
//
//	log := logging.WithComponent("detector")  // adds component field
//	tlog := logging.WithThread(log, tid)      // adds thread field
//	tlog.Debug("lock acquired", logging.Thread(other))
package logging

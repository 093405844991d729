// Package sim drives a transaction manager with a randomized workload.
//
// Each worker goroutine is bound to its own ThreadID and runs a fixed number of
// transactions over a shared pool of counters. Every transaction adds random
// deltas to a few counters and then either commits or rolls back on purpose.
// Deadlock victims roll back and retry. When the run finishes the Runner
// checks conservation: the counters must sum to exactly the deltas of the
// committed transactions.
//
// A Collector aggregates the outcome of every attempt. It can be scraped in
// Prometheus text format while the run is in progress (see Handler) and is
// summarized into a JSON Report afterwards.
package sim

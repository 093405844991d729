package sim

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/queues/circularbuffer"

	"txmgr/pkg/tm"
)

// maxSamples bounds the latency window kept for percentiles.
const maxSamples = 10000

// Collector counts transaction outcomes and keeps a window of commit latencies.
// It is safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	committed  uint64
	rolledBack uint64
	aborted    uint64
	gaveUp     uint64
	delta      int64

	latencies  *circularbuffer.Queue
	lastCommit time.Time
}

func NewCollector() *Collector {
	return &Collector{latencies: circularbuffer.New(maxSamples)}
}

// RecordCommit records a committed transaction, the net delta it applied and
// the time from Start to the end of Commit.
func (c *Collector) RecordCommit(latency time.Duration, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.committed++
	c.delta += delta
	c.lastCommit = time.Now()

	// A full buffer overwrites its oldest sample.
	c.latencies.Enqueue(latency)
}

// RecordRollback records a transaction rolled back by its own worker.
func (c *Collector) RecordRollback() {
	c.mu.Lock()
	c.rolledBack++
	c.mu.Unlock()
}

// RecordAbort records a deadlock victim that was rolled back for a retry.
func (c *Collector) RecordAbort() {
	c.mu.Lock()
	c.aborted++
	c.mu.Unlock()
}

// RecordGiveUp records a transaction that exhausted its retries.
func (c *Collector) RecordGiveUp() {
	c.mu.Lock()
	c.gaveUp++
	c.mu.Unlock()
}

// CommittedDelta is the sum of the deltas of every committed transaction.
func (c *Collector) CommittedDelta() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delta
}

type Counts struct {
	Committed  uint64 `json:"committed"`
	RolledBack uint64 `json:"rolled_back"`
	Aborted    uint64 `json:"aborted"`
	GaveUp     uint64 `json:"gave_up"`
}

func (c *Collector) Counts() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Counts{
		Committed:  c.committed,
		RolledBack: c.rolledBack,
		Aborted:    c.aborted,
		GaveUp:     c.gaveUp,
	}
}

// LatencySummary describes the commit latency window.
type LatencySummary struct {
	Samples int           `json:"samples"`
	Avg     time.Duration `json:"avg_ns"`
	Min     time.Duration `json:"min_ns"`
	Max     time.Duration `json:"max_ns"`
	Median  time.Duration `json:"median_ns"`
	P95     time.Duration `json:"p95_ns"`
	P99     time.Duration `json:"p99_ns"`
}

func durationComparator(a, b interface{}) int {
	x, y := a.(time.Duration), b.(time.Duration)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func (c *Collector) Latency() LatencySummary {
	c.mu.RLock()
	sorted := arraylist.New(c.latencies.Values()...)
	c.mu.RUnlock()

	n := sorted.Size()
	if n == 0 {
		return LatencySummary{}
	}
	sorted.Sort(durationComparator)

	at := func(q float64) time.Duration {
		i := int(float64(n) * q)
		if i >= n {
			i = n - 1
		}
		v, _ := sorted.Get(i)
		return v.(time.Duration)
	}

	var sum time.Duration
	it := sorted.Iterator()
	for it.Next() {
		sum += it.Value().(time.Duration)
	}

	return LatencySummary{
		Samples: n,
		Avg:     sum / time.Duration(n),
		Min:     at(0),
		Max:     at(1),
		Median:  at(0.5),
		P95:     at(0.95),
		P99:     at(0.99),
	}
}

// WriteMetrics renders the collector and the manager statistics in Prometheus
// text exposition format.
func (c *Collector) WriteMetrics(w io.Writer, stats tm.Stats) error {
	counts := c.Counts()
	lat := c.Latency()

	c.mu.RLock()
	lastCommit := c.lastCommit
	c.mu.RUnlock()

	var lastCommitUnix int64
	if !lastCommit.IsZero() {
		lastCommitUnix = lastCommit.Unix()
	}

	_, err := fmt.Fprintf(w, `# HELP txmgr_transactions_committed_total Transactions committed by workers
# TYPE txmgr_transactions_committed_total counter
txmgr_transactions_committed_total %d

# HELP txmgr_transactions_rolled_back_total Transactions rolled back on purpose by workers
# TYPE txmgr_transactions_rolled_back_total counter
txmgr_transactions_rolled_back_total %d

# HELP txmgr_transactions_aborted_total Deadlock victims rolled back for a retry
# TYPE txmgr_transactions_aborted_total counter
txmgr_transactions_aborted_total %d

# HELP txmgr_transactions_gave_up_total Transactions that exhausted their retries
# TYPE txmgr_transactions_gave_up_total counter
txmgr_transactions_gave_up_total %d

# HELP txmgr_transactions_active Transactions currently registered
# TYPE txmgr_transactions_active gauge
txmgr_transactions_active %d

# HELP txmgr_deadlocks_total Deadlock cycles resolved
# TYPE txmgr_deadlocks_total counter
txmgr_deadlocks_total %d

# HELP txmgr_interruptions_total Victims woken by another thread
# TYPE txmgr_interruptions_total counter
txmgr_interruptions_total %d

# HELP txmgr_admission_scans_total Deadlock scans admitted
# TYPE txmgr_admission_scans_total counter
txmgr_admission_scans_total %d

# HELP txmgr_admission_batches_total Queued committer batches released
# TYPE txmgr_admission_batches_total counter
txmgr_admission_batches_total %d

# HELP txmgr_commit_latency_microseconds Average commit latency in microseconds
# TYPE txmgr_commit_latency_microseconds gauge
txmgr_commit_latency_microseconds %.2f

# HELP txmgr_commit_latency_p99_microseconds 99th percentile commit latency in microseconds
# TYPE txmgr_commit_latency_p99_microseconds gauge
txmgr_commit_latency_p99_microseconds %.2f

# HELP txmgr_last_commit_timestamp_seconds Unix timestamp of the last commit
# TYPE txmgr_last_commit_timestamp_seconds gauge
txmgr_last_commit_timestamp_seconds %d
`,
		counts.Committed,
		counts.RolledBack,
		counts.Aborted,
		counts.GaveUp,
		stats.Active,
		stats.Locks.Deadlocks,
		stats.Locks.Interruptions,
		stats.Locks.Admission.Scans,
		stats.Locks.Admission.Batches,
		float64(lat.Avg.Nanoseconds())/1e3,
		float64(lat.P99.Nanoseconds())/1e3,
		lastCommitUnix,
	)
	return err
}

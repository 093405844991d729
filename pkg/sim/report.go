package sim

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"
)

// Report summarizes a finished run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`

	Workers   int `json:"workers"`
	Resources int `json:"resources"`

	Counts        Counts         `json:"counts"`
	Deadlocks     uint64         `json:"deadlocks"`
	Interruptions uint64         `json:"interruptions"`
	Scans         uint64         `json:"admission_scans"`
	Batches       uint64         `json:"admission_batches"`
	Latency       LatencySummary `json:"commit_latency"`
	Throughput    float64        `json:"commits_per_second"`

	ExpectedTotal int64 `json:"expected_total"`
	ActualTotal   int64 `json:"actual_total"`
	Leaked        int   `json:"leaked_transactions"`
	Conserved     bool  `json:"conserved"`

	Error string `json:"error,omitempty"`
}

func (r *Runner) report(start, end time.Time) *Report {
	stats := r.manager.Stats()
	counts := r.metrics.Counts()
	expected := r.metrics.CommittedDelta()
	actual := r.Total()

	rep := &Report{
		RunID:         r.runID,
		StartTime:     start,
		EndTime:       end,
		Duration:      end.Sub(start),
		Workers:       r.cfg.Workers,
		Resources:     r.cfg.Resources,
		Counts:        counts,
		Deadlocks:     stats.Locks.Deadlocks,
		Interruptions: stats.Locks.Interruptions,
		Scans:         stats.Locks.Admission.Scans,
		Batches:       stats.Locks.Admission.Batches,
		Latency:       r.metrics.Latency(),
		ExpectedTotal: expected,
		ActualTotal:   actual,
		Leaked:        stats.Active,
		Conserved:     expected == actual,
	}
	if secs := rep.Duration.Seconds(); secs > 0 {
		rep.Throughput = float64(counts.Committed) / secs
	}
	return rep
}

// WriteJSON writes the report as indented JSON.
func (rep *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Save writes the JSON report to path.
func (rep *Report) Save(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return err
	}
	if err := rep.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (rep *Report) Log(log *slog.Logger) {
	log.Info("run finished",
		"duration", rep.Duration,
		"committed", rep.Counts.Committed,
		"rolled_back", rep.Counts.RolledBack,
		"aborted", rep.Counts.Aborted,
		"gave_up", rep.Counts.GaveUp,
		"deadlocks", rep.Deadlocks,
		"commits_per_second", rep.Throughput,
		"p50", rep.Latency.Median,
		"p99", rep.Latency.P99,
		"conserved", rep.Conserved)
}

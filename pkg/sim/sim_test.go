package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmgr/pkg/config"
	"txmgr/pkg/logging"
	"txmgr/pkg/tm"
)

func quietConfig() config.Config {
	cfg := config.Default()
	cfg.Workers = 6
	cfg.Resources = 3
	cfg.TransactionsPerWorker = 40
	cfg.OpsPerTransaction = 3
	cfg.RollbackRatio = 0.2
	return cfg
}

func newRunner(t *testing.T, cfg config.Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg,
		WithLogger(logging.New(io.Discard, "text", logging.LevelError)),
		WithRunID("test-run"))
	require.NoError(t, err)
	return r
}

func TestRunConservesCounters(t *testing.T) {
	cfg := quietConfig()
	r := newRunner(t, cfg)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Conserved)
	assert.Equal(t, report.ExpectedTotal, report.ActualTotal)
	assert.Zero(t, report.Leaked)
	assert.Equal(t, "test-run", report.RunID)

	c := report.Counts
	assert.Equal(t, uint64(cfg.Workers*cfg.TransactionsPerWorker), c.Committed+c.RolledBack+c.GaveUp)
	assert.Equal(t, c.Committed, uint64(report.Latency.Samples))
	assert.Equal(t, report.Deadlocks, c.Aborted, "every deadlock costs exactly one retry")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Workers = 0
	_, err := NewRunner(cfg)
	assert.Error(t, err)
}

func TestRunGeneratesRunID(t *testing.T) {
	r, err := NewRunner(quietConfig(), WithLogger(logging.New(io.Discard, "text", logging.LevelError)))
	require.NoError(t, err)
	assert.Len(t, r.RunID(), 36)
}

func TestRunStopsOnCancellation(t *testing.T) {
	cfg := quietConfig()
	cfg.ThinkTime = 20 * time.Millisecond
	cfg.TransactionsPerWorker = 1000
	r := newRunner(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	report, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Error)

	assert.Zero(t, report.Leaked, "interrupted workers roll back")
	assert.True(t, report.Conserved)
}

func TestCollectorLatency(t *testing.T) {
	c := NewCollector()
	for i := 100; i >= 1; i-- {
		c.RecordCommit(time.Duration(i)*time.Millisecond, 1)
	}
	c.RecordRollback()
	c.RecordAbort()
	c.RecordGiveUp()

	lat := c.Latency()
	assert.Equal(t, 100, lat.Samples)
	assert.Equal(t, time.Millisecond, lat.Min)
	assert.Equal(t, 100*time.Millisecond, lat.Max)
	assert.Equal(t, 51*time.Millisecond, lat.Median)
	assert.Equal(t, 96*time.Millisecond, lat.P95)
	assert.Equal(t, 100*time.Millisecond, lat.P99)
	assert.Equal(t, 50500*time.Microsecond, lat.Avg)

	assert.Equal(t, Counts{Committed: 100, RolledBack: 1, Aborted: 1, GaveUp: 1}, c.Counts())
	assert.Equal(t, int64(100), c.CommittedDelta())
}

func TestCollectorWindowIsBounded(t *testing.T) {
	c := NewCollector()
	for range maxSamples + 5 {
		c.RecordCommit(time.Microsecond, 0)
	}
	assert.Equal(t, maxSamples, c.Latency().Samples)
	assert.Equal(t, uint64(maxSamples+5), c.Counts().Committed)
}

func TestCollectorWindowKeepsNewestSamples(t *testing.T) {
	c := NewCollector()
	for range maxSamples {
		c.RecordCommit(time.Hour, 0)
	}
	for range maxSamples {
		c.RecordCommit(time.Millisecond, 0)
	}

	lat := c.Latency()
	assert.Equal(t, maxSamples, lat.Samples)
	assert.Equal(t, time.Millisecond, lat.Max, "older samples were evicted")
	assert.Equal(t, time.Millisecond, lat.Min)
}

func TestEmptyCollectorLatency(t *testing.T) {
	assert.Equal(t, LatencySummary{}, NewCollector().Latency())
}

func TestHandler(t *testing.T) {
	m, err := tm.New(nil, config.Default().NewClock())
	require.NoError(t, err)

	c := NewCollector()
	c.RecordCommit(time.Millisecond, 3)
	c.RecordAbort()

	srv := httptest.NewServer(Handler(c, m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "txmgr_transactions_committed_total 1\n")
	assert.Contains(t, string(body), "txmgr_transactions_aborted_total 1\n")
	assert.Contains(t, string(body), "txmgr_transactions_active 0\n")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))
}

func TestReportJSON(t *testing.T) {
	r := newRunner(t, quietConfig())
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "test-run", decoded["run_id"])
	assert.Equal(t, true, decoded["conserved"])
	assert.NotContains(t, decoded, "error")

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.Save(path))
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, buf.String(), string(saved))
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberror "txmgr/pkg/error"
	"txmgr/pkg/logging"
	"txmgr/pkg/primitives"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tmsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.IsType(t, &primitives.LogicalClock{}, Default().NewClock(), "callable on an unaddressable value")
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Workers, cfg.Workers)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
workers: 4
resources: 2
ops_per_transaction: 5
think_time: 2ms
rollback_ratio: 0.25
clock: system
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2, cfg.Resources)
	assert.Equal(t, 5, cfg.OpsPerTransaction)
	assert.Equal(t, 2*time.Millisecond, cfg.ThinkTime)
	assert.Equal(t, 0.25, cfg.RollbackRatio)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, Default().TransactionsPerWorker, cfg.TransactionsPerWorker, "unset keys keep defaults")
	assert.Equal(t, primitives.SystemClock{}, cfg.NewClock())
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	path := writeConfig(t, "workers: 4\n")
	t.Setenv("TMSIM_WORKERS", "12")
	t.Setenv("TMSIM_THINK_TIME", "1ms")
	t.Setenv("TMSIM_LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, time.Millisecond, cfg.ThinkTime)
	assert.Equal(t, logging.LevelWarn, cfg.Logging.Level)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "wrokers: 4\n"))
	assert.True(t, errors.Is(err, dberror.ErrConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errors.Is(err, dberror.ErrConfig))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no resources", func(c *Config) { c.Resources = 0 }},
		{"no transactions", func(c *Config) { c.TransactionsPerWorker = 0 }},
		{"no operations", func(c *Config) { c.OpsPerTransaction = 0 }},
		{"zero delta", func(c *Config) { c.MaxDelta = 0 }},
		{"negative think time", func(c *Config) { c.ThinkTime = -time.Second }},
		{"ratio above one", func(c *Config) { c.RollbackRatio = 1.5 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"unknown clock", func(c *Config) { c.Clock = "lamport" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, dberror.CodeInvalidConfiguration, dberror.CodeOf(err))
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

// Package config loads the workload simulator configuration. Values come from
// built-in defaults, then an optional YAML file, then TMSIM_* environment
// variables, in that order.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	dberror "txmgr/pkg/error"
	"txmgr/pkg/logging"
	"txmgr/pkg/primitives"
)

const EnvPrefix = "TMSIM_"

const (
	ClockLogical = "logical"
	ClockSystem  = "system"
)

type Config struct {
	Workers               int           `yaml:"workers" env:"WORKERS"`
	Resources             int           `yaml:"resources" env:"RESOURCES"`
	TransactionsPerWorker int           `yaml:"transactions_per_worker" env:"TRANSACTIONS_PER_WORKER"`
	OpsPerTransaction     int           `yaml:"ops_per_transaction" env:"OPS_PER_TRANSACTION"`
	MaxDelta              int64         `yaml:"max_delta" env:"MAX_DELTA"`
	ThinkTime             time.Duration `yaml:"think_time" env:"THINK_TIME"`
	RollbackRatio         float64       `yaml:"rollback_ratio" env:"ROLLBACK_RATIO"`
	MaxRetries            int           `yaml:"max_retries" env:"MAX_RETRIES"`
	Seed                  uint64        `yaml:"seed" env:"SEED"`
	Clock                 string        `yaml:"clock" env:"CLOCK"`

	Logging logging.Config `yaml:"logging" envPrefix:"LOG_"`
}

func Default() Config {
	return Config{
		Workers:               8,
		Resources:             16,
		TransactionsPerWorker: 200,
		OpsPerTransaction:     3,
		MaxDelta:              10,
		ThinkTime:             0,
		RollbackRatio:         0.1,
		MaxRetries:            100,
		Seed:                  1,
		Clock:                 ClockLogical,
		Logging: logging.Config{
			Level:  logging.LevelInfo,
			Format: "text",
		},
	}
}

// Load reads path (skipped when empty), applies the environment overlay and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, dberror.Derive(dberror.ErrConfig, "Load", "config").
				WithDetail("read %s", path).
				WithCause(err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, dberror.Derive(dberror.ErrConfig, "Load", "config").
				WithDetail("parse %s", path).
				WithCause(err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, dberror.Derive(dberror.ErrConfig, "Load", "config").
			WithDetail("environment overlay").
			WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML on top of the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return nil, dberror.Derive(dberror.ErrConfig, "Parse", "config").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return dberror.Derive(dberror.ErrConfig, "Validate", "config").WithDetail(format, args...)
	}

	switch {
	case c.Workers < 1:
		return invalid("workers must be positive, got %d", c.Workers)
	case c.Resources < 1:
		return invalid("resources must be positive, got %d", c.Resources)
	case c.TransactionsPerWorker < 1:
		return invalid("transactions_per_worker must be positive, got %d", c.TransactionsPerWorker)
	case c.OpsPerTransaction < 1:
		return invalid("ops_per_transaction must be positive, got %d", c.OpsPerTransaction)
	case c.MaxDelta < 1:
		return invalid("max_delta must be positive, got %d", c.MaxDelta)
	case c.ThinkTime < 0:
		return invalid("think_time must not be negative, got %s", c.ThinkTime)
	case c.RollbackRatio < 0 || c.RollbackRatio > 1:
		return invalid("rollback_ratio must be within [0, 1], got %g", c.RollbackRatio)
	case c.MaxRetries < 0:
		return invalid("max_retries must not be negative, got %d", c.MaxRetries)
	case c.Clock != ClockLogical && c.Clock != ClockSystem:
		return invalid("clock must be %q or %q, got %q", ClockLogical, ClockSystem, c.Clock)
	}

	c.Logging.Level = logging.ParseLevel(string(c.Logging.Level))
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return invalid("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// NewClock returns the start-time source named by Clock.
func (c Config) NewClock() primitives.Clock {
	if c.Clock == ClockSystem {
		return primitives.SystemClock{}
	}
	return primitives.NewLogicalClock()
}

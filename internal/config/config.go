// Package config defines the service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the pending diagnosis jobs.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of diagnosis workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets how many request IDs are remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size"`
	// FeatureParallelism bounds concurrent feature extraction per request.
	FeatureParallelism int `koanf:"feature_parallelism"`

	// ModelPath points at the MLP weights file. Empty runs without a model.
	ModelPath string `koanf:"model_path"`

	// HistoryDSN selects SQLite history storage; empty keeps it in memory.
	HistoryDSN string `koanf:"history_dsn"`
	// HistoryLimit caps retained diagnoses.
	HistoryLimit int `koanf:"history_limit"`

	// Stage3Threshold and AmbiguityMargin tune the decision rules.
	Stage3Threshold float64 `koanf:"stage3_threshold"`
	AmbiguityMargin float64 `koanf:"ambiguity_margin"`

	// MaxFrames caps observations per diagnosis.
	MaxFrames int `koanf:"max_frames"`
	// RequestTimeoutMS bounds one diagnosis, sync or async.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          1024,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         50_000,
		FeatureParallelism: 4,
		HistoryLimit:       100,
		Stage3Threshold:    0.60,
		AmbiguityMargin:    0.15,
		MaxFrames:          64,
		RequestTimeoutMS:   10_000,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.Stage3Threshold <= 0 || c.Stage3Threshold >= 1:
		return fmt.Errorf("stage3_threshold %v outside (0,1): %w", c.Stage3Threshold, ErrInvalidConfig)
	case c.AmbiguityMargin <= 0 || c.AmbiguityMargin >= 1:
		return fmt.Errorf("ambiguity_margin %v outside (0,1): %w", c.AmbiguityMargin, ErrInvalidConfig)
	case c.MaxFrames < 1:
		return fmt.Errorf("max_frames must be at least 1: %w", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("queue_size must be at least 1: %w", ErrInvalidConfig)
	case c.RequestTimeoutMS < 1:
		return fmt.Errorf("request_timeout_ms must be positive: %w", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log_format %q is not text or json: %w", c.LogFormat, ErrInvalidConfig)
	}
	return nil
}

// Package config handles loading and validation of prampel configuration.
//
// Configuration is read with viper from an optional YAML file; every knob
// has a default, so a missing file yields a fully working config. Pacing and
// retry policy are configuration, never hardcoded in the orchestrator.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Hard ceiling on bulk merge batches, independent of configuration.
const maxBatchSizeCeiling = 50

var (
	errBatchSizeOutOfRange = errors.New("merge.max_batch_size must be between 1 and 50")
	errDelayOutOfRange     = errors.New("merge.delay_seconds must be between 0 and 300")
	errAttemptsOutOfRange  = errors.New("merge.max_attempts must be at least 1")
	errTimeoutOutOfRange   = errors.New("provider.timeout_seconds must be at least 1")
)

// Config is the complete configuration for prampel.
type Config struct {
	LogLevel string
	Merge    MergeConfig
	Provider ProviderConfig
	Diff     DiffConfig
}

// MergeConfig tunes the bulk-merge orchestrator.
type MergeConfig struct {
	DelaySeconds           int
	MaxBatchSize           int
	MaxAttempts            int
	BackoffSeconds         int
	ConcurrentRepositories bool
}

// Delay is the pacing delay between merges in one repository partition.
func (m MergeConfig) Delay() time.Duration {
	return time.Duration(m.DelaySeconds) * time.Second
}

// Backoff is the base delay of the rate-limit backoff.
func (m MergeConfig) Backoff() time.Duration {
	return time.Duration(m.BackoffSeconds) * time.Second
}

// ProviderConfig tunes provider API calls.
type ProviderConfig struct {
	TimeoutSeconds int
}

// Timeout is the per-call provider timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DiffConfig tunes the diff read service.
type DiffConfig struct {
	CacheTTLMinutes int
}

// CacheTTL is how long a fetched diff is served from cache.
func (d DiffConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMinutes) * time.Minute
}

// Load reads the configuration from the given directory (and defaults when
// the directory holds no config file).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file is fine; defaults apply.
	}

	config := &Config{
		LogLevel: v.GetString("log_level"),
		Merge: MergeConfig{
			DelaySeconds:           v.GetInt("merge.delay_seconds"),
			MaxBatchSize:           v.GetInt("merge.max_batch_size"),
			MaxAttempts:            v.GetInt("merge.max_attempts"),
			BackoffSeconds:         v.GetInt("merge.backoff_seconds"),
			ConcurrentRepositories: v.GetBool("merge.concurrent_repositories"),
		},
		Provider: ProviderConfig{
			TimeoutSeconds: v.GetInt("provider.timeout_seconds"),
		},
		Diff: DiffConfig{
			CacheTTLMinutes: v.GetInt("diff.cache_ttl_minutes"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("/nonexistent")
	if err != nil {
		// Defaults always validate; reaching this is a programming error.
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("merge.delay_seconds", 2)
	v.SetDefault("merge.max_batch_size", maxBatchSizeCeiling)
	v.SetDefault("merge.max_attempts", 3)
	v.SetDefault("merge.backoff_seconds", 2)
	v.SetDefault("merge.concurrent_repositories", true)

	v.SetDefault("provider.timeout_seconds", 30)

	v.SetDefault("diff.cache_ttl_minutes", 15)
}

// Validate checks that all configured values are inside their allowed
// ranges.
func (c *Config) Validate() error {
	if c.Merge.MaxBatchSize < 1 || c.Merge.MaxBatchSize > maxBatchSizeCeiling {
		return errBatchSizeOutOfRange
	}
	if c.Merge.DelaySeconds < 0 || c.Merge.DelaySeconds > 300 {
		return errDelayOutOfRange
	}
	if c.Merge.MaxAttempts < 1 {
		return errAttemptsOutOfRange
	}
	if c.Provider.TimeoutSeconds < 1 {
		return errTimeoutOutOfRange
	}
	return nil
}

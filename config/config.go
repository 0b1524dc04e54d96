package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/safetyiq/aicache/observe"
)

// Config holds all tunables for the cache library.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Batch     BatchConfig     `yaml:"batch"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CacheConfig controls the response store and read-through policy.
type CacheConfig struct {
	MaxSize     int           `yaml:"max_size"`
	TTL         time.Duration `yaml:"ttl"`
	MaxTTL      time.Duration `yaml:"max_ttl"`
	FreshWindow time.Duration `yaml:"fresh_window"`
}

// BatchConfig controls request batching.
type BatchConfig struct {
	Size    int           `yaml:"size"`
	Timeout time.Duration `yaml:"timeout"`
}

// UpstreamConfig controls the guard around generator calls.
type UpstreamConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxAttempts      uint          `yaml:"max_attempts"`
	MaxConcurrent    int           `yaml:"max_concurrent"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// TelemetryConfig controls logging, metrics, and tracing.
type TelemetryConfig struct {
	ServiceName string                `yaml:"service_name"`
	Version     string                `yaml:"version"`
	Tracing     TracingConfig         `yaml:"tracing"`
	Metrics     MetricsExporterConfig `yaml:"metrics"`
	Logging     LoggingConfig         `yaml:"logging"`
}

// TracingConfig configures the tracing subsystem.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// MetricsExporterConfig configures the metrics subsystem.
type MetricsExporterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxSize:     1000,
			TTL:         time.Hour,
			MaxTTL:      24 * time.Hour,
			FreshWindow: 5 * time.Minute,
		},
		Batch: BatchConfig{
			Size:    5,
			Timeout: 2 * time.Second,
		},
		Upstream: UpstreamConfig{
			Timeout:          30 * time.Second,
			MaxAttempts:      3,
			MaxConcurrent:    10,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "aicache",
			Logging: LoggingConfig{
				Enabled: true,
				Level:   "info",
			},
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// Unset fields keep their defaults. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxSize, c.Cache.MaxSize)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, c.Cache.TTL)
	}
	if c.Cache.FreshWindow <= 0 || c.Cache.FreshWindow > c.Cache.TTL {
		return fmt.Errorf("%w: %s", ErrInvalidFreshWindow, c.Cache.FreshWindow)
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.Batch.Size)
	}
	if c.Batch.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBatchTimeout, c.Batch.Timeout)
	}
	if c.Upstream.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxConcurrent, c.Upstream.MaxConcurrent)
	}
	oc := c.Telemetry.observe()
	return oc.Validate()
}

// Observe converts the telemetry section into an observe.Config.
func (c *Config) Observe() observe.Config {
	return c.Telemetry.observe()
}

func (t TelemetryConfig) observe() observe.Config {
	return observe.Config{
		ServiceName: t.ServiceName,
		Version:     t.Version,
		Tracing: observe.TracingConfig{
			Enabled:   t.Tracing.Enabled,
			Exporter:  t.Tracing.Exporter,
			SamplePct: t.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.Metrics.Enabled,
			Exporter: t.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: t.Logging.Enabled,
			Level:   t.Logging.Level,
		},
	}
}

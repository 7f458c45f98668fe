// Package config provides the unified configuration system for Comet.
// It defines a single Config structure covering the extraction pipeline:
//
//   - API: upstream endpoint and authentication
//   - Entities: include/exclude selection
//   - Extraction: incremental bookmarking and paging
//   - Reliability: retries, circuit breaker, rate limiting
//   - Timeouts: connection and request deadlines
//   - Cache: metadata cache sizing
//   - Flatten: record flattening behavior
//   - Observability: logging and metrics
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.API.BaseURL = "https://api.example.com/integration"
//	cfg.Entities.Include = []string{"order_*"}
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"path"
	"time"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// Config is the unified configuration structure for an extraction run.
type Config struct {
	// API configures the upstream REST endpoint
	API APIConfig `yaml:"api" json:"api" mapstructure:"api"`

	// Entities selects which upstream entities are extracted
	Entities EntityConfig `yaml:"entities" json:"entities" mapstructure:"entities"`

	// Extraction controls incremental bookmarking and paging
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" mapstructure:"extraction"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability" mapstructure:"reliability"`

	// Timeouts define connection and request deadlines
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`

	// Cache configures the metadata cache
	Cache CacheConfig `yaml:"cache" json:"cache" mapstructure:"cache"`

	// Flatten controls record flattening
	Flatten FlattenConfig `yaml:"flatten" json:"flatten" mapstructure:"flatten"`

	// Observability settings for logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// APIConfig configures the upstream data and metadata endpoints.
type APIConfig struct {
	// BaseURL is the root of the upstream integration API
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	// Token is the bearer token injected on every request
	Token string `yaml:"token" json:"token" mapstructure:"token"`
	// UserAgent overrides the default request user agent
	UserAgent string `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
}

// EntityConfig selects entities via glob patterns. Include (when present)
// requires at least one match; Exclude (when present) requires zero.
type EntityConfig struct {
	Include []string `yaml:"include" json:"include" mapstructure:"include"`
	Exclude []string `yaml:"exclude" json:"exclude" mapstructure:"exclude"`
}

// ExtractionConfig controls incremental extraction behavior.
type ExtractionConfig struct {
	// StartDate is the earliest replication timestamp to extract
	StartDate time.Time `yaml:"start_date" json:"start_date" mapstructure:"start_date"`
	// OverlapMinutes widens the bookmark window backwards to tolerate
	// non-atomic upstream writes; duplicates must be deduplicated
	// downstream on primary key
	OverlapMinutes int `yaml:"overlap_minutes" json:"overlap_minutes" mapstructure:"overlap_minutes"`
	// PageSize is the number of rows requested per page
	PageSize int `yaml:"page_size" json:"page_size" mapstructure:"page_size"`
	// ReplicationKey is the default timestamp field for incremental sync
	ReplicationKey string `yaml:"replication_key" json:"replication_key" mapstructure:"replication_key"`
	// UniqueKey orders full scans when no replication key exists
	UniqueKey string `yaml:"unique_key" json:"unique_key" mapstructure:"unique_key"`
}

// ReliabilityConfig contains reliability and error handling settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for retriable failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier" mapstructure:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" mapstructure:"max_retry_delay"`
	// FailureThreshold is the consecutive-failure count that opens the circuit
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold" mapstructure:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before a trial call
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout" mapstructure:"recovery_timeout"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	// DescribeConcurrency bounds parallel describe calls during discovery
	DescribeConcurrency int `yaml:"describe_concurrency" json:"describe_concurrency" mapstructure:"describe_concurrency"`
}

// TimeoutConfig contains timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for individual HTTP calls
	Request time.Duration `yaml:"request" json:"request" mapstructure:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle" mapstructure:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive" mapstructure:"keep_alive"`
}

// CacheConfig configures the metadata cache.
type CacheConfig struct {
	// TTL is how long cached entries stay valid
	TTL time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl"`
	// Capacity bounds entries per namespace (0 = unbounded)
	Capacity int `yaml:"capacity" json:"capacity" mapstructure:"capacity"`
}

// FlattenConfig controls record flattening.
type FlattenConfig struct {
	// Separator joins nested keys
	Separator string `yaml:"separator" json:"separator" mapstructure:"separator"`
	// MaxDepth limits flattening recursion; deeper subtrees stay nested
	MaxDepth int `yaml:"max_depth" json:"max_depth" mapstructure:"max_depth"`
	// Arrays enables flattening of array elements by index
	Arrays bool `yaml:"arrays" json:"arrays" mapstructure:"arrays"`
}

// ObservabilityConfig contains logging and metrics settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// EnableMetrics activates Prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsAddr is the listen address for the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
}

// NewConfig creates a Config with production-ready defaults.
func NewConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			OverlapMinutes: 10,
			PageSize:       500,
			ReplicationKey: "mod_ts",
			UniqueKey:      "id",
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:       3,
			RetryDelay:          time.Second,
			RetryMultiplier:     2.0,
			MaxRetryDelay:       60 * time.Second,
			FailureThreshold:    5,
			RecoveryTimeout:     30 * time.Second,
			RateLimitPerSec:     0,
			DescribeConcurrency: 5,
		},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
			KeepAlive:  30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:      5 * time.Minute,
			Capacity: 1024,
		},
		Flatten: FlattenConfig{
			Separator: "__",
			MaxDepth:  5,
			Arrays:    false,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			EnableMetrics: true,
			MetricsAddr:   ":9090",
		},
	}
}

// Validate validates the configuration for correctness. Entity selection
// conflicts are a pre-flight configuration error, not a filter-time one.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New(errors.ErrorTypeConfig, "api.base_url is required").
			WithHint("set api.base_url to the upstream integration root URL")
	}
	if c.Extraction.PageSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "extraction.page_size must be positive")
	}
	if c.Extraction.OverlapMinutes < 0 {
		return errors.New(errors.ErrorTypeConfig, "extraction.overlap_minutes cannot be negative")
	}
	if c.Reliability.RetryAttempts < 0 {
		return errors.New(errors.ErrorTypeConfig, "reliability.retry_attempts cannot be negative")
	}
	if c.Reliability.FailureThreshold <= 0 {
		return errors.New(errors.ErrorTypeConfig, "reliability.failure_threshold must be positive")
	}
	if c.Flatten.Separator == "" {
		return errors.New(errors.ErrorTypeConfig, "flatten.separator is required")
	}
	if c.Flatten.MaxDepth <= 0 {
		return errors.New(errors.ErrorTypeConfig, "flatten.max_depth must be positive")
	}

	for _, pattern := range c.Entities.Include {
		if _, err := path.Match(pattern, ""); err != nil {
			return errors.Newf(errors.ErrorTypeConfig, "malformed include pattern %q", pattern)
		}
	}
	for _, pattern := range c.Entities.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return errors.Newf(errors.ErrorTypeConfig, "malformed exclude pattern %q", pattern)
		}
	}

	// The same pattern in both lists can never select anything; surface
	// it here rather than silently filtering everything out.
	for _, inc := range c.Entities.Include {
		for _, exc := range c.Entities.Exclude {
			if inc == exc {
				return errors.Newf(errors.ErrorTypeConfig,
					"entity pattern %q appears in both include and exclude", inc).
					WithHint("remove the pattern from one of the two lists")
			}
		}
	}

	return nil
}

// Overlap returns the bookmark overlap window as a duration.
func (e *ExtractionConfig) Overlap() time.Duration {
	return time.Duration(e.OverlapMinutes) * time.Minute
}
